// Command reconcile heals ledger drift and recomputes project balances.
//
//	reconcile project <project-id>   recompute the balance and create missing ledger transactions
//	reconcile ledger <project-id>    list the ledger of a project after healing it
//	reconcile pending [kind:id]      list pending requests of an approver (default approver when omitted)
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	approvalapp "github.com/erp/projectbilling/internal/application/approval"
	billingapp "github.com/erp/projectbilling/internal/application/billing"
	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/erp/projectbilling/internal/infrastructure/cache"
	"github.com/erp/projectbilling/internal/infrastructure/config"
	"github.com/erp/projectbilling/internal/infrastructure/event"
	"github.com/erp/projectbilling/internal/infrastructure/logger"
	"github.com/erp/projectbilling/internal/infrastructure/persistence"
	"github.com/erp/projectbilling/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	var actorFlag string
	flag.StringVar(&actorFlag, "actor", "", "Actor recorded on created ledger transactions, as kind:id (default: system)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.OptionsFrom(cfg, "reconcile"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	actor := shared.SystemActor
	if actorFlag != "" {
		if actor, err = shared.ParseActorRef(actorFlag); err != nil {
			log.Fatal("Invalid -actor", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, actor, args); err != nil {
		log.Error("reconcile failed", zap.String("command", args[0]), zap.Error(err))
		stop()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: reconcile [-actor kind:id] <command> [args]

Commands:
  project <project-id>   Recompute the balance and create missing ledger transactions
  ledger <project-id>    List the ledger of a project after healing it
  pending [kind:id]      List pending requests of an approver`)
}

// app holds the wired services
type app struct {
	installments *billingapp.InstallmentService
	ledger       *billingapp.LedgerSyncService
	requests     *approvalapp.RequestService
	directory    *approvalapp.ActorDirectory
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, actor shared.ActorRef, args []string) error {
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.ConfigFrom(cfg, "reconcile"), log)
	if err != nil {
		return fmt.Errorf("failed to start tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	dbOpts := []persistence.Option{
		persistence.WithLogger(logger.NewGormLogger(log, logger.GormLevel(cfg.Log.Level), logger.WithSlowQuery(cfg.Telemetry.DBSlowQueryThresh))),
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		tracing := telemetry.DefaultDBTracingConfig()
		tracing.Enabled = true
		if cfg.Telemetry.DBSlowQueryThresh > 0 {
			tracing.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
		}
		dbOpts = append(dbOpts, persistence.WithTracing(telemetry.NewDBTracingPlugin(tracing, log)))
	}
	db, err := persistence.NewDatabase(&cfg.Database, dbOpts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("error closing database", zap.Error(err))
		}
	}()

	claims, err := cache.NewClaimStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateStore()
	if err != nil {
		return err
	}
	defer func() { _ = claims.Close() }()

	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(event.NewNotificationHandler(serializer, log))
	if err := bus.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = bus.Stop(context.Background()) }()

	a, err := wire(cfg, db, claims, bus, log)
	if err != nil {
		return err
	}

	ctx, log = logger.WithCorrelationID(ctx, log, uuid.NewString())
	ctx, log = logger.WithActor(ctx, log, actor)
	switch args[0] {
	case "project":
		id, err := projectArg(args)
		if err != nil {
			return err
		}
		ctx, _ = logger.WithProjectID(ctx, log, id.String())
		result, report, err := a.installments.Reconcile(ctx, id, actor)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{
			"project_id":   id,
			"snapshot":     result.Snapshot,
			"ledger_sync":  report,
			"side_effects": result.SideEffects,
		})
	case "ledger":
		id, err := projectArg(args)
		if err != nil {
			return err
		}
		ctx, _ = logger.WithProjectID(ctx, log, id.String())
		txs, report, err := a.ledger.ListByProject(ctx, id, actor)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"transactions": txs, "ledger_sync": report})
	case "pending":
		recipient, err := recipientArg(ctx, a.directory, args)
		if err != nil {
			return err
		}
		requests, err := a.requests.ListPendingForRecipient(ctx, recipient, shared.DefaultFilter())
		if err != nil {
			return err
		}
		return printJSON(requests)
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func wire(cfg *config.Config, db *persistence.Database, claims shared.ClaimStore, bus shared.EventPublisher, log *zap.Logger) (*app, error) {
	projects := persistence.NewGormProjectRepository(db.DB)
	receipts := persistence.NewGormPaymentReceiptRepository(db.DB)
	ledgerRepo := persistence.NewGormLedgerTransactionRepository(db.DB)
	wallets := persistence.NewGormWalletRepository(db.DB)
	walletEntries := persistence.NewGormWalletEntryRepository(db.DB)
	requestRepo := persistence.NewGormRequestRepository(db.DB)
	transactor := persistence.NewGormTransactor(db.DB)
	retries := cfg.Billing.ConflictRetries

	recalculator := billingapp.NewRecalculator(receipts)
	ledger := billingapp.NewLedgerSyncService(ledgerRepo, projects, claims, cfg.Billing.SyncSweepTTL, log.Named("ledger_sync"))
	installments := billingapp.NewInstallmentService(projects, recalculator, ledger, transactor, bus, retries, log.Named("installment_service"))
	receiptService := billingapp.NewPaymentReceiptService(receipts, projects, recalculator, ledger, transactor, bus, retries, log.Named("payment_receipt_service"))
	costs := billingapp.NewCostRevisionService(projects, recalculator, transactor, bus, retries, log.Named("cost_revision_service"))
	walletService := billingapp.NewWalletService(wallets, walletEntries, log.Named("wallet_service"))

	defaultApprover := shared.ActorRef{}
	if cfg.Billing.DefaultApproverID != "" {
		id, err := uuid.Parse(cfg.Billing.DefaultApproverID)
		if err != nil {
			return nil, fmt.Errorf("invalid default approver id: %w", err)
		}
		defaultApprover = shared.NewActorRef(id, shared.ActorKind(cfg.Billing.DefaultApproverKind))
	}
	lookups := make(map[shared.ActorKind]approvalapp.ActorLookup)
	for kind, lookup := range persistence.NewGormActorLookups(db.DB) {
		lookups[kind] = lookup
	}
	directory := approvalapp.NewActorDirectory(lookups, defaultApprover)

	requests := approvalapp.NewRequestService(requestRepo, directory, transactor, bus, retries, log.Named("request_service"),
		approvalapp.NewPaymentRecoveryHandler(receiptService),
		approvalapp.NewInstallmentApprovalHandler(installments),
		approvalapp.NewWithdrawalHandler(walletService),
		approvalapp.NewIncreaseCostHandler(costs),
		approvalapp.GeneralHandler{},
	)

	return &app{
		installments: installments,
		ledger:       ledger,
		requests:     requests,
		directory:    directory,
	}, nil
}

func projectArg(args []string) (uuid.UUID, error) {
	if len(args) < 2 {
		return uuid.Nil, fmt.Errorf("%s requires a project id", args[0])
	}
	id, err := uuid.Parse(args[1])
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid project id %q: %w", args[1], err)
	}
	return id, nil
}

func recipientArg(ctx context.Context, directory *approvalapp.ActorDirectory, args []string) (shared.ActorRef, error) {
	if len(args) >= 2 {
		return shared.ParseActorRef(args[1])
	}
	return directory.DefaultApprover(ctx)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
