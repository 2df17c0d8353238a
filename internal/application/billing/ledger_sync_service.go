package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/projectbilling/internal/domain/billing"
	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/erp/projectbilling/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultSyncSweepTTL throttles the read-triggered sweep of one project version
const DefaultSyncSweepTTL = time.Minute

// LedgerResult is the outcome of CreateIncoming
type LedgerResult struct {
	Transaction *billing.LedgerTransaction
	Created     bool // false when an existing transaction for the source was returned
}

// SyncReport describes one sweep over a project's paid installments
type SyncReport struct {
	ProjectID uuid.UUID `json:"project_id"`
	Created   int       `json:"created"`
	Existing  int       `json:"existing"`
	Failed    int       `json:"failed"`
	Skipped   bool      `json:"skipped"` // another caller swept this project version recently
	Degraded  bool      `json:"degraded"`
	Reason    string    `json:"reason,omitempty"`
}

// SideEffect converts the report into a side effect outcome
func (r SyncReport) SideEffect() SideEffect {
	return SideEffect{Name: SideEffectLedgerSync, Degraded: r.Degraded, Reason: r.Reason}
}

// LedgerSyncService creates ledger transactions idempotently, keyed by
// (source type, source id), and heals paid installments that have none.
type LedgerSyncService struct {
	ledgerRepo  billing.LedgerTransactionRepository
	projectRepo billing.ProjectRepository
	claims      shared.ClaimStore
	sweepTTL    time.Duration
	group       singleflight.Group
	logger      *zap.Logger
	clock       func() time.Time
}

// NewLedgerSyncService creates a new LedgerSyncService.
// claims may be nil, in which case every read sweeps.
func NewLedgerSyncService(
	ledgerRepo billing.LedgerTransactionRepository,
	projectRepo billing.ProjectRepository,
	claims shared.ClaimStore,
	sweepTTL time.Duration,
	logger *zap.Logger,
) *LedgerSyncService {
	if sweepTTL <= 0 {
		sweepTTL = DefaultSyncSweepTTL
	}
	return &LedgerSyncService{
		ledgerRepo:  ledgerRepo,
		projectRepo: projectRepo,
		claims:      claims,
		sweepTTL:    sweepTTL,
		logger:      logger,
		clock:       time.Now,
	}
}

// CreateIncoming stores an incoming ledger transaction.
// With checkDuplicate an existing transaction for the same source is
// returned unchanged. Storage rejects duplicates regardless, so a lost race
// also returns the stored transaction with Created=false.
func (s *LedgerSyncService) CreateIncoming(ctx context.Context, spec billing.IncomingTransactionSpec, checkDuplicate bool) (*LedgerResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "create_incoming")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSourceType, spec.Metadata.Source.Type.String(),
		telemetry.SpanAttrSourceID, spec.Metadata.Source.ID.String(),
		telemetry.SpanAttrAmount, spec.Amount.String(),
	)

	tx, err := billing.NewIncomingTransaction(spec, s.clock())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if checkDuplicate {
		existing, err := s.ledgerRepo.FindBySource(ctx, spec.Metadata.Source)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to look up ledger transaction: %w", err)
		}
		if existing != nil {
			telemetry.AddEvent(span, "duplicate_source")
			return &LedgerResult{Transaction: existing, Created: false}, nil
		}
	}

	stored, created, err := s.ledgerRepo.CreateIfAbsent(ctx, tx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to create ledger transaction: %w", err)
	}
	if created {
		s.logger.Info("ledger transaction created",
			zap.String("transaction_id", stored.ID.String()),
			zap.String("source", spec.Metadata.Source.String()),
			zap.String("amount", stored.Amount.String()),
		)
	}
	return &LedgerResult{Transaction: stored, Created: created}, nil
}

// RecordInstallmentPayment best-effort creates the ledger transaction of a
// paid installment. Failures are logged and reported as a degraded side effect.
func (s *LedgerSyncService) RecordInstallmentPayment(ctx context.Context, project *billing.Project, inst billing.Installment, actor shared.ActorRef) (*LedgerResult, SideEffect) {
	return s.recordBestEffort(ctx, billing.InstallmentTransactionSpec(project, inst, actor))
}

// RecordReceiptPayment best-effort creates the ledger transaction of an
// approved payment receipt.
func (s *LedgerSyncService) RecordReceiptPayment(ctx context.Context, receipt *billing.PaymentReceipt, projectName string) (*LedgerResult, SideEffect) {
	return s.recordBestEffort(ctx, billing.ReceiptTransactionSpec(receipt, projectName))
}

func (s *LedgerSyncService) recordBestEffort(ctx context.Context, spec billing.IncomingTransactionSpec) (*LedgerResult, SideEffect) {
	result, err := s.CreateIncoming(ctx, spec, true)
	if err != nil {
		s.logger.Warn("failed to record ledger transaction",
			zap.String("source", spec.Metadata.Source.String()),
			zap.String("project_id", spec.ProjectID.String()),
			zap.Error(err),
		)
		return nil, Degraded(SideEffectLedger, err)
	}
	return result, Applied(SideEffectLedger)
}

// SyncMissingForPaidInstallments creates the ledger transaction of every paid
// installment that lacks one. Failures are logged and reported, never returned.
// Concurrent sweeps of one project are collapsed, and a project version that
// was swept within the sweep TTL is skipped.
func (s *LedgerSyncService) SyncMissingForPaidInstallments(ctx context.Context, project *billing.Project, actor shared.ActorRef) SyncReport {
	key := fmt.Sprintf("ledger-sync:%s:%d", project.ID, project.GetVersion())

	if s.claims != nil {
		claimed, err := s.claims.Claim(ctx, key, s.sweepTTL)
		if err != nil {
			s.logger.Warn("ledger sync claim failed, sweeping anyway",
				zap.String("project_id", project.ID.String()),
				zap.Error(err),
			)
		} else if !claimed {
			return SyncReport{ProjectID: project.ID, Skipped: true}
		}
	}

	v, _, _ := s.group.Do(key, func() (interface{}, error) {
		return s.sweep(ctx, project, actor), nil
	})
	report := v.(SyncReport)

	if report.Failed > 0 && s.claims != nil {
		if err := s.claims.Release(ctx, key); err != nil {
			s.logger.Warn("failed to release ledger sync claim", zap.String("key", key), zap.Error(err))
		}
	}
	return report
}

func (s *LedgerSyncService) sweep(ctx context.Context, project *billing.Project, actor shared.ActorRef) SyncReport {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "sync_paid_installments")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrProjectID, project.ID.String())

	report := SyncReport{ProjectID: project.ID}
	paid := project.PaidInstallments()
	if len(paid) == 0 {
		return report
	}

	existing, err := s.ledgerRepo.ExistingSourceIDs(ctx, project.ID, billing.SourceTypeProjectInstallment)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Warn("ledger sync could not list existing transactions",
			zap.String("project_id", project.ID.String()),
			zap.Error(err),
		)
		report.Failed = len(paid)
		report.Degraded = true
		report.Reason = err.Error()
		return report
	}

	for _, inst := range paid {
		if _, ok := existing[inst.ID]; ok {
			report.Existing++
			continue
		}
		result, err := s.CreateIncoming(ctx, billing.InstallmentTransactionSpec(project, inst, actor), true)
		if err != nil {
			s.logger.Warn("ledger sync failed for installment",
				zap.String("project_id", project.ID.String()),
				zap.String("installment_id", inst.ID.String()),
				zap.Error(err),
			)
			report.Failed++
			report.Degraded = true
			report.Reason = err.Error()
			continue
		}
		if result.Created {
			report.Created++
		} else {
			report.Existing++
		}
	}

	if report.Created > 0 || report.Failed > 0 {
		s.logger.Info("ledger sync completed",
			zap.String("project_id", project.ID.String()),
			zap.Int("created", report.Created),
			zap.Int("existing", report.Existing),
			zap.Int("failed", report.Failed),
		)
	}
	telemetry.SetAttributes(span, "created", report.Created, "failed", report.Failed)
	return report
}

// ListByProject returns the ledger of a project after healing missing
// installment transactions.
func (s *LedgerSyncService) ListByProject(ctx context.Context, projectID uuid.UUID, actor shared.ActorRef) ([]billing.LedgerTransaction, SyncReport, error) {
	project, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return nil, SyncReport{}, fmt.Errorf("failed to load project: %w", err)
	}
	if project == nil {
		return nil, SyncReport{}, billing.ErrProjectNotFound
	}

	report := s.SyncMissingForPaidInstallments(ctx, project, actor)

	txs, err := s.ledgerRepo.FindByProject(ctx, projectID)
	if err != nil {
		return nil, report, fmt.Errorf("failed to list ledger transactions: %w", err)
	}
	return txs, report, nil
}
