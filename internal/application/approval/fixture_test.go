package approval

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	billingapp "github.com/erp/projectbilling/internal/application/billing"
	"github.com/erp/projectbilling/internal/domain/approval"
	"github.com/erp/projectbilling/internal/domain/billing"
	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/erp/projectbilling/internal/infrastructure/cache"
	"github.com/erp/projectbilling/tests/testutil"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// fixture wires the request service and every side effect handler over
// in-memory repositories. admin is the default approver.
type fixture struct {
	projects  *testutil.MemoryProjectRepository
	receipts  *testutil.MemoryPaymentReceiptRepository
	ledger    *testutil.MemoryLedgerRepository
	wallets   *testutil.MemoryWalletRepository
	entries   *testutil.MemoryWalletEntryRepository
	requests  *testutil.MemoryRequestRepository
	publisher *testutil.RecordingPublisher
	tx        *testutil.MemoryTransactor

	admins   *testutil.MemoryActorLookup
	sales    *testutil.MemoryActorLookup
	partners *testutil.MemoryActorLookup

	admin   shared.ActorRef
	seller  shared.ActorRef
	partner shared.ActorRef

	installments *billingapp.InstallmentService
	receiptSvc   *billingapp.PaymentReceiptService
	walletSvc    *billingapp.WalletService
	directory    *ActorDirectory
	service      *RequestService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zap.NewNop()
	f := &fixture{
		projects:  testutil.NewMemoryProjectRepository(),
		receipts:  testutil.NewMemoryPaymentReceiptRepository(),
		ledger:    testutil.NewMemoryLedgerRepository(),
		wallets:   testutil.NewMemoryWalletRepository(),
		entries:   testutil.NewMemoryWalletEntryRepository(),
		requests:  testutil.NewMemoryRequestRepository(),
		publisher: testutil.NewRecordingPublisher(),
		admin:     shared.NewActorRef(uuid.New(), shared.ActorKindAdmin),
		seller:    shared.NewActorRef(uuid.New(), shared.ActorKindSales),
		partner:   shared.NewActorRef(uuid.New(), shared.ActorKindChannelPartner),
	}
	f.admins = testutil.NewMemoryActorLookup(shared.Actor{Ref: f.admin, Name: "Asha", Active: true})
	f.sales = testutil.NewMemoryActorLookup(shared.Actor{Ref: f.seller, Name: "Ravi", Active: true})
	f.partners = testutil.NewMemoryActorLookup(shared.Actor{Ref: f.partner, Name: "Northwind Realty", Active: true})

	f.tx = testutil.NewMemoryTransactor(f.projects, f.receipts, f.ledger, f.wallets, f.entries, f.requests)

	claims := cache.NewInMemoryClaimStore()
	t.Cleanup(func() { _ = claims.Close() })

	recalculator := billingapp.NewRecalculator(f.receipts)
	ledger := billingapp.NewLedgerSyncService(f.ledger, f.projects, claims, time.Minute, log)
	f.installments = billingapp.NewInstallmentService(f.projects, recalculator, ledger, f.tx, f.publisher, billingapp.DefaultConflictRetries, log)
	f.receiptSvc = billingapp.NewPaymentReceiptService(f.receipts, f.projects, recalculator, ledger, f.tx, f.publisher, billingapp.DefaultConflictRetries, log)
	costs := billingapp.NewCostRevisionService(f.projects, recalculator, f.tx, f.publisher, billingapp.DefaultConflictRetries, log)
	f.walletSvc = billingapp.NewWalletService(f.wallets, f.entries, log)

	f.directory = NewActorDirectory(map[shared.ActorKind]ActorLookup{
		shared.ActorKindAdmin:          f.admins,
		shared.ActorKindSales:          f.sales,
		shared.ActorKindChannelPartner: f.partners,
	}, f.admin)
	f.service = NewRequestService(f.requests, f.directory, f.tx, f.publisher, billingapp.DefaultConflictRetries, log,
		NewPaymentRecoveryHandler(f.receiptSvc),
		NewInstallmentApprovalHandler(f.installments),
		NewWithdrawalHandler(f.walletSvc),
		NewIncreaseCostHandler(costs),
		GeneralHandler{},
	)
	return f
}

func (f *fixture) createProject(t *testing.T, totalCost string) *billing.Project {
	t.Helper()
	p, err := billing.NewProject("Lake View Apartment", uuid.New(), dec(totalCost), true)
	require.NoError(t, err)
	require.NoError(t, f.projects.Save(context.Background(), p))
	return p
}

func (f *fixture) reloadProject(t *testing.T, id uuid.UUID) *billing.Project {
	t.Helper()
	p, err := f.projects.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func (f *fixture) create(t *testing.T, input CreateRequestInput) *approval.Request {
	t.Helper()
	if input.Title == "" {
		input.Title = string(input.Type) + " request"
	}
	if input.RequestedBy.IsZero() {
		input.RequestedBy = f.seller
	}
	req, err := f.service.Create(context.Background(), input)
	require.NoError(t, err)
	return req
}

func (f *fixture) approve(ctx context.Context, id uuid.UUID) (*RespondResult, error) {
	return f.service.Respond(ctx, RespondInput{RequestID: id, ResponseType: approval.ResponseApprove, Actor: f.admin})
}
