package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/projectbilling/internal/domain/billing"
	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/erp/projectbilling/internal/infrastructure/cache"
	"github.com/erp/projectbilling/tests/testutil"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func salesActor() shared.ActorRef {
	return shared.NewActorRef(uuid.New(), shared.ActorKindSales)
}

func adminActor() shared.ActorRef {
	return shared.NewActorRef(uuid.New(), shared.ActorKindAdmin)
}

func nextMonth() time.Time {
	return time.Now().AddDate(0, 1, 0)
}

// fixture wires every billing service over in-memory repositories
type fixture struct {
	projects  *testutil.MemoryProjectRepository
	receipts  *testutil.MemoryPaymentReceiptRepository
	ledgerDB  *testutil.MemoryLedgerRepository
	wallets   *testutil.MemoryWalletRepository
	entries   *testutil.MemoryWalletEntryRepository
	publisher *testutil.RecordingPublisher
	claims    *cache.InMemoryClaimStore
	tx        *testutil.MemoryTransactor

	recalculator *Recalculator
	ledger       *LedgerSyncService
	installments *InstallmentService
	receiptSvc   *PaymentReceiptService
	costs        *CostRevisionService
	walletSvc    *WalletService
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithLedger(t, nil)
}

// newFixtureWithLedger lets a test replace the ledger repository
func newFixtureWithLedger(t *testing.T, ledgerRepo billing.LedgerTransactionRepository) *fixture {
	t.Helper()
	log := zap.NewNop()
	f := &fixture{
		projects:  testutil.NewMemoryProjectRepository(),
		receipts:  testutil.NewMemoryPaymentReceiptRepository(),
		ledgerDB:  testutil.NewMemoryLedgerRepository(),
		wallets:   testutil.NewMemoryWalletRepository(),
		entries:   testutil.NewMemoryWalletEntryRepository(),
		publisher: testutil.NewRecordingPublisher(),
		claims:    cache.NewInMemoryClaimStore(),
	}
	t.Cleanup(func() { _ = f.claims.Close() })
	if ledgerRepo == nil {
		ledgerRepo = f.ledgerDB
	}
	f.tx = testutil.NewMemoryTransactor(f.projects, f.receipts, f.ledgerDB, f.wallets, f.entries)

	f.recalculator = NewRecalculator(f.receipts)
	f.ledger = NewLedgerSyncService(ledgerRepo, f.projects, f.claims, time.Minute, log)
	f.installments = NewInstallmentService(f.projects, f.recalculator, f.ledger, f.tx, f.publisher, DefaultConflictRetries, log)
	f.receiptSvc = NewPaymentReceiptService(f.receipts, f.projects, f.recalculator, f.ledger, f.tx, f.publisher, DefaultConflictRetries, log)
	f.costs = NewCostRevisionService(f.projects, f.recalculator, f.tx, f.publisher, DefaultConflictRetries, log)
	f.walletSvc = NewWalletService(f.wallets, f.entries, log)
	return f
}

func (f *fixture) createProject(t *testing.T, totalCost string) *billing.Project {
	t.Helper()
	p, err := billing.NewProject("Villa Renovation", uuid.New(), dec(totalCost), false)
	require.NoError(t, err)
	p.ClearDomainEvents()
	require.NoError(t, f.projects.Save(context.Background(), p))
	return p
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *billing.Project {
	t.Helper()
	p, err := f.projects.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func (f *fixture) addPending(t *testing.T, projectID uuid.UUID, amount string) billing.Installment {
	t.Helper()
	result, err := f.installments.Add(context.Background(), AddInstallmentsInput{
		ProjectID:    projectID,
		Installments: []billing.InstallmentSpec{{Amount: dec(amount), DueDate: nextMonth()}},
		Actor:        salesActor(),
	})
	require.NoError(t, err)
	require.Len(t, result.Installments, 1)
	return result.Installments[0]
}
