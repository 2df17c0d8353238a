package approval

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	billingapp "github.com/erp/projectbilling/internal/application/billing"
	"github.com/erp/projectbilling/internal/domain/approval"
	"github.com/erp/projectbilling/internal/domain/billing"
	"github.com/erp/projectbilling/internal/domain/shared"
)

func TestRequestService_CreateDefaultsRecipient(t *testing.T) {
	f := newFixture(t)

	req := f.create(t, CreateRequestInput{Type: approval.RequestTypeGeneral, Description: "Site visit next week"})
	assert.Equal(t, f.admin, req.Recipient)
	assert.Equal(t, approval.RequestStatusPending, req.Status)
	assert.Equal(t, "finance", req.Module)
	assert.Equal(t, 1, f.publisher.Count(approval.EventTypeRequestCreated))

	pending, err := f.service.ListPendingForRecipient(context.Background(), f.admin, shared.DefaultFilter())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, req.ID, pending[0].ID)
}

func TestRequestService_CreateRejectsUnknownActors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.service.Create(ctx, CreateRequestInput{
		Type:        approval.RequestTypeGeneral,
		Title:       "hello",
		RequestedBy: shared.NewActorRef(uuid.New(), shared.ActorKindSales),
	})
	assert.True(t, shared.IsNotFound(err))

	_, err = f.service.Create(ctx, CreateRequestInput{
		Type:        approval.RequestTypeGeneral,
		Title:       "hello",
		RequestedBy: f.seller,
		Recipient:   shared.NewActorRef(uuid.New(), shared.ActorKindClient),
	})
	assert.True(t, shared.IsValidation(err))

	_, err = f.service.Create(ctx, CreateRequestInput{Type: approval.RequestTypeGeneral, RequestedBy: f.seller})
	assert.True(t, shared.IsValidation(err))
}

func TestRequestService_IncreaseCostApproval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	project := f.createProject(t, "100000")

	req := f.create(t, CreateRequestInput{
		Type:     approval.RequestTypeIncreaseCost,
		Amount:   decPtr("20000"),
		Metadata: approval.Metadata{ProjectID: &project.ID, PreviousCost: decPtr("100000")},
	})

	result, err := f.approve(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.RequestStatusApproved, result.Request.Status)
	require.NotNil(t, result.Request.Metadata.CostChangeRecorded)

	stored := f.reloadProject(t, project.ID)
	assert.True(t, stored.TotalCost().Equal(dec("120000")))
	require.Len(t, stored.CostHistory, 1)
	entry := stored.CostHistory[0]
	assert.Equal(t, *result.Request.Metadata.CostChangeRecorded, entry.ID)
	assert.Equal(t, f.seller, entry.ChangedBy)
	require.NotNil(t, entry.ApprovedBy)
	assert.Equal(t, f.admin, *entry.ApprovedBy)
	require.NotNil(t, entry.RequestID)
	assert.Equal(t, req.ID, *entry.RequestID)
	assert.True(t, stored.FinancialDetails.RemainingAmount.Equal(dec("120000")))

	_, err = f.approve(ctx, req.ID)
	assert.True(t, shared.IsAlreadyHandled(err))
	assert.Len(t, f.reloadProject(t, project.ID).CostHistory, 1)
}

func TestRequestService_ConcurrentInstallmentApprovals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	project := f.createProject(t, "100000")
	added, err := f.installments.Add(ctx, billingapp.AddInstallmentsInput{
		ProjectID:    project.ID,
		Installments: []billing.InstallmentSpec{{Amount: dec("40000"), DueDate: time.Now().AddDate(0, 1, 0)}},
		Actor:        f.seller,
	})
	require.NoError(t, err)
	instID := added.Installments[0].ID

	req := f.create(t, CreateRequestInput{
		Type:     approval.RequestTypeApproval,
		Metadata: approval.Metadata{ProjectID: &project.ID, InstallmentID: &instID},
	})

	const callers = 2
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, results[i] = f.approve(ctx, req.ID)
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded, handled := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case shared.IsAlreadyHandled(err):
			handled++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, handled)

	assert.Equal(t, 1, f.ledger.Count())
	stored := f.reloadProject(t, project.ID)
	assert.True(t, stored.InstallmentByID(instID).IsPaid())
	assert.True(t, stored.FinancialDetails.RemainingAmount.Equal(dec("60000")))

	final, err := f.service.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.RequestStatusApproved, final.Status)
	assert.NotNil(t, final.Metadata.LedgerTransactionRecorded)
}

func TestRequestService_PaymentRecovery(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	project := f.createProject(t, "100000")
	receipt, err := f.receiptSvc.Submit(ctx, billingapp.SubmitReceiptInput{
		ProjectID:   project.ID,
		Amount:      dec("20000"),
		Method:      billing.PaymentMethodUPI,
		SubmittedBy: f.seller,
	})
	require.NoError(t, err)

	req := f.create(t, CreateRequestInput{
		Type:     approval.RequestTypePaymentRecovery,
		Metadata: approval.Metadata{PaymentReceiptID: &receipt.ID, ProjectID: &project.ID},
	})
	result, err := f.approve(ctx, req.ID)
	require.NoError(t, err)
	assert.False(t, result.SideEffects.Degraded(), result.SideEffects.Reasons())
	assert.NotNil(t, result.Request.Metadata.LedgerTransactionRecorded)

	stored, err := f.receipts.FindByID(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.ReceiptStatusApproved, stored.Status)
	require.NotNil(t, stored.VerifiedBy)
	assert.Equal(t, f.admin, *stored.VerifiedBy)

	p := f.reloadProject(t, project.ID)
	assert.True(t, p.FinancialDetails.RemainingAmount.Equal(dec("80000")))
	assert.True(t, p.FinancialDetails.AdvanceReceived.Equal(dec("20000")))
	assert.Equal(t, 1, f.ledger.Count())
}

func TestRequestService_RequestConflictRollsBackInstallmentPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	project := f.createProject(t, "100000")
	added, err := f.installments.Add(ctx, billingapp.AddInstallmentsInput{
		ProjectID:    project.ID,
		Installments: []billing.InstallmentSpec{{Amount: dec("40000"), DueDate: time.Now().AddDate(0, 1, 0)}},
		Actor:        f.seller,
	})
	require.NoError(t, err)
	instID := added.Installments[0].ID
	req := f.create(t, CreateRequestInput{
		Type:     approval.RequestTypeApproval,
		Metadata: approval.Metadata{ProjectID: &project.ID, InstallmentID: &instID},
	})

	f.requests.InjectConflicts(1)
	result, err := f.approve(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.RequestStatusApproved, result.Request.Status)

	final, err := f.service.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.RequestStatusApproved, final.Status)
	stored := f.reloadProject(t, project.ID)
	assert.True(t, stored.InstallmentByID(instID).IsPaid())
	assert.True(t, stored.FinancialDetails.RemainingAmount.Equal(dec("60000")))
	assert.Equal(t, 1, f.ledger.Count())
}

func TestRequestService_ProjectConflictDuringPaymentRecovery(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	project := f.createProject(t, "100000")
	receipt, err := f.receiptSvc.Submit(ctx, billingapp.SubmitReceiptInput{ProjectID: project.ID, Amount: dec("20000"), SubmittedBy: f.seller})
	require.NoError(t, err)
	req := f.create(t, CreateRequestInput{
		Type:     approval.RequestTypePaymentRecovery,
		Metadata: approval.Metadata{PaymentReceiptID: &receipt.ID, ProjectID: &project.ID},
	})

	f.projects.InjectConflicts(1)
	_, err = f.approve(ctx, req.ID)
	require.NoError(t, err)

	stored, err := f.receipts.FindByID(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.ReceiptStatusApproved, stored.Status)
	p := f.reloadProject(t, project.ID)
	assert.True(t, p.FinancialDetails.RemainingAmount.Equal(dec("80000")))
	assert.Equal(t, 1, f.ledger.Count())
}

func TestRequestService_NilTransactorPanics(t *testing.T) {
	f := newFixture(t)
	assert.Panics(t, func() {
		NewRequestService(f.requests, f.directory, nil, f.publisher, 0, zap.NewNop())
	})
}

func TestRequestService_PaymentRecoveryReject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	project := f.createProject(t, "100000")
	receipt, err := f.receiptSvc.Submit(ctx, billingapp.SubmitReceiptInput{ProjectID: project.ID, Amount: dec("5000"), SubmittedBy: f.seller})
	require.NoError(t, err)
	req := f.create(t, CreateRequestInput{
		Type:     approval.RequestTypePaymentRecovery,
		Metadata: approval.Metadata{PaymentReceiptID: &receipt.ID},
	})

	_, err = f.service.Respond(ctx, RespondInput{RequestID: req.ID, ResponseType: approval.ResponseReject, Actor: f.admin})
	assert.True(t, shared.IsValidation(err), "reject needs a message")

	result, err := f.service.Respond(ctx, RespondInput{RequestID: req.ID, ResponseType: approval.ResponseReject, Message: "Not credited", Actor: f.admin})
	require.NoError(t, err)
	assert.Equal(t, approval.RequestStatusRejected, result.Request.Status)

	stored, err := f.receipts.FindByID(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.ReceiptStatusRejected, stored.Status)
	assert.Equal(t, "Not credited", stored.RejectReason)
	assert.Equal(t, 0, f.ledger.Count())
}

func TestRequestService_Withdrawal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	wallet, err := billing.NewWallet(f.partner)
	require.NoError(t, err)
	_, err = wallet.Credit(billing.WalletMovement{Amount: dec("1000"), SourceType: "commission", SourceID: uuid.New()}, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.wallets.Save(ctx, wallet))

	req := f.create(t, CreateRequestInput{
		Type:        approval.RequestTypeWithdrawal,
		RequestedBy: f.partner,
		Amount:      decPtr("300"),
	})
	result, err := f.approve(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, result.Request.Metadata.WalletEntryRecorded)

	stored, err := f.wallets.FindByHolder(ctx, f.partner)
	require.NoError(t, err)
	assert.True(t, stored.Balance.Equal(dec("700")))
	assert.Equal(t, 1, f.publisher.Count(billing.EventTypeWalletDebited))
}

func TestRequestService_WithdrawalOverBalanceLeavesRequestPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	wallet, err := billing.NewWallet(f.partner)
	require.NoError(t, err)
	require.NoError(t, f.wallets.Save(ctx, wallet))

	req := f.create(t, CreateRequestInput{Type: approval.RequestTypeWithdrawal, RequestedBy: f.partner, Amount: decPtr("300")})
	_, err = f.approve(ctx, req.ID)
	require.Error(t, err)
	assert.True(t, shared.IsInvariant(err))

	stored, err := f.service.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.RequestStatusPending, stored.Status)
}

func TestRequestService_RequestChangesIsTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	project := f.createProject(t, "100000")
	req := f.create(t, CreateRequestInput{
		Type:     approval.RequestTypeIncreaseCost,
		Amount:   decPtr("5000"),
		Metadata: approval.Metadata{ProjectID: &project.ID},
	})

	result, err := f.service.Respond(ctx, RespondInput{
		RequestID:    req.ID,
		ResponseType: approval.ResponseRequestChanges,
		Message:      "Attach the revised drawings",
		Actor:        f.admin,
	})
	require.NoError(t, err)
	assert.Equal(t, approval.RequestStatusResponded, result.Request.Status)
	assert.True(t, f.reloadProject(t, project.ID).TotalCost().Equal(dec("100000")))

	_, err = f.approve(ctx, req.ID)
	assert.True(t, shared.IsAlreadyHandled(err))
}

func TestRequestService_OnlyRecipientResponds(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, CreateRequestInput{Type: approval.RequestTypeGeneral})

	_, err := f.service.Respond(context.Background(), RespondInput{
		RequestID:    req.ID,
		ResponseType: approval.ResponseApprove,
		Actor:        f.seller,
	})
	assert.True(t, shared.IsForbidden(err))
}

func TestRequestService_RespondUnknownRequest(t *testing.T) {
	f := newFixture(t)
	_, err := f.approve(context.Background(), uuid.New())
	assert.ErrorIs(t, err, approval.ErrRequestNotFound)
}

func TestRequestService_UnsupportedType(t *testing.T) {
	f := newFixture(t)
	svc := NewRequestService(f.requests, f.directory, f.tx, nil, 0, zap.NewNop())
	req := f.create(t, CreateRequestInput{Type: approval.RequestTypeGeneral})

	_, err := svc.Respond(context.Background(), RespondInput{RequestID: req.ID, ResponseType: approval.ResponseApprove, Actor: f.admin})
	assert.True(t, shared.IsValidation(err))
}
