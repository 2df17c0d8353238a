package billing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/projectbilling/internal/domain/billing"
	"github.com/erp/projectbilling/internal/domain/shared"
)

func (f *fixture) submitReceipt(t *testing.T, projectID uuid.UUID, amount string) *billing.PaymentReceipt {
	t.Helper()
	receipt, err := f.receiptSvc.Submit(context.Background(), SubmitReceiptInput{
		ProjectID:   projectID,
		Amount:      dec(amount),
		Account:     "HDFC current",
		Method:      billing.PaymentMethodBankTransfer,
		SubmittedBy: salesActor(),
	})
	require.NoError(t, err)
	return receipt
}

func TestPaymentReceiptService_ApproveCountsTowardsReceived(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	project := f.createProject(t, "100000")
	inst := f.addPending(t, project.ID, "40000")
	_, err := f.installments.ApplyInstallmentPayment(ctx, project.ID, inst.ID, adminActor())
	require.NoError(t, err)

	receipt := f.submitReceipt(t, project.ID, "20000")
	assert.Equal(t, billing.ReceiptStatusPending, receipt.Status)

	result, err := f.receiptSvc.Verify(ctx, VerifyReceiptInput{
		ReceiptID: receipt.ID,
		Decision:  ReceiptDecisionApprove,
		Verifier:  adminActor(),
	})
	require.NoError(t, err)
	assert.False(t, result.SideEffects.Degraded(), result.SideEffects.Reasons())
	assert.True(t, result.Snapshot.Remaining.Equal(dec("40000")))
	require.NotNil(t, result.Ledger)
	assert.Equal(t, billing.SourceTypePaymentReceipt, result.Ledger.Transaction.Metadata.Source.Type)

	stored := f.reload(t, project.ID)
	assert.True(t, stored.FinancialDetails.RemainingAmount.Equal(dec("40000")))
	assert.True(t, stored.FinancialDetails.AdvanceReceived.Equal(dec("60000")))
	assert.Equal(t, 2, f.ledgerDB.Count())
	assert.Equal(t, 1, f.publisher.Count(billing.EventTypePaymentReceiptApproved))
}

func TestPaymentReceiptService_VerifyOnlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	project := f.createProject(t, "100000")
	receipt := f.submitReceipt(t, project.ID, "5000")

	_, err := f.receiptSvc.Verify(ctx, VerifyReceiptInput{ReceiptID: receipt.ID, Decision: ReceiptDecisionApprove, Verifier: adminActor()})
	require.NoError(t, err)

	_, err = f.receiptSvc.Verify(ctx, VerifyReceiptInput{ReceiptID: receipt.ID, Decision: ReceiptDecisionReject, Reason: "late", Verifier: adminActor()})
	require.Error(t, err)
	assert.True(t, shared.IsAlreadyHandled(err))
	assert.True(t, f.reload(t, project.ID).FinancialDetails.RemainingAmount.Equal(dec("95000")))
}

func TestPaymentReceiptService_ProjectConflictRollsBackApproval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	project := f.createProject(t, "100000")
	receipt := f.submitReceipt(t, project.ID, "20000")

	f.projects.InjectConflicts(1)
	result, err := f.receiptSvc.Verify(ctx, VerifyReceiptInput{
		ReceiptID: receipt.ID,
		Decision:  ReceiptDecisionApprove,
		Verifier:  adminActor(),
	})
	require.NoError(t, err)
	assert.True(t, result.Snapshot.Remaining.Equal(dec("80000")))

	stored := f.reload(t, project.ID)
	assert.True(t, stored.FinancialDetails.RemainingAmount.Equal(dec("80000")))
	assert.True(t, stored.FinancialDetails.AdvanceReceived.Equal(dec("20000")))
	approved, err := f.receipts.FindByID(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.ReceiptStatusApproved, approved.Status)
	assert.Equal(t, 1, f.ledgerDB.Count())
	assert.Equal(t, 1, f.publisher.Count(billing.EventTypePaymentReceiptApproved))
}

func TestPaymentReceiptService_NilTransactorPanics(t *testing.T) {
	f := newFixture(t)
	assert.Panics(t, func() {
		NewPaymentReceiptService(f.receipts, f.projects, f.recalculator, f.ledger, nil, f.publisher, DefaultConflictRetries, zap.NewNop())
	})
}

func TestPaymentReceiptService_RejectLeavesBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	project := f.createProject(t, "100000")
	receipt := f.submitReceipt(t, project.ID, "5000")

	result, err := f.receiptSvc.Verify(ctx, VerifyReceiptInput{
		ReceiptID: receipt.ID,
		Decision:  ReceiptDecisionReject,
		Reason:    "cheque bounced",
		Verifier:  adminActor(),
	})
	require.NoError(t, err)
	assert.Nil(t, result.Project)
	assert.Nil(t, result.Ledger)
	assert.Equal(t, "cheque bounced", result.Receipt.RejectReason)
	assert.True(t, f.reload(t, project.ID).FinancialDetails.RemainingAmount.Equal(dec("100000")))
	assert.Equal(t, 0, f.ledgerDB.Count())
}

func TestPaymentReceiptService_SubmitValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	project := f.createProject(t, "100000")

	tests := []struct {
		name  string
		input SubmitReceiptInput
		check func(error) bool
	}{
		{"zero amount", SubmitReceiptInput{ProjectID: project.ID, Amount: dec("0"), SubmittedBy: salesActor()}, shared.IsValidation},
		{"bad method", SubmitReceiptInput{ProjectID: project.ID, Amount: dec("1"), Method: "barter", SubmittedBy: salesActor()}, shared.IsValidation},
		{"missing project", SubmitReceiptInput{Amount: dec("1"), SubmittedBy: salesActor()}, shared.IsValidation},
		{"unknown project", SubmitReceiptInput{ProjectID: uuid.New(), Amount: dec("1"), SubmittedBy: salesActor()}, shared.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.receiptSvc.Submit(ctx, tt.input)
			require.Error(t, err)
			assert.True(t, tt.check(err), err.Error())
		})
	}
}

func TestPaymentReceiptService_ListByProject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	project := f.createProject(t, "100000")
	f.submitReceipt(t, project.ID, "1000")
	approved := f.submitReceipt(t, project.ID, "2000")
	_, err := f.receiptSvc.Verify(ctx, VerifyReceiptInput{ReceiptID: approved.ID, Decision: ReceiptDecisionApprove, Verifier: adminActor()})
	require.NoError(t, err)

	all, err := f.receiptSvc.ListByProject(ctx, project.ID, nil, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Len(t, all, 2)

	status := billing.ReceiptStatusApproved
	only, err := f.receiptSvc.ListByProject(ctx, project.ID, &status, shared.DefaultFilter())
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, approved.ID, only[0].ID)

	bad := billing.ReceiptStatus("lost")
	_, err = f.receiptSvc.ListByProject(ctx, project.ID, &bad, shared.DefaultFilter())
	assert.True(t, shared.IsValidation(err))
}
