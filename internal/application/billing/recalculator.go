package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/projectbilling/internal/domain/billing"
	"github.com/erp/projectbilling/internal/infrastructure/telemetry"
)

// Recalculator derives a project's outstanding balance from its approved
// payment receipts and paid installments. It must run before any save that
// touches installments, receipts or cost.
type Recalculator struct {
	receiptRepo billing.PaymentReceiptRepository
	clock       func() time.Time
}

// NewRecalculator creates a new Recalculator
func NewRecalculator(receiptRepo billing.PaymentReceiptRepository) *Recalculator {
	return &Recalculator{
		receiptRepo: receiptRepo,
		clock:       time.Now,
	}
}

// Recalculate refreshes installment statuses, sums approved receipts and
// writes the resulting balance into the project. totals may be nil, in which
// case the paid installment sum is recomputed from the plan.
// The project is not persisted.
func (r *Recalculator) Recalculate(ctx context.Context, project *billing.Project, totals *billing.PlanTotals) (billing.FinancialSnapshot, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "billing", "recalculate")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrProjectID, project.ID.String())

	now := r.clock()
	project.RefreshInstallmentStatuses(now)

	approved, err := r.receiptRepo.SumApprovedByProject(ctx, project.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return billing.FinancialSnapshot{}, fmt.Errorf("failed to sum approved receipts: %w", err)
	}

	snapshot := project.ApplyFinancials(approved, totals, now)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrAmount, snapshot.TotalReceived.String(),
		"remaining_amount", snapshot.Remaining.String(),
	)
	return snapshot, nil
}
