package billing

import (
	"time"

	"github.com/erp/projectbilling/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PlanTotals holds the sums of an installment plan
type PlanTotals struct {
	Total   decimal.Decimal `json:"total"`
	Paid    decimal.Decimal `json:"paid"`
	Pending decimal.Decimal `json:"pending"` // everything not paid, overdue included
}

// CalculateTotals sums installment amounts, bucketed by paid vs not paid.
// Negative or unset amounts count as zero.
func CalculateTotals(installments []Installment) PlanTotals {
	totals := PlanTotals{Total: decimal.Zero, Paid: decimal.Zero, Pending: decimal.Zero}
	for i := range installments {
		amount := valueobject.NonNegative(installments[i].Amount)
		totals.Total = totals.Total.Add(amount)
		if installments[i].IsPaid() {
			totals.Paid = totals.Paid.Add(amount)
		} else {
			totals.Pending = totals.Pending.Add(amount)
		}
	}
	return totals
}

// FinancialSnapshot is the outcome of a recalculation
type FinancialSnapshot struct {
	TotalCost        decimal.Decimal `json:"total_cost"`
	ApprovedReceipts decimal.Decimal `json:"approved_receipts"`
	PaidInstallments decimal.Decimal `json:"paid_installments"`
	TotalReceived    decimal.Decimal `json:"total_received"`
	Remaining        decimal.Decimal `json:"remaining"`
}

// ApplyFinancials derives the outstanding balance from the approved receipt
// sum and the paid installments, and writes it into FinancialDetails.
// When totals is nil the paid sum is recomputed from the plan.
// AdvanceReceived is always overwritten with the total received.
func (p *Project) ApplyFinancials(approvedReceipts decimal.Decimal, totals *PlanTotals, now time.Time) FinancialSnapshot {
	var paid decimal.Decimal
	if totals != nil {
		paid = totals.Paid
	} else {
		paid = p.PlanTotals().Paid
	}

	totalCost := valueobject.RoundToUnit(p.TotalCost())
	receipts := valueobject.RoundToUnit(valueobject.NonNegative(approvedReceipts))
	paid = valueobject.RoundToUnit(paid)
	received := receipts.Add(paid)
	remaining := valueobject.NonNegative(totalCost.Sub(received))

	snapshot := FinancialSnapshot{
		TotalCost:        totalCost,
		ApprovedReceipts: receipts,
		PaidInstallments: paid,
		TotalReceived:    received,
		Remaining:        remaining,
	}

	changed := !p.FinancialDetails.AdvanceReceived.Equal(received) ||
		!p.FinancialDetails.RemainingAmount.Equal(remaining)
	p.FinancialDetails.AdvanceReceived = received
	p.FinancialDetails.RemainingAmount = remaining
	if changed {
		p.Touch(now)
		p.AddDomainEvent(NewProjectFinancialsRecalculatedEvent(p, snapshot))
	}
	return snapshot
}
