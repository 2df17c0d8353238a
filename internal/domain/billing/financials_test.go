package billing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateTotals(t *testing.T) {
	plan := []Installment{
		{ID: uuid.New(), Amount: dec("40000"), Status: InstallmentStatusPaid},
		{ID: uuid.New(), Amount: dec("25000.50"), Status: InstallmentStatusPending},
		{ID: uuid.New(), Amount: dec("10000"), Status: InstallmentStatusOverdue},
		{ID: uuid.New(), Amount: dec("-5"), Status: InstallmentStatusPaid},
		{ID: uuid.New(), Status: InstallmentStatusPending},
	}

	totals := CalculateTotals(plan)
	assert.True(t, totals.Total.Equal(dec("75000.50")), totals.Total.String())
	assert.True(t, totals.Paid.Equal(dec("40000")))
	assert.True(t, totals.Pending.Equal(dec("35000.50")))

	empty := CalculateTotals(nil)
	assert.True(t, empty.Total.IsZero())
}

func TestProject_ApplyFinancials(t *testing.T) {
	actor := salesActor()

	t.Run("scenario: paid installment then approved receipt", func(t *testing.T) {
		p := createTestProject(t, "100000")
		added, err := p.AddInstallments([]InstallmentSpec{spec("40000", testNow.AddDate(0, 1, 0))}, actor, testNow)
		require.NoError(t, err)

		snap := p.ApplyFinancials(decimal.Zero, nil, testNow)
		assert.True(t, snap.Remaining.Equal(dec("100000")))
		assert.True(t, p.FinancialDetails.RemainingAmount.Equal(dec("100000")))

		_, err = p.MarkInstallmentPaid(added[0].ID, actor, testNow)
		require.NoError(t, err)
		snap = p.ApplyFinancials(decimal.Zero, nil, testNow)
		assert.True(t, p.FinancialDetails.RemainingAmount.Equal(dec("60000")))
		assert.True(t, snap.PaidInstallments.Equal(dec("40000")))

		snap = p.ApplyFinancials(dec("20000"), nil, testNow)
		assert.True(t, p.FinancialDetails.RemainingAmount.Equal(dec("40000")))
		assert.True(t, p.FinancialDetails.AdvanceReceived.Equal(dec("60000")))
		assert.True(t, snap.TotalReceived.Equal(dec("60000")))
	})

	t.Run("never negative", func(t *testing.T) {
		p := createTestProject(t, "1000")
		snap := p.ApplyFinancials(dec("5000"), nil, testNow)
		assert.True(t, snap.Remaining.IsZero())
		assert.True(t, p.FinancialDetails.RemainingAmount.IsZero())
		assert.True(t, p.FinancialDetails.AdvanceReceived.Equal(dec("5000")))
	})

	t.Run("rounds to whole units", func(t *testing.T) {
		p := createTestProject(t, "1000.6")
		snap := p.ApplyFinancials(dec("100.4"), nil, testNow)
		assert.True(t, snap.TotalCost.Equal(dec("1001")))
		assert.True(t, snap.ApprovedReceipts.Equal(dec("100")))
		assert.True(t, snap.Remaining.Equal(dec("901")))
		assert.True(t, p.FinancialDetails.TotalCost.Equal(dec("1000.6")), "total cost itself is kept")
	})

	t.Run("uses provided totals", func(t *testing.T) {
		p := createTestProject(t, "1000")
		totals := PlanTotals{Paid: dec("300")}
		snap := p.ApplyFinancials(decimal.Zero, &totals, testNow)
		assert.True(t, snap.Remaining.Equal(dec("700")))
	})

	t.Run("overwrites advance received", func(t *testing.T) {
		p := createTestProject(t, "1000")
		p.FinancialDetails.AdvanceReceived = dec("999")
		p.ApplyFinancials(decimal.Zero, nil, testNow)
		assert.True(t, p.FinancialDetails.AdvanceReceived.IsZero())
	})

	t.Run("event only on change", func(t *testing.T) {
		p := createTestProject(t, "1000")
		p.ApplyFinancials(dec("100"), nil, testNow)
		assert.Len(t, p.GetDomainEvents(), 1)
		p.ApplyFinancials(dec("100"), nil, testNow)
		assert.Len(t, p.GetDomainEvents(), 1)
	})
}
