package valueobject

import "github.com/shopspring/decimal"

// CostEpsilon is the tolerance used when comparing an installment plan total
// against a project's total cost.
var CostEpsilon = decimal.RequireFromString("0.0001")

// RoundToUnit rounds an amount to the nearest whole currency unit
func RoundToUnit(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(0)
}

// NonNegative clamps negative amounts to zero
func NonNegative(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// ExceedsWithTolerance reports whether total > limit + epsilon
func ExceedsWithTolerance(total, limit, epsilon decimal.Decimal) bool {
	return total.GreaterThan(limit.Add(epsilon))
}
