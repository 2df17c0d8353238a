// Package billing holds the project billing domain: the Project aggregate with
// its installment plan and cost history, payment receipts, ledger transactions
// and partner wallets.
//
// Invariants kept by the aggregates in this package:
//   - the installment plan total never exceeds the project total cost (within CostEpsilon)
//   - RemainingAmount = max(total cost - received, 0) after every recalculation
//   - a payment receipt leaves pending exactly once
//   - a wallet balance never goes negative
package billing
