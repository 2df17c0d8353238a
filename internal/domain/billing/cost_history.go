package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/erp/projectbilling/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CostChangeEntry is one record of the append-only cost audit log
type CostChangeEntry struct {
	ID           uuid.UUID        `json:"id"`
	PreviousCost decimal.Decimal  `json:"previous_cost"`
	NewCost      decimal.Decimal  `json:"new_cost"`
	Reason       string           `json:"reason"`
	ChangedBy    shared.ActorRef  `json:"changed_by"`
	ChangedAt    time.Time        `json:"changed_at"`
	ApprovedBy   *shared.ActorRef `json:"approved_by,omitempty"`
	RequestID    *uuid.UUID       `json:"request_id,omitempty"`
}

// Delta returns NewCost - PreviousCost
func (e CostChangeEntry) Delta() decimal.Decimal {
	return e.NewCost.Sub(e.PreviousCost)
}

// CostRevision describes a change of a project's total cost
type CostRevision struct {
	NewCost    decimal.Decimal
	Reason     string
	ChangedBy  shared.ActorRef
	ApprovedBy *shared.ActorRef
	RequestID  *uuid.UUID
}

// ReviseCost sets a new total cost and appends the change to the cost history.
// The cost must be positive, differ from the current one and stay at or above
// the installment plan total.
func (p *Project) ReviseCost(rev CostRevision, now time.Time) (CostChangeEntry, error) {
	if !rev.NewCost.IsPositive() {
		return CostChangeEntry{}, shared.NewValidationError("INVALID_TOTAL_COST", "Total cost must be a positive number")
	}
	if err := rev.ChangedBy.Validate(); err != nil {
		return CostChangeEntry{}, err
	}
	if rev.ApprovedBy != nil {
		if err := rev.ApprovedBy.Validate(); err != nil {
			return CostChangeEntry{}, err
		}
	}

	previous := p.TotalCost()
	if previous.Equal(rev.NewCost) {
		return CostChangeEntry{}, ErrCostUnchanged
	}
	if planned := p.PlanTotals().Total; valueobject.ExceedsWithTolerance(planned, rev.NewCost, valueobject.CostEpsilon) {
		return CostChangeEntry{}, shared.NewInvariantError(ErrCostBelowPlan.Code, fmt.Sprintf(
			"Total cost %s is below the installment plan total %s",
			rev.NewCost.StringFixed(2), planned.StringFixed(2)))
	}

	entry := CostChangeEntry{
		ID:           uuid.New(),
		PreviousCost: previous,
		NewCost:      rev.NewCost,
		Reason:       strings.TrimSpace(rev.Reason),
		ChangedBy:    rev.ChangedBy,
		ChangedAt:    now,
		ApprovedBy:   rev.ApprovedBy,
		RequestID:    rev.RequestID,
	}
	p.FinancialDetails.TotalCost = rev.NewCost
	p.Budget = rev.NewCost
	p.CostHistory = append(p.CostHistory, entry)
	p.Touch(now)

	p.AddDomainEvent(NewProjectCostChangedEvent(p, entry))
	return entry, nil
}

// CostChangeForRequest returns the cost history entry recorded for a request
func (p *Project) CostChangeForRequest(requestID uuid.UUID) (CostChangeEntry, bool) {
	for _, e := range p.CostHistory {
		if e.RequestID != nil && *e.RequestID == requestID {
			return e, true
		}
	}
	return CostChangeEntry{}, false
}

// Cost errors
var (
	ErrCostUnchanged = shared.NewValidationError("COST_UNCHANGED", "New total cost equals the current total cost")
	ErrCostBelowPlan = shared.NewInvariantError("COST_BELOW_PLAN", "Total cost is below the installment plan total")
)
