package billing

import (
	"errors"
	"fmt"
	"time"

	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/erp/projectbilling/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FinancialDetails is the financial summary of a project
type FinancialDetails struct {
	TotalCost       decimal.Decimal `json:"total_cost"`
	AdvanceReceived decimal.Decimal `json:"advance_received"`
	IncludeGST      bool            `json:"include_gst"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"` // never negative
}

// Project is the billing aggregate root.
// The installment plan and the cost history are owned collections: they are
// only ever changed through Project methods and persisted with the project.
type Project struct {
	shared.BaseAggregateRoot
	Name             string            `json:"name"`
	ClientID         uuid.UUID         `json:"client_id"`
	FinancialDetails FinancialDetails  `json:"financial_details"`
	Budget           decimal.Decimal   `json:"budget"` // legacy mirror of FinancialDetails.TotalCost
	InstallmentPlan  []Installment     `json:"installment_plan"`
	CostHistory      []CostChangeEntry `json:"cost_history"`

	planIndex map[uuid.UUID]int
}

// NewProject creates a new project with an empty plan
func NewProject(name string, clientID uuid.UUID, totalCost decimal.Decimal, includeGST bool) (*Project, error) {
	if name == "" {
		return nil, shared.NewValidationError("INVALID_PROJECT_NAME", "Project name cannot be empty")
	}
	if clientID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_CLIENT", "Client ID cannot be empty")
	}
	if totalCost.IsNegative() {
		return nil, shared.NewValidationError("INVALID_TOTAL_COST", "Total cost cannot be negative")
	}

	p := &Project{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		ClientID:          clientID,
		FinancialDetails: FinancialDetails{
			TotalCost:       totalCost,
			AdvanceReceived: decimal.Zero,
			IncludeGST:      includeGST,
			RemainingAmount: valueobject.RoundToUnit(totalCost),
		},
		Budget:          totalCost,
		InstallmentPlan: make([]Installment, 0),
		CostHistory:     make([]CostChangeEntry, 0),
	}
	return p, nil
}

// TotalCost resolves the project's total cost: the financial details value,
// else the legacy budget, else zero.
func (p *Project) TotalCost() decimal.Decimal {
	if p.FinancialDetails.TotalCost.IsPositive() {
		return p.FinancialDetails.TotalCost
	}
	if p.Budget.IsPositive() {
		return p.Budget
	}
	return decimal.Zero
}

// InstallmentByID returns the installment with the given id, or nil
func (p *Project) InstallmentByID(id uuid.UUID) *Installment {
	idx, ok := p.index()[id]
	if !ok {
		return nil
	}
	return &p.InstallmentPlan[idx]
}

// PaidInstallments returns copies of the paid installments in plan order
func (p *Project) PaidInstallments() []Installment {
	paid := make([]Installment, 0)
	for _, inst := range p.InstallmentPlan {
		if inst.IsPaid() {
			paid = append(paid, inst)
		}
	}
	return paid
}

// PlanTotals returns the totals of the current plan
func (p *Project) PlanTotals() PlanTotals {
	return CalculateTotals(p.InstallmentPlan)
}

func (p *Project) index() map[uuid.UUID]int {
	if p.planIndex == nil || len(p.planIndex) != len(p.InstallmentPlan) {
		p.reindex()
	}
	return p.planIndex
}

func (p *Project) reindex() {
	p.planIndex = make(map[uuid.UUID]int, len(p.InstallmentPlan))
	for i := range p.InstallmentPlan {
		p.planIndex[p.InstallmentPlan[i].ID] = i
	}
}

// RefreshInstallmentStatuses derives pending/overdue for every unpaid
// installment and defaults missing paid dates. Returns the number of
// installments that changed; calling it twice at the same instant is a no-op
// the second time.
func (p *Project) RefreshInstallmentStatuses(now time.Time) int {
	changed := 0
	for i := range p.InstallmentPlan {
		if p.InstallmentPlan[i].refreshStatus(now) {
			changed++
		}
	}
	if changed > 0 {
		p.Touch(now)
	}
	return changed
}

// AddInstallments validates and appends a batch of installments.
// The batch is all-or-nothing: one invalid spec, an undefined total cost or a
// plan total above the total cost rejects the whole batch and leaves the plan
// untouched.
func (p *Project) AddInstallments(specs []InstallmentSpec, actor shared.ActorRef, now time.Time) ([]Installment, error) {
	if len(specs) == 0 {
		return nil, shared.NewValidationError("NO_INSTALLMENTS", "At least one installment is required")
	}
	if err := actor.Validate(); err != nil {
		return nil, err
	}

	normalized := make([]InstallmentSpec, len(specs))
	newTotal := decimal.Zero
	for i, spec := range specs {
		n, err := spec.normalize()
		if err != nil {
			var de *shared.DomainError
			if errors.As(err, &de) {
				return nil, shared.NewValidationError(de.Code, fmt.Sprintf("Installment %d: %s", i+1, de.Message))
			}
			return nil, err
		}
		normalized[i] = n
		newTotal = newTotal.Add(n.Amount)
	}

	totalCost := p.TotalCost()
	if !totalCost.IsPositive() {
		return nil, ErrTotalCostUndefined
	}
	existing := p.PlanTotals().Total
	if valueobject.ExceedsWithTolerance(existing.Add(newTotal), totalCost, valueobject.CostEpsilon) {
		return nil, shared.NewInvariantError(ErrInstallmentsExceedCost.Code, fmt.Sprintf(
			"Installment total %s (existing %s + new %s) exceeds project total cost %s",
			existing.Add(newTotal).StringFixed(2), existing.StringFixed(2), newTotal.StringFixed(2), totalCost.StringFixed(2)))
	}

	added := make([]Installment, 0, len(normalized))
	for _, spec := range normalized {
		inst := Installment{
			ID:        uuid.New(),
			Amount:    spec.Amount,
			DueDate:   spec.DueDate,
			Status:    spec.Status,
			Notes:     spec.Notes,
			Account:   spec.Account,
			CreatedBy: actor,
			UpdatedBy: actor,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if inst.Status.IsPaid() {
			paid := now
			inst.PaidDate = &paid
		}
		p.InstallmentPlan = append(p.InstallmentPlan, inst)
		added = append(added, inst)
	}
	p.reindex()
	p.Touch(now)

	p.AddDomainEvent(NewInstallmentsAddedEvent(p, added, actor))
	return added, nil
}

// UpdateInstallment applies a patch to one installment.
// The installment is snapshotted first; if the patched plan would exceed the
// total cost the snapshot is restored and the update is rejected.
func (p *Project) UpdateInstallment(id uuid.UUID, patch InstallmentPatch, actor shared.ActorRef, now time.Time) (InstallmentChange, error) {
	if err := patch.validate(); err != nil {
		return InstallmentChange{}, err
	}
	if err := actor.Validate(); err != nil {
		return InstallmentChange{}, err
	}
	idx, ok := p.index()[id]
	if !ok {
		return InstallmentChange{}, ErrInstallmentNotFound
	}

	snapshot := p.InstallmentPlan[idx]
	inst := &p.InstallmentPlan[idx]
	wasPaid := inst.IsPaid()
	willBePaid := wasPaid
	if patch.Status != nil {
		willBePaid = patch.Status.IsPaid()
	}
	if patch.PaidDate != nil && !willBePaid {
		return InstallmentChange{}, ErrPaidDateWithoutPayment
	}

	if patch.Amount != nil {
		inst.Amount = *patch.Amount
	}
	if patch.DueDate != nil {
		inst.DueDate = *patch.DueDate
	}
	if patch.Notes != nil {
		inst.Notes = *patch.Notes
	}
	if patch.Account != nil {
		inst.Account = *patch.Account
	}
	if patch.Status != nil {
		inst.Status = *patch.Status
	}

	change := InstallmentChange{Previous: snapshot}
	switch {
	case !wasPaid && inst.IsPaid():
		paid := now
		if patch.PaidDate != nil {
			paid = *patch.PaidDate
		}
		inst.PaidDate = &paid
		change.BecamePaid = true
	case wasPaid && !inst.IsPaid():
		inst.PaidDate = nil
		change.LeftPaid = true
	case inst.IsPaid() && patch.PaidDate != nil:
		paid := *patch.PaidDate
		inst.PaidDate = &paid
	}
	inst.UpdatedBy = actor
	inst.UpdatedAt = now

	totalCost := p.TotalCost()
	if total := p.PlanTotals().Total; valueobject.ExceedsWithTolerance(total, totalCost, valueobject.CostEpsilon) {
		p.InstallmentPlan[idx] = snapshot
		return InstallmentChange{}, shared.NewInvariantError(ErrInstallmentsExceedCost.Code, fmt.Sprintf(
			"Installment total %s would exceed project total cost %s",
			total.StringFixed(2), totalCost.StringFixed(2)))
	}

	p.Touch(now)
	change.Installment = *inst

	p.AddDomainEvent(NewInstallmentUpdatedEvent(p, change, actor))
	if change.BecamePaid {
		p.AddDomainEvent(NewInstallmentPaidEvent(p, *inst, actor))
	}
	return change, nil
}

// MarkInstallmentPaid marks one installment as paid.
// Paying an installment twice is reported as already handled.
func (p *Project) MarkInstallmentPaid(id uuid.UUID, actor shared.ActorRef, now time.Time) (Installment, error) {
	inst := p.InstallmentByID(id)
	if inst == nil {
		return Installment{}, ErrInstallmentNotFound
	}
	if inst.IsPaid() {
		return Installment{}, ErrInstallmentAlreadyPaid
	}
	status := InstallmentStatusPaid
	change, err := p.UpdateInstallment(id, InstallmentPatch{Status: &status}, actor, now)
	if err != nil {
		return Installment{}, err
	}
	return change.Installment, nil
}

// RemoveInstallment deletes an installment from the plan.
// Ledger transactions already written for it are left in place.
func (p *Project) RemoveInstallment(id uuid.UUID, actor shared.ActorRef, now time.Time) (Installment, error) {
	idx, ok := p.index()[id]
	if !ok {
		return Installment{}, ErrInstallmentNotFound
	}
	removed := p.InstallmentPlan[idx]
	p.InstallmentPlan = append(p.InstallmentPlan[:idx], p.InstallmentPlan[idx+1:]...)
	p.reindex()
	p.Touch(now)

	p.AddDomainEvent(NewInstallmentRemovedEvent(p, removed, actor))
	return removed, nil
}

// Project errors
var (
	ErrProjectNotFound = shared.NewNotFoundError("PROJECT_NOT_FOUND", "Project not found")
)
