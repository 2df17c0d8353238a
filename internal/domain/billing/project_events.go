package billing

import (
	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type names raised by the Project aggregate
const (
	EventTypeInstallmentsAdded             = "InstallmentsAdded"
	EventTypeInstallmentUpdated            = "InstallmentUpdated"
	EventTypeInstallmentRemoved            = "InstallmentRemoved"
	EventTypeInstallmentPaid               = "InstallmentPaid"
	EventTypeProjectCostChanged            = "ProjectCostChanged"
	EventTypeProjectFinancialsRecalculated = "ProjectFinancialsRecalculated"
)

// AggregateTypeProject is the aggregate type name of Project events
const AggregateTypeProject = "Project"

// InstallmentsAddedEvent is raised when a batch of installments is added
type InstallmentsAddedEvent struct {
	shared.BaseDomainEvent
	ProjectID    uuid.UUID       `json:"project_id"`
	Installments []Installment   `json:"installments"`
	Total        decimal.Decimal `json:"total"`
	Actor        shared.ActorRef `json:"actor"`
}

// NewInstallmentsAddedEvent creates a new InstallmentsAddedEvent
func NewInstallmentsAddedEvent(p *Project, added []Installment, actor shared.ActorRef) *InstallmentsAddedEvent {
	return &InstallmentsAddedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInstallmentsAdded, AggregateTypeProject, p.ID),
		ProjectID:       p.ID,
		Installments:    added,
		Total:           CalculateTotals(added).Total,
		Actor:           actor,
	}
}

// InstallmentUpdatedEvent is raised when an installment is modified
type InstallmentUpdatedEvent struct {
	shared.BaseDomainEvent
	ProjectID   uuid.UUID       `json:"project_id"`
	Installment Installment     `json:"installment"`
	Previous    Installment     `json:"previous"`
	Actor       shared.ActorRef `json:"actor"`
}

// NewInstallmentUpdatedEvent creates a new InstallmentUpdatedEvent
func NewInstallmentUpdatedEvent(p *Project, change InstallmentChange, actor shared.ActorRef) *InstallmentUpdatedEvent {
	return &InstallmentUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInstallmentUpdated, AggregateTypeProject, p.ID),
		ProjectID:       p.ID,
		Installment:     change.Installment,
		Previous:        change.Previous,
		Actor:           actor,
	}
}

// InstallmentRemovedEvent is raised when an installment is deleted
type InstallmentRemovedEvent struct {
	shared.BaseDomainEvent
	ProjectID   uuid.UUID       `json:"project_id"`
	Installment Installment     `json:"installment"`
	Actor       shared.ActorRef `json:"actor"`
}

// NewInstallmentRemovedEvent creates a new InstallmentRemovedEvent
func NewInstallmentRemovedEvent(p *Project, removed Installment, actor shared.ActorRef) *InstallmentRemovedEvent {
	return &InstallmentRemovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInstallmentRemoved, AggregateTypeProject, p.ID),
		ProjectID:       p.ID,
		Installment:     removed,
		Actor:           actor,
	}
}

// InstallmentPaidEvent is raised when an installment transitions into paid
type InstallmentPaidEvent struct {
	shared.BaseDomainEvent
	ProjectID     uuid.UUID       `json:"project_id"`
	InstallmentID uuid.UUID       `json:"installment_id"`
	Amount        decimal.Decimal `json:"amount"`
	Actor         shared.ActorRef `json:"actor"`
}

// NewInstallmentPaidEvent creates a new InstallmentPaidEvent
func NewInstallmentPaidEvent(p *Project, inst Installment, actor shared.ActorRef) *InstallmentPaidEvent {
	return &InstallmentPaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInstallmentPaid, AggregateTypeProject, p.ID),
		ProjectID:       p.ID,
		InstallmentID:   inst.ID,
		Amount:          inst.Amount,
		Actor:           actor,
	}
}

// ProjectCostChangedEvent is raised when the total cost is revised
type ProjectCostChangedEvent struct {
	shared.BaseDomainEvent
	ProjectID uuid.UUID       `json:"project_id"`
	Change    CostChangeEntry `json:"change"`
}

// NewProjectCostChangedEvent creates a new ProjectCostChangedEvent
func NewProjectCostChangedEvent(p *Project, entry CostChangeEntry) *ProjectCostChangedEvent {
	return &ProjectCostChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProjectCostChanged, AggregateTypeProject, p.ID),
		ProjectID:       p.ID,
		Change:          entry,
	}
}

// ProjectFinancialsRecalculatedEvent is raised when the outstanding balance changes
type ProjectFinancialsRecalculatedEvent struct {
	shared.BaseDomainEvent
	ProjectID uuid.UUID         `json:"project_id"`
	Snapshot  FinancialSnapshot `json:"snapshot"`
}

// NewProjectFinancialsRecalculatedEvent creates a new ProjectFinancialsRecalculatedEvent
func NewProjectFinancialsRecalculatedEvent(p *Project, snapshot FinancialSnapshot) *ProjectFinancialsRecalculatedEvent {
	return &ProjectFinancialsRecalculatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProjectFinancialsRecalculated, AggregateTypeProject, p.ID),
		ProjectID:       p.ID,
		Snapshot:        snapshot,
	}
}
