package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/projectbilling/internal/domain/billing"
	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/erp/projectbilling/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CostRevisionService changes a project's total cost and keeps its audit trail
type CostRevisionService struct {
	projectRepo  billing.ProjectRepository
	recalculator *Recalculator
	transactor   shared.Transactor
	publisher    shared.EventPublisher
	retries      int
	logger       *zap.Logger
	clock        func() time.Time
}

// NewCostRevisionService creates a new CostRevisionService
func NewCostRevisionService(
	projectRepo billing.ProjectRepository,
	recalculator *Recalculator,
	transactor shared.Transactor,
	publisher shared.EventPublisher,
	retries int,
	logger *zap.Logger,
) *CostRevisionService {
	if transactor == nil {
		panic("NewCostRevisionService called with nil transactor - this is a programming error")
	}
	if retries < 0 {
		retries = DefaultConflictRetries
	}
	return &CostRevisionService{
		projectRepo:  projectRepo,
		recalculator: recalculator,
		transactor:   transactor,
		publisher:    publisher,
		retries:      retries,
		logger:       logger,
		clock:        time.Now,
	}
}

// ReviseCostInput is the input of Revise
type ReviseCostInput struct {
	ProjectID uuid.UUID `validate:"required"`
	NewCost   decimal.Decimal
	Reason    string `validate:"max=1000"`
	Actor     shared.ActorRef
}

// CostRevisionResult is the outcome of a cost revision
type CostRevisionResult struct {
	Project     *billing.Project
	Entry       billing.CostChangeEntry
	Snapshot    billing.FinancialSnapshot
	SideEffects SideEffects
	Events      []shared.DomainEvent `json:"-"`
}

// Revise sets a project's total cost directly, recorded with the actor as
// both changer and approver.
func (s *CostRevisionService) Revise(ctx context.Context, input ReviseCostInput) (*CostRevisionResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "cost", "revise")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrProjectID, input.ProjectID.String(),
		telemetry.SpanAttrAmount, input.NewCost.String(),
	)

	if err := ValidateInput(input); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	approver := input.Actor
	var result *CostRevisionResult
	err := RetryOnConflict(ctx, s.retries, s.logger, "revise_cost", func(ctx context.Context) error {
		return s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
			var err error
			result, err = s.ApplyRevision(ctx, input.ProjectID, billing.CostRevision{
				NewCost:    input.NewCost,
				Reason:     input.Reason,
				ChangedBy:  input.Actor,
				ApprovedBy: &approver,
			})
			return err
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	result.SideEffects = append(result.SideEffects, PublishEvents(ctx, s.publisher, s.logger, result.Events))
	return result, nil
}

// ApplyRevision revises the cost, recalculates and saves the project. It runs
// in the caller's transaction and does not publish events.
func (s *CostRevisionService) ApplyRevision(ctx context.Context, projectID uuid.UUID, rev billing.CostRevision) (*CostRevisionResult, error) {
	project, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if project == nil {
		return nil, billing.ErrProjectNotFound
	}
	if rev.RequestID != nil {
		if _, ok := project.CostChangeForRequest(*rev.RequestID); ok {
			return nil, shared.NewAlreadyHandledError("COST_CHANGE_APPLIED", "Cost change for this request has already been applied")
		}
	}

	entry, err := project.ReviseCost(rev, s.clock())
	if err != nil {
		return nil, err
	}
	snapshot, err := s.recalculator.Recalculate(ctx, project, nil)
	if err != nil {
		return nil, err
	}
	if err := s.projectRepo.SaveWithLock(ctx, project); err != nil {
		return nil, err
	}

	s.logger.Info("project cost revised",
		zap.String("project_id", project.ID.String()),
		zap.String("previous_cost", entry.PreviousCost.String()),
		zap.String("new_cost", entry.NewCost.String()),
		zap.String("changed_by", entry.ChangedBy.String()),
	)
	return &CostRevisionResult{
		Project:  project,
		Entry:    entry,
		Snapshot: snapshot,
		Events:   project.PullDomainEvents(),
	}, nil
}

// IncreaseCost raises the cost by increase on top of previous (the current
// total cost when previous is nil).
func (s *CostRevisionService) IncreaseCost(ctx context.Context, projectID uuid.UUID, previous *decimal.Decimal, increase decimal.Decimal, rev billing.CostRevision) (*CostRevisionResult, error) {
	if !increase.IsPositive() {
		return nil, shared.NewValidationError("INVALID_INCREASE", "Cost increase must be a positive amount")
	}
	base := previous
	if base == nil {
		project, err := s.projectRepo.FindByID(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("failed to load project: %w", err)
		}
		if project == nil {
			return nil, billing.ErrProjectNotFound
		}
		current := project.TotalCost()
		base = &current
	}
	rev.NewCost = base.Add(increase)
	return s.ApplyRevision(ctx, projectID, rev)
}
