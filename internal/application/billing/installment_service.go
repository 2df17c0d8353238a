package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/projectbilling/internal/domain/billing"
	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/erp/projectbilling/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultConflictRetries bounds how often an operation is re-run after losing
// an optimistic locking race
const DefaultConflictRetries = 2

// InstallmentService manages a project's installment plan
type InstallmentService struct {
	projectRepo  billing.ProjectRepository
	recalculator *Recalculator
	ledger       *LedgerSyncService
	transactor   shared.Transactor
	publisher    shared.EventPublisher
	retries      int
	logger       *zap.Logger
	clock        func() time.Time
}

// NewInstallmentService creates a new InstallmentService
func NewInstallmentService(
	projectRepo billing.ProjectRepository,
	recalculator *Recalculator,
	ledger *LedgerSyncService,
	transactor shared.Transactor,
	publisher shared.EventPublisher,
	retries int,
	logger *zap.Logger,
) *InstallmentService {
	if transactor == nil {
		panic("NewInstallmentService called with nil transactor - this is a programming error")
	}
	if retries < 0 {
		retries = DefaultConflictRetries
	}
	return &InstallmentService{
		projectRepo:  projectRepo,
		recalculator: recalculator,
		ledger:       ledger,
		transactor:   transactor,
		publisher:    publisher,
		retries:      retries,
		logger:       logger,
		clock:        time.Now,
	}
}

// AddInstallmentsInput is the input of Add
type AddInstallmentsInput struct {
	ProjectID    uuid.UUID                 `validate:"required"`
	Installments []billing.InstallmentSpec `validate:"required,min=1,dive"`
	Actor        shared.ActorRef
}

// UpdateInstallmentInput is the input of Update
type UpdateInstallmentInput struct {
	ProjectID     uuid.UUID `validate:"required"`
	InstallmentID uuid.UUID `validate:"required"`
	Patch         billing.InstallmentPatch
	Actor         shared.ActorRef
}

// RemoveInstallmentInput is the input of Remove
type RemoveInstallmentInput struct {
	ProjectID     uuid.UUID `validate:"required"`
	InstallmentID uuid.UUID `validate:"required"`
	Actor         shared.ActorRef
}

// InstallmentResult is the outcome of a plan mutation
type InstallmentResult struct {
	Project      *billing.Project
	Installments []billing.Installment // added, updated or removed installments
	Snapshot     billing.FinancialSnapshot
	Ledger       []*LedgerResult
	SideEffects  SideEffects
	Events       []shared.DomainEvent `json:"-"`
}

// Add validates and appends a batch of installments. The batch is
// all-or-nothing. Ledger transactions for installments added as paid are
// created best-effort after the plan is saved.
func (s *InstallmentService) Add(ctx context.Context, input AddInstallmentsInput) (*InstallmentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "installment", "add")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrProjectID, input.ProjectID.String(),
		"installment_count", len(input.Installments),
	)

	if err := ValidateInput(input); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result, err := s.run(ctx, "add_installments", func(ctx context.Context) (*InstallmentResult, error) {
		project, err := s.loadProject(ctx, input.ProjectID)
		if err != nil {
			return nil, err
		}
		added, err := project.AddInstallments(input.Installments, input.Actor, s.clock())
		if err != nil {
			return nil, err
		}
		result, err := s.recalculateAndSave(ctx, project)
		if err != nil {
			return nil, err
		}
		result.Installments = added
		for _, inst := range added {
			if !inst.IsPaid() {
				continue
			}
			paid := project.InstallmentByID(inst.ID)
			ledger, effect := s.recordPayment(ctx, project, *paid, input.Actor)
			result.SideEffects = append(result.SideEffects, effect)
			if ledger != nil {
				result.Ledger = append(result.Ledger, ledger)
			}
		}
		return result, nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("installments added",
		zap.String("project_id", input.ProjectID.String()),
		zap.Int("count", len(result.Installments)),
		zap.String("remaining_amount", result.Snapshot.Remaining.String()),
	)
	return result, nil
}

// Update applies a patch to one installment. A patch that would push the
// plan over the total cost is rejected and nothing is saved. A transition into
// paid creates the ledger transaction best-effort.
func (s *InstallmentService) Update(ctx context.Context, input UpdateInstallmentInput) (*InstallmentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "installment", "update")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrProjectID, input.ProjectID.String(),
		telemetry.SpanAttrInstallmentID, input.InstallmentID.String(),
	)

	if err := ValidateInput(input); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result, err := s.run(ctx, "update_installment", func(ctx context.Context) (*InstallmentResult, error) {
		project, err := s.loadProject(ctx, input.ProjectID)
		if err != nil {
			return nil, err
		}
		change, err := project.UpdateInstallment(input.InstallmentID, input.Patch, input.Actor, s.clock())
		if err != nil {
			return nil, err
		}
		result, err := s.recalculateAndSave(ctx, project)
		if err != nil {
			return nil, err
		}
		updated := project.InstallmentByID(input.InstallmentID)
		result.Installments = []billing.Installment{*updated}
		if change.BecamePaid {
			ledger, effect := s.recordPayment(ctx, project, *updated, input.Actor)
			result.SideEffects = append(result.SideEffects, effect)
			if ledger != nil {
				result.Ledger = append(result.Ledger, ledger)
			}
		}
		return result, nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return result, nil
}

// Remove deletes an installment from the plan. Ledger transactions already
// written for it are kept.
func (s *InstallmentService) Remove(ctx context.Context, input RemoveInstallmentInput) (*InstallmentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "installment", "remove")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrProjectID, input.ProjectID.String(),
		telemetry.SpanAttrInstallmentID, input.InstallmentID.String(),
	)

	if err := ValidateInput(input); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result, err := s.run(ctx, "remove_installment", func(ctx context.Context) (*InstallmentResult, error) {
		project, err := s.loadProject(ctx, input.ProjectID)
		if err != nil {
			return nil, err
		}
		removed, err := project.RemoveInstallment(input.InstallmentID, input.Actor, s.clock())
		if err != nil {
			return nil, err
		}
		result, err := s.recalculateAndSave(ctx, project)
		if err != nil {
			return nil, err
		}
		result.Installments = []billing.Installment{removed}
		return result, nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return result, nil
}

// ApplyInstallmentPayment marks an installment paid, recalculates and saves
// the project, then records the ledger transaction best-effort. It runs in the
// caller's transaction and does not publish events: the caller publishes
// result.Events once its transaction has committed.
// An installment that is already paid yields an already handled error.
func (s *InstallmentService) ApplyInstallmentPayment(ctx context.Context, projectID, installmentID uuid.UUID, actor shared.ActorRef) (*InstallmentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "installment", "apply_payment")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrProjectID, projectID.String(),
		telemetry.SpanAttrInstallmentID, installmentID.String(),
	)

	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	inst, err := project.MarkInstallmentPaid(installmentID, actor, s.clock())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	result, err := s.recalculateAndSave(ctx, project)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	result.Installments = []billing.Installment{inst}

	ledger, effect := s.recordPayment(ctx, project, inst, actor)
	result.SideEffects = append(result.SideEffects, effect)
	if ledger != nil {
		result.Ledger = append(result.Ledger, ledger)
	}
	return result, nil
}

// GetProject loads a project with fresh installment statuses and heals
// missing ledger transactions for paid installments.
func (s *InstallmentService) GetProject(ctx context.Context, projectID uuid.UUID, actor shared.ActorRef) (*billing.Project, SyncReport, error) {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, SyncReport{}, err
	}
	project.RefreshInstallmentStatuses(s.clock())
	report := s.ledger.SyncMissingForPaidInstallments(ctx, project, actor)
	return project, report, nil
}

// Reconcile recomputes and saves a project's balance, then heals missing
// ledger transactions for its paid installments. The save advances the
// project version, so the sweep is never throttled by an earlier claim.
func (s *InstallmentService) Reconcile(ctx context.Context, projectID uuid.UUID, actor shared.ActorRef) (*InstallmentResult, SyncReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "installment", "reconcile")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrProjectID, projectID.String())

	result, err := s.run(ctx, "reconcile", func(ctx context.Context) (*InstallmentResult, error) {
		project, err := s.loadProject(ctx, projectID)
		if err != nil {
			return nil, err
		}
		return s.recalculateAndSave(ctx, project)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, SyncReport{}, err
	}

	report := s.ledger.SyncMissingForPaidInstallments(ctx, result.Project, actor)
	result.SideEffects = append(result.SideEffects, report.SideEffect())
	s.logger.Info("project reconciled",
		zap.String("project_id", projectID.String()),
		zap.String("remaining_amount", result.Snapshot.Remaining.String()),
		zap.Int("ledger_created", report.Created),
		zap.Bool("degraded", result.SideEffects.Degraded()),
	)
	return result, report, nil
}

// run executes fn in a transaction, retrying on conflict, then publishes the
// collected events.
func (s *InstallmentService) run(ctx context.Context, op string, fn func(ctx context.Context) (*InstallmentResult, error)) (*InstallmentResult, error) {
	var result *InstallmentResult
	err := RetryOnConflict(ctx, s.retries, s.logger, op, func(ctx context.Context) error {
		return s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
			var err error
			result, err = fn(ctx)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	result.SideEffects = append(result.SideEffects, PublishEvents(ctx, s.publisher, s.logger, result.Events))
	return result, nil
}

func (s *InstallmentService) loadProject(ctx context.Context, id uuid.UUID) (*billing.Project, error) {
	project, err := s.projectRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if project == nil {
		return nil, billing.ErrProjectNotFound
	}
	return project, nil
}

func (s *InstallmentService) recalculateAndSave(ctx context.Context, project *billing.Project) (*InstallmentResult, error) {
	totals := project.PlanTotals()
	snapshot, err := s.recalculator.Recalculate(ctx, project, &totals)
	if err != nil {
		return nil, err
	}
	if err := s.projectRepo.SaveWithLock(ctx, project); err != nil {
		return nil, err
	}
	return &InstallmentResult{
		Project:  project,
		Snapshot: snapshot,
		Events:   project.PullDomainEvents(),
	}, nil
}

// recordPayment writes the ledger transaction in its own nested unit of work
// so a failure cannot abort the caller's transaction.
func (s *InstallmentService) recordPayment(ctx context.Context, project *billing.Project, inst billing.Installment, actor shared.ActorRef) (*LedgerResult, SideEffect) {
	var (
		ledger *LedgerResult
		effect SideEffect
	)
	err := s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		ledger, effect = s.ledger.RecordInstallmentPayment(ctx, project, inst, actor)
		if effect.Degraded {
			return errors.New(effect.Reason)
		}
		return nil
	})
	if err != nil && !effect.Degraded {
		effect = Degraded(SideEffectLedger, err)
	}
	return ledger, effect
}
