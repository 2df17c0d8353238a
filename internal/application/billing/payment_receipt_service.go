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

// ReceiptDecision is the verifier's decision on a payment receipt
type ReceiptDecision string

const (
	ReceiptDecisionApprove ReceiptDecision = "approve"
	ReceiptDecisionReject  ReceiptDecision = "reject"
)

// PaymentReceiptService handles submission and verification of payment receipts
type PaymentReceiptService struct {
	receiptRepo  billing.PaymentReceiptRepository
	projectRepo  billing.ProjectRepository
	recalculator *Recalculator
	ledger       *LedgerSyncService
	transactor   shared.Transactor
	publisher    shared.EventPublisher
	retries      int
	logger       *zap.Logger
	clock        func() time.Time
}

// NewPaymentReceiptService creates a new PaymentReceiptService
func NewPaymentReceiptService(
	receiptRepo billing.PaymentReceiptRepository,
	projectRepo billing.ProjectRepository,
	recalculator *Recalculator,
	ledger *LedgerSyncService,
	transactor shared.Transactor,
	publisher shared.EventPublisher,
	retries int,
	logger *zap.Logger,
) *PaymentReceiptService {
	if transactor == nil {
		panic("NewPaymentReceiptService called with nil transactor - this is a programming error")
	}
	if retries < 0 {
		retries = DefaultConflictRetries
	}
	return &PaymentReceiptService{
		receiptRepo:  receiptRepo,
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

// SubmitReceiptInput is the input of Submit
type SubmitReceiptInput struct {
	ProjectID   uuid.UUID `validate:"required"`
	Amount      decimal.Decimal
	Account     string                `validate:"max=100"`
	Method      billing.PaymentMethod `validate:"omitempty,oneof=cash bank_transfer cheque upi card other"`
	Notes       string                `validate:"max=1000"`
	SubmittedBy shared.ActorRef
}

// VerifyReceiptInput is the input of Verify
type VerifyReceiptInput struct {
	ReceiptID uuid.UUID       `validate:"required"`
	Decision  ReceiptDecision `validate:"required,oneof=approve reject"`
	Reason    string          `validate:"max=1000"`
	Verifier  shared.ActorRef
}

// ReceiptResult is the outcome of a receipt verification
type ReceiptResult struct {
	Receipt     *billing.PaymentReceipt
	Project     *billing.Project // nil unless the receipt was approved
	Snapshot    billing.FinancialSnapshot
	Ledger      *LedgerResult
	SideEffects SideEffects
	Events      []shared.DomainEvent `json:"-"`
}

// Submit stores a pending receipt for a project
func (s *PaymentReceiptService) Submit(ctx context.Context, input SubmitReceiptInput) (*billing.PaymentReceipt, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "receipt", "submit")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrProjectID, input.ProjectID.String(),
		telemetry.SpanAttrAmount, input.Amount.String(),
	)

	if err := ValidateInput(input); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	project, err := s.projectRepo.FindByID(ctx, input.ProjectID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if project == nil {
		return nil, billing.ErrProjectNotFound
	}

	receipt, err := billing.NewPaymentReceipt(project.ID, project.ClientID, input.Amount, input.Account, input.Method, input.SubmittedBy)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	receipt.Notes = input.Notes
	if err := s.receiptRepo.Save(ctx, receipt); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save payment receipt: %w", err)
	}

	PublishEvents(ctx, s.publisher, s.logger, receipt.PullDomainEvents())
	s.logger.Info("payment receipt submitted",
		zap.String("receipt_id", receipt.ID.String()),
		zap.String("project_id", project.ID.String()),
		zap.String("amount", receipt.Amount.String()),
	)
	return receipt, nil
}

// Verify approves or rejects a pending receipt exactly once. Approval
// recalculates the project's balance and records the ledger transaction
// best-effort.
func (s *PaymentReceiptService) Verify(ctx context.Context, input VerifyReceiptInput) (*ReceiptResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "receipt", "verify")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrReceiptID, input.ReceiptID.String(),
		"decision", string(input.Decision),
	)

	if err := ValidateInput(input); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var result *ReceiptResult
	err := RetryOnConflict(ctx, s.retries, s.logger, "verify_receipt", func(ctx context.Context) error {
		return s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
			var err error
			result, err = s.ApplyVerification(ctx, input)
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

// ApplyVerification transitions the receipt and, on approval, recalculates
// and saves its project. It runs in the caller's transaction and does not
// publish events.
func (s *PaymentReceiptService) ApplyVerification(ctx context.Context, input VerifyReceiptInput) (*ReceiptResult, error) {
	receipt, err := s.receiptRepo.FindByID(ctx, input.ReceiptID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment receipt: %w", err)
	}
	if receipt == nil {
		return nil, billing.ErrReceiptNotFound
	}

	now := s.clock()
	switch input.Decision {
	case ReceiptDecisionApprove:
		err = receipt.Approve(input.Verifier, now)
	case ReceiptDecisionReject:
		err = receipt.Reject(input.Verifier, input.Reason, now)
	default:
		err = shared.NewValidationError("INVALID_DECISION", fmt.Sprintf("Receipt decision %q is not valid", input.Decision))
	}
	if err != nil {
		return nil, err
	}
	if err := s.receiptRepo.UpdateStatusIf(ctx, receipt, billing.ReceiptStatusPending); err != nil {
		return nil, err
	}

	result := &ReceiptResult{Receipt: receipt, Events: receipt.PullDomainEvents()}
	if !receipt.IsApproved() {
		return result, nil
	}

	project, err := s.projectRepo.FindByID(ctx, receipt.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if project == nil {
		return nil, billing.ErrProjectNotFound
	}
	snapshot, err := s.recalculator.Recalculate(ctx, project, nil)
	if err != nil {
		return nil, err
	}
	if err := s.projectRepo.SaveWithLock(ctx, project); err != nil {
		return nil, err
	}
	result.Project = project
	result.Snapshot = snapshot
	result.Events = append(result.Events, project.PullDomainEvents()...)

	err = s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		var effect SideEffect
		result.Ledger, effect = s.ledger.RecordReceiptPayment(ctx, receipt, project.Name)
		result.SideEffects = append(result.SideEffects, effect)
		if effect.Degraded {
			return fmt.Errorf("ledger: %s", effect.Reason)
		}
		return nil
	})
	if err != nil {
		s.logger.Debug("receipt ledger step rolled back", zap.Error(err))
	}

	s.logger.Info("payment receipt approved",
		zap.String("receipt_id", receipt.ID.String()),
		zap.String("project_id", project.ID.String()),
		zap.String("remaining_amount", snapshot.Remaining.String()),
	)
	return result, nil
}

// ListByProject lists a project's receipts, optionally filtered by status
func (s *PaymentReceiptService) ListByProject(ctx context.Context, projectID uuid.UUID, status *billing.ReceiptStatus, filter shared.Filter) ([]billing.PaymentReceipt, error) {
	if status != nil && !status.IsValid() {
		return nil, shared.NewValidationError("INVALID_STATUS", fmt.Sprintf("Receipt status %q is not valid", *status))
	}
	receipts, err := s.receiptRepo.FindByProject(ctx, projectID, status, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment receipts: %w", err)
	}
	return receipts, nil
}
