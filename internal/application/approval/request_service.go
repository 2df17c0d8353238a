package approval

import (
	"context"
	"fmt"
	"time"

	billingapp "github.com/erp/projectbilling/internal/application/billing"
	"github.com/erp/projectbilling/internal/domain/approval"
	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/erp/projectbilling/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RequestService drives the request/response workflow and applies the
// type-specific side effect of each response.
type RequestService struct {
	repo       approval.RequestRepository
	resolver   ActorResolver
	handlers   map[approval.RequestType]SideEffectHandler
	transactor shared.Transactor
	publisher  shared.EventPublisher
	retries    int
	logger     *zap.Logger
	clock      func() time.Time
}

// NewRequestService creates a new RequestService.
// Request types without a registered handler cannot be responded to.
func NewRequestService(
	repo approval.RequestRepository,
	resolver ActorResolver,
	transactor shared.Transactor,
	publisher shared.EventPublisher,
	retries int,
	logger *zap.Logger,
	handlers ...SideEffectHandler,
) *RequestService {
	if transactor == nil {
		panic("NewRequestService called with nil transactor - this is a programming error")
	}
	if retries < 0 {
		retries = billingapp.DefaultConflictRetries
	}
	table := make(map[approval.RequestType]SideEffectHandler, len(handlers))
	for _, h := range handlers {
		table[h.RequestType()] = h
	}
	return &RequestService{
		repo:       repo,
		resolver:   resolver,
		handlers:   table,
		transactor: transactor,
		publisher:  publisher,
		retries:    retries,
		logger:     logger,
		clock:      time.Now,
	}
}

// CreateRequestInput is the input of Create
type CreateRequestInput struct {
	Module      string               `validate:"max=50"`
	Type        approval.RequestType `validate:"required"`
	Title       string               `validate:"required,max=200"`
	Description string               `validate:"max=2000"`
	RequestedBy shared.ActorRef
	Recipient   shared.ActorRef // zero means the default approver
	Amount      *decimal.Decimal
	Metadata    approval.Metadata
}

// RespondInput is the input of Respond
type RespondInput struct {
	RequestID    uuid.UUID             `validate:"required"`
	ResponseType approval.ResponseType `validate:"required,oneof=approve reject request_changes"`
	Message      string                `validate:"max=2000"`
	Actor        shared.ActorRef
}

// RespondResult is the outcome of Respond
type RespondResult struct {
	Request     *approval.Request
	SideEffects billingapp.SideEffects
}

// Create raises a pending request from one actor to another
func (s *RequestService) Create(ctx context.Context, input CreateRequestInput) (*approval.Request, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "request", "create")
	defer span.End()
	telemetry.SetAttributes(span,
		"request_type", string(input.Type),
		telemetry.SpanAttrActor, input.RequestedBy.String(),
	)

	if err := billingapp.ValidateInput(input); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if _, err := s.resolver.Resolve(ctx, input.RequestedBy); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	recipient := input.Recipient
	if recipient.IsZero() {
		def, err := s.resolver.DefaultApprover(ctx)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		recipient = def
	} else if _, err := s.resolver.Resolve(ctx, recipient); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	req, err := approval.NewRequest(approval.RequestSpec{
		Module:      input.Module,
		Type:        input.Type,
		Title:       input.Title,
		Description: input.Description,
		RequestedBy: input.RequestedBy,
		Recipient:   recipient,
		Amount:      input.Amount,
		Metadata:    input.Metadata,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.repo.Save(ctx, req); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save request: %w", err)
	}

	billingapp.PublishEvents(ctx, s.publisher, s.logger, req.PullDomainEvents())
	s.logger.Info("request created",
		zap.String("request_id", req.ID.String()),
		zap.String("type", req.Type.String()),
		zap.String("requested_by", req.RequestedBy.String()),
		zap.String("recipient", req.Recipient.String()),
	)
	return req, nil
}

// Respond records the recipient's answer. The type-specific side effect runs
// first, in the same transaction as the response. A lost optimistic locking
// race re-runs the whole flow, so the loser observes the winner's result as an
// already handled error.
func (s *RequestService) Respond(ctx context.Context, input RespondInput) (*RespondResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "request", "respond")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrRequestID, input.RequestID.String(),
		"response_type", string(input.ResponseType),
		telemetry.SpanAttrActor, input.Actor.String(),
	)

	if err := billingapp.ValidateInput(input); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if _, err := s.resolver.Resolve(ctx, input.Actor); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var (
		result *RespondResult
		events []shared.DomainEvent
	)
	err := billingapp.RetryOnConflict(ctx, s.retries, s.logger, "respond_request", func(ctx context.Context) error {
		return s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
			var err error
			result, events, err = s.respondOnce(ctx, input)
			return err
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		if shared.IsAlreadyHandled(err) {
			s.logger.Info("request response rejected: already handled",
				zap.String("request_id", input.RequestID.String()),
				zap.Error(err),
			)
		}
		return nil, err
	}

	result.SideEffects = append(result.SideEffects, billingapp.PublishEvents(ctx, s.publisher, s.logger, events))
	if result.SideEffects.Degraded() {
		s.logger.Warn("request responded with degraded side effects",
			zap.String("request_id", input.RequestID.String()),
			zap.String("reasons", result.SideEffects.Reasons()),
		)
	}
	s.logger.Info("request responded",
		zap.String("request_id", result.Request.ID.String()),
		zap.String("status", result.Request.Status.String()),
		zap.String("responded_by", input.Actor.String()),
	)
	return result, nil
}

func (s *RequestService) respondOnce(ctx context.Context, input RespondInput) (*RespondResult, []shared.DomainEvent, error) {
	req, err := s.repo.FindByID(ctx, input.RequestID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load request: %w", err)
	}
	if req == nil {
		return nil, nil, approval.ErrRequestNotFound
	}
	if err := req.GuardRespond(input.Actor, input.ResponseType, input.Message); err != nil {
		return nil, nil, err
	}

	handler, ok := s.handlers[req.Type]
	if !ok {
		return nil, nil, shared.NewValidationError("UNSUPPORTED_REQUEST_TYPE", fmt.Sprintf("No handler for request type %q", req.Type))
	}
	outcome, err := handler.Apply(ctx, req, Response{
		Type:    input.ResponseType,
		Message: input.Message,
		Actor:   input.Actor,
	})
	if err != nil {
		return nil, nil, err
	}

	if err := req.Respond(input.Actor, input.ResponseType, input.Message, s.clock()); err != nil {
		return nil, nil, err
	}
	if err := s.repo.SaveWithLock(ctx, req); err != nil {
		return nil, nil, err
	}

	events := append(outcome.Events, req.PullDomainEvents()...)
	return &RespondResult{Request: req, SideEffects: outcome.SideEffects}, events, nil
}

// Get returns a request by id
func (s *RequestService) Get(ctx context.Context, id uuid.UUID) (*approval.Request, error) {
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	if req == nil {
		return nil, approval.ErrRequestNotFound
	}
	return req, nil
}

// ListPendingForRecipient lists the requests waiting for an actor's answer
func (s *RequestService) ListPendingForRecipient(ctx context.Context, recipient shared.ActorRef, filter shared.Filter) ([]approval.Request, error) {
	if err := recipient.Validate(); err != nil {
		return nil, err
	}
	reqs, err := s.repo.FindPendingForRecipient(ctx, recipient, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	return reqs, nil
}
