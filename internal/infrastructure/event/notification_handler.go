package event

import (
	"context"

	"github.com/erp/projectbilling/internal/domain/shared"
	"go.uber.org/zap"
)

// NotificationHandler writes every billing event to the log as a structured
// notification record. cmd/reconcile subscribes it to the bus.
type NotificationHandler struct {
	serializer *EventSerializer
	logger     *zap.Logger
}

// NewNotificationHandler creates a handler that encodes events with serializer
func NewNotificationHandler(serializer *EventSerializer, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		serializer: serializer,
		logger:     logger.Named("notification"),
	}
}

// Handle logs the event envelope
func (h *NotificationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	env, err := h.serializer.Encode(event)
	if err != nil {
		return err
	}

	h.logger.Info("billing notification",
		zap.String("event_type", env.EventType),
		zap.String("event_id", env.EventID.String()),
		zap.String("aggregate_type", env.AggregateType),
		zap.String("aggregate_id", env.AggregateID.String()),
		zap.Time("occurred_at", env.OccurredAt),
		zap.ByteString("payload", env.Payload),
	)
	return nil
}

// EventTypes returns nil so the handler receives every event
func (h *NotificationHandler) EventTypes() []string {
	return nil
}

var _ shared.EventHandler = (*NotificationHandler)(nil)
