package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/erp/projectbilling/internal/domain/shared"
	"go.uber.org/zap"
)

// ErrBusStopped is returned by Publish after Stop
var ErrBusStopped = errors.New("event bus stopped")

// InMemoryEventBus implements EventBus with synchronous in-memory pub/sub.
// Handler failures are logged and returned joined so the caller can mark
// the notification side effect as degraded; they never stop delivery to
// the remaining handlers.
type InMemoryEventBus struct {
	mu       sync.RWMutex
	byType   map[string][]shared.EventHandler
	wildcard []shared.EventHandler
	logger   *zap.Logger
	stopped  atomic.Bool
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	return &InMemoryEventBus{
		byType: make(map[string][]shared.EventHandler),
		logger: logger.Named("event_bus"),
	}
}

// Publish dispatches events to every registered handler in order
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if b.stopped.Load() {
		return ErrBusStopped
	}

	var errs []error
	for _, event := range events {
		for _, handler := range b.handlersFor(event.EventType()) {
			if err := b.dispatchToHandler(ctx, handler, event); err != nil {
				b.logger.Error("handler failed to process event",
					zap.String("event_type", event.EventType()),
					zap.String("event_id", event.EventID().String()),
					zap.Error(err),
				)
				errs = append(errs, fmt.Errorf("%s: %w", event.EventType(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Subscribe registers a handler for specific event types.
// Without explicit types the handler's own EventTypes are used; a handler
// with no types at all receives every event.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}

	b.mu.Lock()
	if len(eventTypes) == 0 {
		b.wildcard = append(b.wildcard, handler)
	}
	for _, t := range eventTypes {
		b.byType[t] = append(b.byType[t], handler)
	}
	b.mu.Unlock()

	b.logger.Debug("handler subscribed",
		zap.Strings("event_types", eventTypes),
	)
}

// Unsubscribe removes a handler from every subscription
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.wildcard = without(b.wildcard, handler)
	for t, handlers := range b.byType {
		if rest := without(handlers, handler); len(rest) > 0 {
			b.byType[t] = rest
		} else {
			delete(b.byType, t)
		}
	}
}

// handlersFor returns type-specific handlers followed by wildcard handlers
func (b *InMemoryEventBus) handlersFor(eventType string) []shared.EventHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	typed := b.byType[eventType]
	out := make([]shared.EventHandler, 0, len(typed)+len(b.wildcard))
	out = append(out, typed...)
	return append(out, b.wildcard...)
}

func without(handlers []shared.EventHandler, target shared.EventHandler) []shared.EventHandler {
	out := handlers[:0:0]
	for _, h := range handlers {
		if h != target {
			out = append(out, h)
		}
	}
	return out
}

// Start (re)opens the bus for publishing
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.stopped.Store(false)
	b.logger.Info("event bus started")
	return nil
}

// Stop rejects further publishes
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.stopped.Store(true)
	b.logger.Info("event bus stopped")
	return nil
}

// dispatchToHandler converts a handler panic into an error
func (b *InMemoryEventBus) dispatchToHandler(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked",
				zap.String("event_type", event.EventType()),
				zap.Any("panic", r),
			)
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	return handler.Handle(ctx, event)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
