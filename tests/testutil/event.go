package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/erp/projectbilling/internal/domain/shared"
)

// MockEventHandler is a mock implementation of shared.EventHandler for testing.
type MockEventHandler struct {
	mu         sync.Mutex
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
}

// NewMockEventHandler creates a new mock event handler.
func NewMockEventHandler(eventTypes ...string) *MockEventHandler {
	return &MockEventHandler{
		eventTypes: eventTypes,
		handled:    make([]shared.DomainEvent, 0),
	}
}

// EventTypes returns the event types this handler subscribes to.
func (h *MockEventHandler) EventTypes() []string {
	return h.eventTypes
}

// Handle processes an event.
func (h *MockEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.err
}

// Handled returns all handled events.
func (h *MockEventHandler) Handled() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	result := make([]shared.DomainEvent, len(h.handled))
	copy(result, h.handled)
	return result
}

// HandledCount returns the number of handled events.
func (h *MockEventHandler) HandledCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

// SetError sets the error to return from Handle.
func (h *MockEventHandler) SetError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

// RecordingPublisher is a shared.EventPublisher that keeps every published event.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
	err    error
}

// NewRecordingPublisher creates a new recording publisher.
func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

// Publish records events, or fails with the configured error.
func (p *RecordingPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, events...)
	return nil
}

// SetError makes every later Publish fail with err.
func (p *RecordingPublisher) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Types returns the types of the published events in order.
func (p *RecordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, len(p.events))
	for i, e := range p.events {
		types[i] = e.EventType()
	}
	return types
}

// Count returns how many events of eventType were published.
func (p *RecordingPublisher) Count(eventType string) int {
	n := 0
	for _, t := range p.Types() {
		if t == eventType {
			n++
		}
	}
	return n
}

// TestEvent is a simple domain event for testing.
type TestEvent struct {
	shared.BaseDomainEvent
	Data string
}

// NewTestEvent creates a new test event.
func NewTestEvent(eventType string) *TestEvent {
	return &TestEvent{
		BaseDomainEvent: shared.BaseDomainEvent{
			ID:        uuid.New(),
			Type:      eventType,
			Timestamp: time.Now(),
			AggID:     uuid.New(),
			AggType:   "TestAggregate",
		},
		Data: "test-data",
	}
}
