package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/google/uuid"
)

// Envelope is the wire form of a domain event handed to notification sinks
type Envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// EventSerializer encodes registered domain events into envelopes.
// Registration pins each event type to one Go type so a payload of the
// wrong shape is rejected.
type EventSerializer struct {
	mu       sync.RWMutex
	registry map[string]reflect.Type
}

// NewEventSerializer creates an empty serializer
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{
		registry: make(map[string]reflect.Type),
	}
}

// Register binds eventType to the concrete type of instance
func (s *EventSerializer) Register(eventType string, instance shared.DomainEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry[eventType] = reflect.TypeOf(instance)
}

// IsRegistered reports whether eventType has been registered
func (s *EventSerializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.registry[eventType]
	return ok
}

// Encode wraps event in an Envelope
func (s *EventSerializer) Encode(event shared.DomainEvent) (Envelope, error) {
	s.mu.RLock()
	want, ok := s.registry[event.EventType()]
	s.mu.RUnlock()

	if !ok {
		return Envelope{}, fmt.Errorf("unknown event type: %s", event.EventType())
	}
	if got := reflect.TypeOf(event); got != want {
		return Envelope{}, fmt.Errorf("event type %s registered as %s, got %s", event.EventType(), want, got)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s: %w", event.EventType(), err)
	}

	return Envelope{
		EventID:       event.EventID(),
		EventType:     event.EventType(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		OccurredAt:    event.OccurredAt(),
		Payload:       payload,
	}, nil
}
