package approval

import (
	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/google/uuid"
)

const (
	EventTypeRequestCreated   = "RequestCreated"
	EventTypeRequestResponded = "RequestResponded"

	AggregateTypeRequest = "Request"
)

// RequestCreatedEvent is raised when a request is raised for a recipient
type RequestCreatedEvent struct {
	shared.BaseDomainEvent
	RequestID   uuid.UUID       `json:"request_id"`
	Type        RequestType     `json:"type"`
	RequestedBy shared.ActorRef `json:"requested_by"`
	Recipient   shared.ActorRef `json:"recipient"`
}

// NewRequestCreatedEvent creates a new RequestCreatedEvent
func NewRequestCreatedEvent(r *Request) *RequestCreatedEvent {
	return &RequestCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRequestCreated, AggregateTypeRequest, r.ID),
		RequestID:       r.ID,
		Type:            r.Type,
		RequestedBy:     r.RequestedBy,
		Recipient:       r.Recipient,
	}
}

// RequestRespondedEvent is raised when the recipient answers a request
type RequestRespondedEvent struct {
	shared.BaseDomainEvent
	RequestID   uuid.UUID       `json:"request_id"`
	Type        RequestType     `json:"type"`
	Status      RequestStatus   `json:"status"`
	RequestedBy shared.ActorRef `json:"requested_by"`
	Response    Response        `json:"response"`
}

// NewRequestRespondedEvent creates a new RequestRespondedEvent
func NewRequestRespondedEvent(r *Request) *RequestRespondedEvent {
	e := &RequestRespondedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRequestResponded, AggregateTypeRequest, r.ID),
		RequestID:       r.ID,
		Type:            r.Type,
		Status:          r.Status,
		RequestedBy:     r.RequestedBy,
	}
	if r.Response != nil {
		e.Response = *r.Response
	}
	return e
}
