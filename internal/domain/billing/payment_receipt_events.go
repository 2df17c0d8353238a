package billing

import (
	"time"

	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventTypePaymentReceiptSubmitted = "PaymentReceiptSubmitted"
	EventTypePaymentReceiptApproved  = "PaymentReceiptApproved"
	EventTypePaymentReceiptRejected  = "PaymentReceiptRejected"

	AggregateTypePaymentReceipt = "PaymentReceipt"
)

// PaymentReceiptSubmittedEvent is raised when a receipt is submitted for verification
type PaymentReceiptSubmittedEvent struct {
	shared.BaseDomainEvent
	ReceiptID uuid.UUID       `json:"receipt_id"`
	ProjectID uuid.UUID       `json:"project_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedBy shared.ActorRef `json:"created_by"`
}

// NewPaymentReceiptSubmittedEvent creates a new PaymentReceiptSubmittedEvent
func NewPaymentReceiptSubmittedEvent(r *PaymentReceipt) *PaymentReceiptSubmittedEvent {
	return &PaymentReceiptSubmittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentReceiptSubmitted, AggregateTypePaymentReceipt, r.ID),
		ReceiptID:       r.ID,
		ProjectID:       r.ProjectID,
		Amount:          r.Amount,
		CreatedBy:       r.CreatedBy,
	}
}

// PaymentReceiptVerifiedEvent is raised when a receipt is approved or rejected
type PaymentReceiptVerifiedEvent struct {
	shared.BaseDomainEvent
	ReceiptID  uuid.UUID       `json:"receipt_id"`
	ProjectID  uuid.UUID       `json:"project_id"`
	Amount     decimal.Decimal `json:"amount"`
	Status     ReceiptStatus   `json:"status"`
	VerifiedBy shared.ActorRef `json:"verified_by"`
	VerifiedAt time.Time       `json:"verified_at"`
}

func newPaymentReceiptVerifiedEvent(eventType string, r *PaymentReceipt) *PaymentReceiptVerifiedEvent {
	e := &PaymentReceiptVerifiedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypePaymentReceipt, r.ID),
		ReceiptID:       r.ID,
		ProjectID:       r.ProjectID,
		Amount:          r.Amount,
		Status:          r.Status,
	}
	if r.VerifiedBy != nil {
		e.VerifiedBy = *r.VerifiedBy
	}
	if r.VerifiedAt != nil {
		e.VerifiedAt = *r.VerifiedAt
	}
	return e
}

// NewPaymentReceiptApprovedEvent creates the approval event
func NewPaymentReceiptApprovedEvent(r *PaymentReceipt) *PaymentReceiptVerifiedEvent {
	return newPaymentReceiptVerifiedEvent(EventTypePaymentReceiptApproved, r)
}

// NewPaymentReceiptRejectedEvent creates the rejection event
func NewPaymentReceiptRejectedEvent(r *PaymentReceipt) *PaymentReceiptVerifiedEvent {
	return newPaymentReceiptVerifiedEvent(EventTypePaymentReceiptRejected, r)
}
