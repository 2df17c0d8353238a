package billing

import (
	"strings"
	"time"

	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReceiptStatus represents the verification status of a payment receipt
type ReceiptStatus string

const (
	ReceiptStatusPending  ReceiptStatus = "pending"
	ReceiptStatusApproved ReceiptStatus = "approved"
	ReceiptStatusRejected ReceiptStatus = "rejected"
)

// IsValid checks if the status is a valid ReceiptStatus
func (s ReceiptStatus) IsValid() bool {
	switch s {
	case ReceiptStatusPending, ReceiptStatusApproved, ReceiptStatusRejected:
		return true
	}
	return false
}

// String returns the string representation of ReceiptStatus
func (s ReceiptStatus) String() string {
	return string(s)
}

// IsTerminal returns true once the receipt has been verified
func (s ReceiptStatus) IsTerminal() bool {
	return s == ReceiptStatusApproved || s == ReceiptStatusRejected
}

// PaymentMethod is how the client paid
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCheque       PaymentMethod = "cheque"
	PaymentMethodUPI          PaymentMethod = "upi"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodOther        PaymentMethod = "other"
)

// IsValid checks if the method is a valid PaymentMethod
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCheque,
		PaymentMethodUPI, PaymentMethodCard, PaymentMethodOther:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// PaymentReceipt is an ad-hoc payment submitted by a sales actor and
// verified exactly once by an approver.
type PaymentReceipt struct {
	shared.BaseAggregateRoot
	ProjectID    uuid.UUID        `json:"project_id"`
	ClientID     uuid.UUID        `json:"client_id"`
	Amount       decimal.Decimal  `json:"amount"`
	Account      string           `json:"account"`
	Method       PaymentMethod    `json:"method"`
	Status       ReceiptStatus    `json:"status"`
	Notes        string           `json:"notes,omitempty"`
	CreatedBy    shared.ActorRef  `json:"created_by"`
	VerifiedBy   *shared.ActorRef `json:"verified_by,omitempty"`
	VerifiedAt   *time.Time       `json:"verified_at,omitempty"`
	RejectReason string           `json:"reject_reason,omitempty"`
}

// NewPaymentReceipt creates a pending receipt
func NewPaymentReceipt(
	projectID, clientID uuid.UUID,
	amount decimal.Decimal,
	account string,
	method PaymentMethod,
	createdBy shared.ActorRef,
) (*PaymentReceipt, error) {
	if projectID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_PROJECT", "Project ID cannot be empty")
	}
	if clientID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_CLIENT", "Client ID cannot be empty")
	}
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Receipt amount must be a positive number")
	}
	if method == "" {
		method = PaymentMethodOther
	}
	if !method.IsValid() {
		return nil, shared.NewValidationError("INVALID_PAYMENT_METHOD", "Invalid payment method")
	}
	if err := createdBy.Validate(); err != nil {
		return nil, err
	}

	r := &PaymentReceipt{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ProjectID:         projectID,
		ClientID:          clientID,
		Amount:            amount,
		Account:           strings.TrimSpace(account),
		Method:            method,
		Status:            ReceiptStatusPending,
		CreatedBy:         createdBy,
	}
	r.AddDomainEvent(NewPaymentReceiptSubmittedEvent(r))
	return r, nil
}

// Approve verifies the receipt as received money
func (r *PaymentReceipt) Approve(verifier shared.ActorRef, now time.Time) error {
	if err := r.guardTransition(ReceiptStatusApproved, verifier); err != nil {
		return err
	}
	r.verify(ReceiptStatusApproved, verifier, now)
	r.AddDomainEvent(NewPaymentReceiptApprovedEvent(r))
	return nil
}

// Reject marks the receipt as not received
func (r *PaymentReceipt) Reject(verifier shared.ActorRef, reason string, now time.Time) error {
	if err := r.guardTransition(ReceiptStatusRejected, verifier); err != nil {
		return err
	}
	r.RejectReason = strings.TrimSpace(reason)
	r.verify(ReceiptStatusRejected, verifier, now)
	r.AddDomainEvent(NewPaymentReceiptRejectedEvent(r))
	return nil
}

// guardTransition allows exactly one transition out of pending
func (r *PaymentReceipt) guardTransition(target ReceiptStatus, verifier shared.ActorRef) error {
	if err := verifier.Validate(); err != nil {
		return err
	}
	switch r.Status {
	case ReceiptStatusPending:
		return nil
	case ReceiptStatusApproved:
		return ErrReceiptAlreadyApproved
	case ReceiptStatusRejected:
		return ErrReceiptAlreadyRejected
	}
	return shared.NewValidationError("INVALID_STATUS", "Receipt status "+r.Status.String()+" cannot transition to "+target.String())
}

func (r *PaymentReceipt) verify(status ReceiptStatus, verifier shared.ActorRef, now time.Time) {
	v := verifier
	at := now
	r.Status = status
	r.VerifiedBy = &v
	r.VerifiedAt = &at
	r.Touch(now)
}

// IsApproved returns true if the receipt counts as received money
func (r *PaymentReceipt) IsApproved() bool {
	return r.Status == ReceiptStatusApproved
}

// Receipt errors
var (
	ErrReceiptNotFound        = shared.NewNotFoundError("RECEIPT_NOT_FOUND", "Payment receipt not found")
	ErrReceiptAlreadyApproved = shared.NewAlreadyHandledError("RECEIPT_ALREADY_APPROVED", "Payment receipt is already approved")
	ErrReceiptAlreadyRejected = shared.NewAlreadyHandledError("RECEIPT_ALREADY_REJECTED", "Payment receipt is already rejected")
)
