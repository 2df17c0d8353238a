package approval

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RequestType selects the side effect applied when a request is approved
type RequestType string

const (
	RequestTypePaymentRecovery RequestType = "payment-recovery"
	RequestTypeApproval        RequestType = "approval" // installment payment approval
	RequestTypeWithdrawal      RequestType = "withdrawal-request"
	RequestTypeIncreaseCost    RequestType = "increase-cost"
	RequestTypeGeneral         RequestType = "general" // no financial side effect
)

// IsValid checks if the type is a valid RequestType
func (t RequestType) IsValid() bool {
	switch t {
	case RequestTypePaymentRecovery, RequestTypeApproval, RequestTypeWithdrawal,
		RequestTypeIncreaseCost, RequestTypeGeneral:
		return true
	}
	return false
}

// String returns the string representation of RequestType
func (t RequestType) String() string {
	return string(t)
}

// RequestStatus represents the status of a request
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusApproved  RequestStatus = "approved"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusResponded RequestStatus = "responded" // changes requested
)

// IsValid checks if the status is a valid RequestStatus
func (s RequestStatus) IsValid() bool {
	switch s {
	case RequestStatusPending, RequestStatusApproved, RequestStatusRejected, RequestStatusResponded:
		return true
	}
	return false
}

// IsTerminal returns true for every status but pending
func (s RequestStatus) IsTerminal() bool {
	return s != RequestStatusPending
}

// String returns the string representation of RequestStatus
func (s RequestStatus) String() string {
	return string(s)
}

// ResponseType is the recipient's answer to a request
type ResponseType string

const (
	ResponseApprove        ResponseType = "approve"
	ResponseReject         ResponseType = "reject"
	ResponseRequestChanges ResponseType = "request_changes"
)

// IsValid checks if the response type is valid
func (r ResponseType) IsValid() bool {
	return r == ResponseApprove || r == ResponseReject || r == ResponseRequestChanges
}

// RequiresMessage returns true if a message must accompany the response
func (r ResponseType) RequiresMessage() bool {
	return r == ResponseReject || r == ResponseRequestChanges
}

// TargetStatus returns the terminal status reached by this response
func (r ResponseType) TargetStatus() RequestStatus {
	switch r {
	case ResponseApprove:
		return RequestStatusApproved
	case ResponseReject:
		return RequestStatusRejected
	default:
		return RequestStatusResponded
	}
}

// String returns the string representation of ResponseType
func (r ResponseType) String() string {
	return string(r)
}

// Metadata carries the references a request's side effect works on.
// The *Recorded fields are filled in by side effects for audit.
type Metadata struct {
	SourceType       string            `json:"source_type,omitempty"`
	SourceID         *uuid.UUID        `json:"source_id,omitempty"`
	ProjectID        *uuid.UUID        `json:"project_id,omitempty"`
	InstallmentID    *uuid.UUID        `json:"installment_id,omitempty"`
	PaymentReceiptID *uuid.UUID        `json:"payment_receipt_id,omitempty"`
	NewCost          *decimal.Decimal  `json:"new_cost,omitempty"`
	PreviousCost     *decimal.Decimal  `json:"previous_cost,omitempty"`
	Extra            map[string]string `json:"extra,omitempty"`

	WalletEntryRecorded       *uuid.UUID `json:"wallet_entry_id,omitempty"`
	CostChangeRecorded        *uuid.UUID `json:"cost_change_id,omitempty"`
	LedgerTransactionRecorded *uuid.UUID `json:"ledger_transaction_id,omitempty"`
}

// Response is the recipient's recorded answer
type Response struct {
	RespondedBy shared.ActorRef `json:"responded_by"`
	Type        ResponseType    `json:"type"`
	Message     string          `json:"message,omitempty"`
	RespondedAt time.Time       `json:"responded_at"`
}

// Request is a financial action asked by one actor and answered exactly once
// by its recipient.
type Request struct {
	shared.BaseAggregateRoot
	Module      string           `json:"module"`
	Type        RequestType      `json:"type"`
	Status      RequestStatus    `json:"status"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	RequestedBy shared.ActorRef  `json:"requested_by"`
	Recipient   shared.ActorRef  `json:"recipient"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Metadata    Metadata         `json:"metadata"`
	Response    *Response        `json:"response,omitempty"`
}

// RequestSpec describes a request to create
type RequestSpec struct {
	Module      string
	Type        RequestType
	Title       string
	Description string
	RequestedBy shared.ActorRef
	Recipient   shared.ActorRef
	Amount      *decimal.Decimal
	Metadata    Metadata
}

// NewRequest validates a spec and creates a pending request
func NewRequest(spec RequestSpec) (*Request, error) {
	if !spec.Type.IsValid() {
		return nil, shared.NewValidationError("INVALID_REQUEST_TYPE", fmt.Sprintf("Request type %q is not valid", spec.Type))
	}
	if err := spec.RequestedBy.Validate(); err != nil {
		return nil, err
	}
	if err := spec.Recipient.Validate(); err != nil {
		return nil, err
	}
	if spec.Amount != nil && !spec.Amount.IsPositive() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Request amount must be a positive number")
	}
	if err := validateMetadata(spec); err != nil {
		return nil, err
	}

	module := strings.TrimSpace(spec.Module)
	if module == "" {
		module = "finance"
	}
	r := &Request{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Module:            module,
		Type:              spec.Type,
		Status:            RequestStatusPending,
		Title:             strings.TrimSpace(spec.Title),
		Description:       strings.TrimSpace(spec.Description),
		RequestedBy:       spec.RequestedBy,
		Recipient:         spec.Recipient,
		Amount:            spec.Amount,
		Metadata:          spec.Metadata,
	}
	r.AddDomainEvent(NewRequestCreatedEvent(r))
	return r, nil
}

func validateMetadata(spec RequestSpec) error {
	md := spec.Metadata
	switch spec.Type {
	case RequestTypePaymentRecovery:
		if md.PaymentReceiptID == nil {
			return shared.NewValidationError("MISSING_RECEIPT", "Payment recovery request requires a payment receipt")
		}
	case RequestTypeApproval:
		if md.InstallmentID == nil || md.ProjectID == nil {
			return shared.NewValidationError("MISSING_INSTALLMENT", "Installment approval request requires a project and an installment")
		}
	case RequestTypeWithdrawal:
		if spec.Amount == nil {
			return shared.NewValidationError("MISSING_AMOUNT", "Withdrawal request requires an amount")
		}
	case RequestTypeIncreaseCost:
		if md.ProjectID == nil {
			return shared.NewValidationError("MISSING_PROJECT", "Cost increase request requires a project")
		}
		if spec.Amount == nil && (md.NewCost == nil || md.PreviousCost == nil) {
			return shared.NewValidationError("MISSING_AMOUNT", "Cost increase request requires an amount or both new and previous cost")
		}
	}
	return nil
}

// GuardRespond checks that actor may answer the request with responseType.
// It never mutates the request.
func (r *Request) GuardRespond(actor shared.ActorRef, responseType ResponseType, message string) error {
	if r.Status.IsTerminal() {
		return shared.NewAlreadyHandledError(ErrRequestAlreadyHandled.Code, fmt.Sprintf("Request has already been %s", r.Status))
	}
	if !responseType.IsValid() {
		return shared.NewValidationError("INVALID_RESPONSE_TYPE", fmt.Sprintf("Response type %q is not valid", responseType))
	}
	if err := actor.Validate(); err != nil {
		return err
	}
	if !actor.Equal(r.Recipient) {
		return ErrNotRecipient
	}
	if responseType.RequiresMessage() && strings.TrimSpace(message) == "" {
		return shared.NewValidationError("MESSAGE_REQUIRED", fmt.Sprintf("A message is required to %s a request", strings.ReplaceAll(responseType.String(), "_", " ")))
	}
	return nil
}

// Respond records the recipient's answer and moves the request to its
// terminal status. A second call fails with an already handled error.
func (r *Request) Respond(actor shared.ActorRef, responseType ResponseType, message string, now time.Time) error {
	if err := r.GuardRespond(actor, responseType, message); err != nil {
		return err
	}
	r.Status = responseType.TargetStatus()
	r.Response = &Response{
		RespondedBy: actor,
		Type:        responseType,
		Message:     strings.TrimSpace(message),
		RespondedAt: now,
	}
	r.Touch(now)
	r.AddDomainEvent(NewRequestRespondedEvent(r))
	return nil
}

// IncreaseAmount returns the cost increase asked by an increase-cost request:
// the amount if set, else newCost - previousCost. Must be positive.
func (r *Request) IncreaseAmount() (decimal.Decimal, error) {
	var inc decimal.Decimal
	switch {
	case r.Amount != nil:
		inc = *r.Amount
	case r.Metadata.NewCost != nil && r.Metadata.PreviousCost != nil:
		inc = r.Metadata.NewCost.Sub(*r.Metadata.PreviousCost)
	}
	if !inc.IsPositive() {
		return decimal.Zero, shared.NewValidationError("INVALID_INCREASE", "Cost increase must be a positive amount")
	}
	return inc, nil
}

// RecordWalletEntry stores the wallet entry created by a withdrawal approval
func (r *Request) RecordWalletEntry(id uuid.UUID) {
	r.Metadata.WalletEntryRecorded = &id
}

// RecordCostChange stores the cost history entry created by a cost increase
func (r *Request) RecordCostChange(id uuid.UUID) {
	r.Metadata.CostChangeRecorded = &id
}

// RecordLedgerTransaction stores the ledger transaction created by an approval
func (r *Request) RecordLedgerTransaction(id uuid.UUID) {
	r.Metadata.LedgerTransactionRecorded = &id
}

// Request errors
var (
	ErrRequestNotFound       = shared.NewNotFoundError("REQUEST_NOT_FOUND", "Request not found")
	ErrRequestAlreadyHandled = shared.NewAlreadyHandledError("REQUEST_ALREADY_HANDLED", "Request has already been handled")
	ErrNotRecipient          = shared.NewForbiddenError("NOT_RECIPIENT", "Only the recipient can respond to this request")
)
