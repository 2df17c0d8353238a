package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InstallmentStatus represents the status of a scheduled installment
type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "pending" // Due date not reached yet
	InstallmentStatusPaid    InstallmentStatus = "paid"    // Money received; only changed by manual correction
	InstallmentStatusOverdue InstallmentStatus = "overdue" // Due date passed without payment
)

// IsValid checks if the status is a valid InstallmentStatus
func (s InstallmentStatus) IsValid() bool {
	switch s {
	case InstallmentStatusPending, InstallmentStatusPaid, InstallmentStatusOverdue:
		return true
	}
	return false
}

// String returns the string representation of InstallmentStatus
func (s InstallmentStatus) String() string {
	return string(s)
}

// IsPaid returns true for the paid status
func (s InstallmentStatus) IsPaid() bool {
	return s == InstallmentStatusPaid
}

// Installment is a scheduled partial payment inside a project's billing plan.
// It is owned by the Project aggregate and addressed by its stable ID.
type Installment struct {
	ID        uuid.UUID         `json:"id"`
	Amount    decimal.Decimal   `json:"amount"`
	DueDate   time.Time         `json:"due_date"`
	Status    InstallmentStatus `json:"status"`
	PaidDate  *time.Time        `json:"paid_date,omitempty"`
	Notes     string            `json:"notes,omitempty"`
	Account   string            `json:"account,omitempty"`
	CreatedBy shared.ActorRef   `json:"created_by"`
	UpdatedBy shared.ActorRef   `json:"updated_by"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// IsPaid returns true if the installment has been paid
func (i *Installment) IsPaid() bool {
	return i.Status.IsPaid()
}

// refreshStatus derives pending/overdue from the due date. Paid installments
// are never reverted; a missing paid date is defaulted to now.
// Returns true if anything changed.
func (i *Installment) refreshStatus(now time.Time) bool {
	if i.Status.IsPaid() {
		if i.PaidDate == nil {
			paid := now
			i.PaidDate = &paid
			i.UpdatedAt = now
			return true
		}
		return false
	}

	want := InstallmentStatusPending
	if i.DueDate.Before(now) {
		want = InstallmentStatusOverdue
	}
	if i.Status == want {
		return false
	}
	i.Status = want
	i.UpdatedAt = now
	return true
}

// InstallmentSpec describes an installment to be added to a plan
type InstallmentSpec struct {
	Amount  decimal.Decimal   `json:"amount"`
	DueDate time.Time         `json:"due_date"`
	Status  InstallmentStatus `json:"status,omitempty" validate:"omitempty,oneof=pending paid overdue"`
	Account string            `json:"account,omitempty" validate:"max=100"`
	Notes   string            `json:"notes,omitempty" validate:"max=1000"`
}

// normalize validates the spec and applies defaults
func (s InstallmentSpec) normalize() (InstallmentSpec, error) {
	if !s.Amount.IsPositive() {
		return s, shared.NewValidationError("INVALID_AMOUNT", "Installment amount must be a positive number")
	}
	if s.DueDate.IsZero() {
		return s, shared.NewValidationError("INVALID_DUE_DATE", "Installment due date must be a valid date")
	}
	if s.Status == "" {
		s.Status = InstallmentStatusPending
	}
	if !s.Status.IsValid() {
		return s, shared.NewValidationError("INVALID_STATUS", fmt.Sprintf("Installment status %q is not valid", s.Status))
	}
	s.Account = strings.TrimSpace(s.Account)
	s.Notes = strings.TrimSpace(s.Notes)
	return s, nil
}

// InstallmentPatch carries the fields of an installment update.
// Nil fields are left untouched.
type InstallmentPatch struct {
	Amount   *decimal.Decimal   `json:"amount,omitempty"`
	DueDate  *time.Time         `json:"due_date,omitempty"`
	Notes    *string            `json:"notes,omitempty"`
	Account  *string            `json:"account,omitempty"`
	Status   *InstallmentStatus `json:"status,omitempty"`
	PaidDate *time.Time         `json:"paid_date,omitempty"`
}

// IsEmpty returns true if the patch carries no field
func (p InstallmentPatch) IsEmpty() bool {
	return p.Amount == nil && p.DueDate == nil && p.Notes == nil &&
		p.Account == nil && p.Status == nil && p.PaidDate == nil
}

func (p InstallmentPatch) validate() error {
	if p.IsEmpty() {
		return shared.NewValidationError("EMPTY_PATCH", "No installment field to update")
	}
	if p.Amount != nil && !p.Amount.IsPositive() {
		return shared.NewValidationError("INVALID_AMOUNT", "Installment amount must be a positive number")
	}
	if p.DueDate != nil && p.DueDate.IsZero() {
		return shared.NewValidationError("INVALID_DUE_DATE", "Installment due date must be a valid date")
	}
	if p.Status != nil && !p.Status.IsValid() {
		return shared.NewValidationError("INVALID_STATUS", fmt.Sprintf("Installment status %q is not valid", *p.Status))
	}
	if p.PaidDate != nil && p.PaidDate.IsZero() {
		return shared.NewValidationError("INVALID_PAID_DATE", "Paid date must be a valid date")
	}
	return nil
}

// InstallmentChange describes the outcome of an installment update
type InstallmentChange struct {
	Installment Installment
	Previous    Installment
	BecamePaid  bool // transitioned from a non-paid status into paid
	LeftPaid    bool // transitioned out of paid (manual correction)
}

// Installment errors
var (
	ErrInstallmentNotFound    = shared.NewNotFoundError("INSTALLMENT_NOT_FOUND", "Installment not found")
	ErrInstallmentAlreadyPaid = shared.NewAlreadyHandledError("INSTALLMENT_ALREADY_PAID", "Installment is already paid")
	ErrTotalCostUndefined     = shared.NewInvariantError("TOTAL_COST_UNDEFINED", "Project total cost must be set before adding installments")
	ErrInstallmentsExceedCost = shared.NewInvariantError("INSTALLMENTS_EXCEED_COST", "Installment total exceeds project total cost")
	ErrPaidDateWithoutPayment = shared.NewValidationError("PAID_DATE_WITHOUT_PAYMENT", "Paid date can only be set on a paid installment")
)
