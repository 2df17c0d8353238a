package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SourceType identifies what produced a ledger transaction
type SourceType string

const (
	SourceTypeProjectInstallment SourceType = "projectInstallment"
	SourceTypePaymentReceipt     SourceType = "paymentReceipt"
)

// IsValid checks if the source type is known
func (s SourceType) IsValid() bool {
	return s == SourceTypeProjectInstallment || s == SourceTypePaymentReceipt
}

// String returns the string representation of SourceType
func (s SourceType) String() string {
	return string(s)
}

// TransactionDirection is incoming or outgoing money
type TransactionDirection string

const (
	DirectionIncoming TransactionDirection = "incoming"
	DirectionOutgoing TransactionDirection = "outgoing"
)

// Ledger categories used by this core
const (
	CategoryInstallmentPayment = "Project Installment"
	CategoryReceiptPayment     = "Project Payment"
)

// SourceKey is the dedup key of a ledger transaction
type SourceKey struct {
	Type SourceType `json:"source_type"`
	ID   uuid.UUID  `json:"source_id"`
}

// String returns "type:id"
func (k SourceKey) String() string {
	return fmt.Sprintf("%s:%s", k.Type, k.ID)
}

// Validate checks the key is complete
func (k SourceKey) Validate() error {
	if !k.Type.IsValid() {
		return shared.NewValidationError("INVALID_SOURCE_TYPE", fmt.Sprintf("Invalid ledger source type %q", k.Type))
	}
	if k.ID == uuid.Nil {
		return shared.NewValidationError("INVALID_SOURCE_ID", "Ledger source ID cannot be empty")
	}
	return nil
}

// TransactionMetadata links a ledger transaction to its source
type TransactionMetadata struct {
	Source SourceKey         `json:"source"`
	Extra  map[string]string `json:"extra,omitempty"`
}

// LedgerTransaction is an immutable financial record.
// At most one exists per source key.
type LedgerTransaction struct {
	ID              uuid.UUID            `json:"id"`
	Direction       TransactionDirection `json:"direction"`
	Amount          decimal.Decimal      `json:"amount"`
	Category        string               `json:"category"`
	TransactionDate time.Time            `json:"transaction_date"`
	CreatedBy       shared.ActorRef      `json:"created_by"`
	ClientID        uuid.UUID            `json:"client_id"`
	ProjectID       uuid.UUID            `json:"project_id"`
	Account         string               `json:"account,omitempty"`
	Description     string               `json:"description"`
	Metadata        TransactionMetadata  `json:"metadata"`
	CreatedAt       time.Time            `json:"created_at"`
}

// IncomingTransactionSpec describes an incoming ledger transaction to create
type IncomingTransactionSpec struct {
	Amount          decimal.Decimal
	Category        string
	TransactionDate time.Time
	CreatedBy       shared.ActorRef
	ClientID        uuid.UUID
	ProjectID       uuid.UUID
	Account         string
	Description     string
	Metadata        TransactionMetadata
}

// NewIncomingTransaction validates a spec and builds the transaction
func NewIncomingTransaction(spec IncomingTransactionSpec, now time.Time) (*LedgerTransaction, error) {
	if !spec.Amount.IsPositive() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Transaction amount must be a positive number")
	}
	if err := spec.Metadata.Source.Validate(); err != nil {
		return nil, err
	}
	if spec.ProjectID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_PROJECT", "Project ID cannot be empty")
	}
	if err := spec.CreatedBy.Validate(); err != nil {
		return nil, err
	}
	date := spec.TransactionDate
	if date.IsZero() {
		date = now
	}
	return &LedgerTransaction{
		ID:              uuid.New(),
		Direction:       DirectionIncoming,
		Amount:          spec.Amount,
		Category:        strings.TrimSpace(spec.Category),
		TransactionDate: date,
		CreatedBy:       spec.CreatedBy,
		ClientID:        spec.ClientID,
		ProjectID:       spec.ProjectID,
		Account:         strings.TrimSpace(spec.Account),
		Description:     spec.Description,
		Metadata:        spec.Metadata,
		CreatedAt:       now,
	}, nil
}

// InstallmentTransactionSpec builds the ledger spec for a paid installment
func InstallmentTransactionSpec(p *Project, inst Installment, actor shared.ActorRef) IncomingTransactionSpec {
	date := inst.UpdatedAt
	if inst.PaidDate != nil {
		date = *inst.PaidDate
	}
	return IncomingTransactionSpec{
		Amount:          inst.Amount,
		Category:        CategoryInstallmentPayment,
		TransactionDate: date,
		CreatedBy:       actor,
		ClientID:        p.ClientID,
		ProjectID:       p.ID,
		Account:         inst.Account,
		Description:     fmt.Sprintf("Installment payment for project %s", p.Name),
		Metadata: TransactionMetadata{
			Source: SourceKey{Type: SourceTypeProjectInstallment, ID: inst.ID},
			Extra:  map[string]string{"dueDate": inst.DueDate.Format("2006-01-02")},
		},
	}
}

// ReceiptTransactionSpec builds the ledger spec for an approved receipt
func ReceiptTransactionSpec(r *PaymentReceipt, projectName string) IncomingTransactionSpec {
	actor := r.CreatedBy
	date := r.UpdatedAt
	if r.VerifiedBy != nil {
		actor = *r.VerifiedBy
	}
	if r.VerifiedAt != nil {
		date = *r.VerifiedAt
	}
	return IncomingTransactionSpec{
		Amount:          r.Amount,
		Category:        CategoryReceiptPayment,
		TransactionDate: date,
		CreatedBy:       actor,
		ClientID:        r.ClientID,
		ProjectID:       r.ProjectID,
		Account:         r.Account,
		Description:     fmt.Sprintf("Payment receipt for project %s", projectName),
		Metadata: TransactionMetadata{
			Source: SourceKey{Type: SourceTypePaymentReceipt, ID: r.ID},
			Extra:  map[string]string{"method": r.Method.String()},
		},
	}
}
