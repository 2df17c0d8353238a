package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/erp/projectbilling/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProjectModel is the persistence model for the Project aggregate root.
// The installment plan and cost history are stored as JSONB arrays.
type ProjectModel struct {
	AggregateModel
	Name                string          `gorm:"type:varchar(200);not null"`
	ClientID            uuid.UUID       `gorm:"type:uuid;not null;index"`
	TotalCost           decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	AdvanceReceived     decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	IncludeGST          bool            `gorm:"column:include_gst;not null"`
	RemainingAmount     decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Budget              decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	InstallmentPlanJSON string          `gorm:"column:installment_plan;type:jsonb;not null;default:'[]'"`
	CostHistoryJSON     string          `gorm:"column:cost_history;type:jsonb;not null;default:'[]'"`
}

// TableName returns the table name for GORM
func (ProjectModel) TableName() string {
	return "projects"
}

// FromDomain populates the model from a domain Project
func (m *ProjectModel) FromDomain(p *billing.Project) error {
	plan, err := json.Marshal(nonNil(p.InstallmentPlan))
	if err != nil {
		return fmt.Errorf("failed to encode installment plan: %w", err)
	}
	history, err := json.Marshal(nonNil(p.CostHistory))
	if err != nil {
		return fmt.Errorf("failed to encode cost history: %w", err)
	}

	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.Name = p.Name
	m.ClientID = p.ClientID
	m.TotalCost = p.FinancialDetails.TotalCost
	m.AdvanceReceived = p.FinancialDetails.AdvanceReceived
	m.IncludeGST = p.FinancialDetails.IncludeGST
	m.RemainingAmount = p.FinancialDetails.RemainingAmount
	m.Budget = p.Budget
	m.InstallmentPlanJSON = string(plan)
	m.CostHistoryJSON = string(history)
	return nil
}

// ToDomain converts the model to a domain Project
func (m *ProjectModel) ToDomain() (*billing.Project, error) {
	plan := make([]billing.Installment, 0)
	if err := decodeArray(m.InstallmentPlanJSON, &plan); err != nil {
		return nil, fmt.Errorf("project %s: failed to decode installment plan: %w", m.ID, err)
	}
	history := make([]billing.CostChangeEntry, 0)
	if err := decodeArray(m.CostHistoryJSON, &history); err != nil {
		return nil, fmt.Errorf("project %s: failed to decode cost history: %w", m.ID, err)
	}

	return &billing.Project{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Name:              m.Name,
		ClientID:          m.ClientID,
		FinancialDetails: billing.FinancialDetails{
			TotalCost:       m.TotalCost,
			AdvanceReceived: m.AdvanceReceived,
			IncludeGST:      m.IncludeGST,
			RemainingAmount: m.RemainingAmount,
		},
		Budget:          m.Budget,
		InstallmentPlan: plan,
		CostHistory:     history,
	}, nil
}

// PaymentReceiptModel is the persistence model for the PaymentReceipt aggregate root
type PaymentReceiptModel struct {
	AggregateModel
	ProjectID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	ClientID       uuid.UUID       `gorm:"type:uuid;not null"`
	Amount         decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Account        string          `gorm:"type:varchar(100);not null;default:''"`
	Method         string          `gorm:"type:varchar(30);not null"`
	Status         string          `gorm:"type:varchar(20);not null;index"`
	Notes          string          `gorm:"type:text"`
	CreatedByID    uuid.UUID       `gorm:"type:uuid;not null"`
	CreatedByKind  string          `gorm:"type:varchar(30);not null"`
	VerifiedByID   *uuid.UUID      `gorm:"type:uuid"`
	VerifiedByKind *string         `gorm:"type:varchar(30)"`
	VerifiedAt     *time.Time
	RejectReason   string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (PaymentReceiptModel) TableName() string {
	return "payment_receipts"
}

// FromDomain populates the model from a domain PaymentReceipt
func (m *PaymentReceiptModel) FromDomain(r *billing.PaymentReceipt) {
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	m.ProjectID = r.ProjectID
	m.ClientID = r.ClientID
	m.Amount = r.Amount
	m.Account = r.Account
	m.Method = string(r.Method)
	m.Status = string(r.Status)
	m.Notes = r.Notes
	m.CreatedByID = r.CreatedBy.ID
	m.CreatedByKind = string(r.CreatedBy.Kind)
	m.VerifiedByID, m.VerifiedByKind = splitNullableActor(r.VerifiedBy)
	m.VerifiedAt = r.VerifiedAt
	m.RejectReason = r.RejectReason
}

// ToDomain converts the model to a domain PaymentReceipt
func (m *PaymentReceiptModel) ToDomain() *billing.PaymentReceipt {
	return &billing.PaymentReceipt{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		ProjectID:         m.ProjectID,
		ClientID:          m.ClientID,
		Amount:            m.Amount,
		Account:           m.Account,
		Method:            billing.PaymentMethod(m.Method),
		Status:            billing.ReceiptStatus(m.Status),
		Notes:             m.Notes,
		CreatedBy:         actorRef(m.CreatedByID, m.CreatedByKind),
		VerifiedBy:        nullableActorRef(m.VerifiedByID, m.VerifiedByKind),
		VerifiedAt:        m.VerifiedAt,
		RejectReason:      m.RejectReason,
	}
}

// LedgerTransactionModel is the persistence model for an immutable ledger transaction.
// (source_type, source_id) is unique.
type LedgerTransactionModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key"`
	Direction       string          `gorm:"type:varchar(10);not null"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Category        string          `gorm:"type:varchar(100);not null"`
	TransactionDate time.Time       `gorm:"not null"`
	CreatedByID     uuid.UUID       `gorm:"type:uuid;not null"`
	CreatedByKind   string          `gorm:"type:varchar(30);not null"`
	ClientID        uuid.UUID       `gorm:"type:uuid;not null"`
	ProjectID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_ledger_transactions_project"`
	Account         string          `gorm:"type:varchar(100);not null;default:''"`
	Description     string          `gorm:"type:text;not null;default:''"`
	SourceType      string          `gorm:"type:varchar(40);not null;uniqueIndex:uq_ledger_transactions_source"`
	SourceID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_ledger_transactions_source"`
	MetadataExtra   string          `gorm:"column:metadata_extra;type:jsonb;not null;default:'{}'"`
	CreatedAt       time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LedgerTransactionModel) TableName() string {
	return "ledger_transactions"
}

// FromDomain populates the model from a domain LedgerTransaction
func (m *LedgerTransactionModel) FromDomain(tx *billing.LedgerTransaction) error {
	extra := tx.Metadata.Extra
	if extra == nil {
		extra = map[string]string{}
	}
	encoded, err := json.Marshal(extra)
	if err != nil {
		return fmt.Errorf("failed to encode ledger metadata: %w", err)
	}

	m.ID = tx.ID
	m.Direction = string(tx.Direction)
	m.Amount = tx.Amount
	m.Category = tx.Category
	m.TransactionDate = tx.TransactionDate
	m.CreatedByID = tx.CreatedBy.ID
	m.CreatedByKind = string(tx.CreatedBy.Kind)
	m.ClientID = tx.ClientID
	m.ProjectID = tx.ProjectID
	m.Account = tx.Account
	m.Description = tx.Description
	m.SourceType = string(tx.Metadata.Source.Type)
	m.SourceID = tx.Metadata.Source.ID
	m.MetadataExtra = string(encoded)
	m.CreatedAt = tx.CreatedAt
	return nil
}

// ToDomain converts the model to a domain LedgerTransaction
func (m *LedgerTransactionModel) ToDomain() (*billing.LedgerTransaction, error) {
	var extra map[string]string
	if m.MetadataExtra != "" && m.MetadataExtra != "{}" {
		if err := json.Unmarshal([]byte(m.MetadataExtra), &extra); err != nil {
			return nil, fmt.Errorf("ledger transaction %s: failed to decode metadata: %w", m.ID, err)
		}
	}
	return &billing.LedgerTransaction{
		ID:              m.ID,
		Direction:       billing.TransactionDirection(m.Direction),
		Amount:          m.Amount,
		Category:        m.Category,
		TransactionDate: m.TransactionDate,
		CreatedBy:       actorRef(m.CreatedByID, m.CreatedByKind),
		ClientID:        m.ClientID,
		ProjectID:       m.ProjectID,
		Account:         m.Account,
		Description:     m.Description,
		Metadata: billing.TransactionMetadata{
			Source: billing.SourceKey{Type: billing.SourceType(m.SourceType), ID: m.SourceID},
			Extra:  extra,
		},
		CreatedAt: m.CreatedAt,
	}, nil
}

// WalletModel is the persistence model for the Wallet aggregate root
type WalletModel struct {
	AggregateModel
	HolderID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_wallets_holder"`
	HolderKind string          `gorm:"type:varchar(30);not null;uniqueIndex:uq_wallets_holder"`
	Balance    decimal.Decimal `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (WalletModel) TableName() string {
	return "wallets"
}

// FromDomain populates the model from a domain Wallet
func (m *WalletModel) FromDomain(w *billing.Wallet) {
	m.FromDomainAggregateRoot(w.BaseAggregateRoot)
	m.HolderID = w.Holder.ID
	m.HolderKind = string(w.Holder.Kind)
	m.Balance = w.Balance
}

// ToDomain converts the model to a domain Wallet
func (m *WalletModel) ToDomain() *billing.Wallet {
	return &billing.Wallet{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Holder:            actorRef(m.HolderID, m.HolderKind),
		Balance:           m.Balance,
	}
}

// WalletEntryModel is the persistence model for a wallet movement
type WalletEntryModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key"`
	WalletID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	Direction     string          `gorm:"type:varchar(10);not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	SourceType    string          `gorm:"type:varchar(40);not null;default:''"`
	SourceID      *uuid.UUID      `gorm:"type:uuid"`
	Description   string          `gorm:"type:text"`
	CreatedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (WalletEntryModel) TableName() string {
	return "wallet_entries"
}

// FromDomain populates the model from a domain WalletEntry
func (m *WalletEntryModel) FromDomain(e *billing.WalletEntry) {
	m.ID = e.ID
	m.WalletID = e.WalletID
	m.Direction = string(e.Direction)
	m.Amount = e.Amount
	m.BalanceBefore = e.BalanceBefore
	m.BalanceAfter = e.BalanceAfter
	m.SourceType = e.SourceType
	m.SourceID = nil
	if e.SourceID != uuid.Nil {
		id := e.SourceID
		m.SourceID = &id
	}
	m.Description = e.Description
	m.CreatedAt = e.CreatedAt
}

// ToDomain converts the model to a domain WalletEntry
func (m *WalletEntryModel) ToDomain() billing.WalletEntry {
	entry := billing.WalletEntry{
		ID:            m.ID,
		WalletID:      m.WalletID,
		Direction:     billing.TransactionDirection(m.Direction),
		Amount:        m.Amount,
		BalanceBefore: m.BalanceBefore,
		BalanceAfter:  m.BalanceAfter,
		SourceType:    m.SourceType,
		Description:   m.Description,
		CreatedAt:     m.CreatedAt,
	}
	if m.SourceID != nil {
		entry.SourceID = *m.SourceID
	}
	return entry
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func decodeArray[T any](raw string, out *[]T) error {
	if raw == "" || raw == "[]" {
		return nil
	}
	return json.Unmarshal([]byte(raw), out)
}
