package billing

import (
	"context"

	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProjectRepository defines the interface for project persistence.
// The installment plan and cost history are stored with the project.
type ProjectRepository interface {
	// FindByID finds a project by ID; returns nil, nil when absent
	FindByID(ctx context.Context, id uuid.UUID) (*Project, error)

	// Save creates or overwrites a project
	Save(ctx context.Context, project *Project) error

	// SaveWithLock saves with optimistic locking (version check) and
	// advances the version on success
	SaveWithLock(ctx context.Context, project *Project) error
}

// PaymentReceiptRepository defines the interface for payment receipt persistence
type PaymentReceiptRepository interface {
	// FindByID finds a receipt by ID; returns nil, nil when absent
	FindByID(ctx context.Context, id uuid.UUID) (*PaymentReceipt, error)

	// FindByProject lists receipts of a project, optionally filtered by status
	FindByProject(ctx context.Context, projectID uuid.UUID, status *ReceiptStatus, filter shared.Filter) ([]PaymentReceipt, error)

	// SumApprovedByProject sums the amounts of approved receipts
	SumApprovedByProject(ctx context.Context, projectID uuid.UUID) (decimal.Decimal, error)

	// Save creates a receipt
	Save(ctx context.Context, receipt *PaymentReceipt) error

	// UpdateStatusIf writes the receipt's verification only if the stored
	// status still equals expected (and the version matches). A lost race
	// yields a conflict error.
	UpdateStatusIf(ctx context.Context, receipt *PaymentReceipt, expected ReceiptStatus) error
}

// LedgerTransactionRepository defines the interface for ledger persistence.
// Storage enforces uniqueness of the source key.
type LedgerTransactionRepository interface {
	// FindBySource finds the transaction for a source key; returns nil, nil when absent
	FindBySource(ctx context.Context, key SourceKey) (*LedgerTransaction, error)

	// CreateIfAbsent inserts the transaction unless one exists for its source key,
	// in which case the stored one is returned with created=false
	CreateIfAbsent(ctx context.Context, tx *LedgerTransaction) (stored *LedgerTransaction, created bool, err error)

	// FindByProject lists the transactions of a project ordered by transaction date
	FindByProject(ctx context.Context, projectID uuid.UUID) ([]LedgerTransaction, error)

	// ExistingSourceIDs returns the source IDs of one type already in the ledger for a project
	ExistingSourceIDs(ctx context.Context, projectID uuid.UUID, sourceType SourceType) (map[uuid.UUID]struct{}, error)
}

// WalletRepository defines the interface for wallet persistence
type WalletRepository interface {
	// FindByHolder finds the wallet of an actor; returns nil, nil when absent
	FindByHolder(ctx context.Context, holder shared.ActorRef) (*Wallet, error)

	// Save creates a wallet
	Save(ctx context.Context, wallet *Wallet) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, wallet *Wallet) error
}

// WalletEntryRepository stores wallet movements
type WalletEntryRepository interface {
	Create(ctx context.Context, entry *WalletEntry) error
	FindByWallet(ctx context.Context, walletID uuid.UUID) ([]WalletEntry, error)
}
