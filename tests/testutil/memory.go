package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/projectbilling/internal/domain/approval"
	"github.com/erp/projectbilling/internal/domain/billing"
	"github.com/erp/projectbilling/internal/domain/shared"
)

// The in-memory repositories below store copies of aggregates and apply the
// same version check as the gorm repositories, so concurrent callers racing on
// one aggregate see a conflict error exactly as they would in production.

func cloneProject(p *billing.Project) *billing.Project {
	cp := *p
	cp.InstallmentPlan = append([]billing.Installment(nil), p.InstallmentPlan...)
	cp.CostHistory = append([]billing.CostChangeEntry(nil), p.CostHistory...)
	cp.ClearDomainEvents()
	return &cp
}

// MemoryProjectRepository is an in-memory billing.ProjectRepository.
type MemoryProjectRepository struct {
	mu        sync.Mutex
	projects  map[uuid.UUID]*billing.Project
	conflicts int
}

// NewMemoryProjectRepository creates an empty repository.
func NewMemoryProjectRepository() *MemoryProjectRepository {
	return &MemoryProjectRepository{projects: make(map[uuid.UUID]*billing.Project)}
}

// FindByID implements billing.ProjectRepository.
func (r *MemoryProjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, nil
	}
	return cloneProject(p), nil
}

// Save implements billing.ProjectRepository.
func (r *MemoryProjectRepository) Save(ctx context.Context, project *billing.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[project.ID] = cloneProject(project)
	return nil
}

// InjectConflicts makes the next n SaveWithLock calls fail as if another
// writer had won the race.
func (r *MemoryProjectRepository) InjectConflicts(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts = n
}

// SaveWithLock implements billing.ProjectRepository.
func (r *MemoryProjectRepository) SaveWithLock(ctx context.Context, project *billing.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts > 0 {
		r.conflicts--
		return shared.ErrConcurrencyConflict
	}
	stored, ok := r.projects[project.ID]
	if !ok || stored.Version != project.Version {
		return shared.ErrConcurrencyConflict
	}
	project.Version++
	r.projects[project.ID] = cloneProject(project)
	return nil
}

// MemoryPaymentReceiptRepository is an in-memory billing.PaymentReceiptRepository.
type MemoryPaymentReceiptRepository struct {
	mu       sync.Mutex
	receipts map[uuid.UUID]billing.PaymentReceipt
}

// NewMemoryPaymentReceiptRepository creates an empty repository.
func NewMemoryPaymentReceiptRepository() *MemoryPaymentReceiptRepository {
	return &MemoryPaymentReceiptRepository{receipts: make(map[uuid.UUID]billing.PaymentReceipt)}
}

func storeReceipt(r *billing.PaymentReceipt) billing.PaymentReceipt {
	cp := *r
	cp.ClearDomainEvents()
	return cp
}

// FindByID implements billing.PaymentReceiptRepository.
func (r *MemoryPaymentReceiptRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.PaymentReceipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	receipt, ok := r.receipts[id]
	if !ok {
		return nil, nil
	}
	return &receipt, nil
}

// FindByProject implements billing.PaymentReceiptRepository.
func (r *MemoryPaymentReceiptRepository) FindByProject(ctx context.Context, projectID uuid.UUID, status *billing.ReceiptStatus, filter shared.Filter) ([]billing.PaymentReceipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]billing.PaymentReceipt, 0)
	for _, receipt := range r.receipts {
		if receipt.ProjectID != projectID {
			continue
		}
		if status != nil && receipt.Status != *status {
			continue
		}
		out = append(out, receipt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// SumApprovedByProject implements billing.PaymentReceiptRepository.
func (r *MemoryPaymentReceiptRepository) SumApprovedByProject(ctx context.Context, projectID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := decimal.Zero
	for _, receipt := range r.receipts {
		if receipt.ProjectID == projectID && receipt.Status == billing.ReceiptStatusApproved {
			sum = sum.Add(receipt.Amount)
		}
	}
	return sum, nil
}

// Save implements billing.PaymentReceiptRepository.
func (r *MemoryPaymentReceiptRepository) Save(ctx context.Context, receipt *billing.PaymentReceipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receipts[receipt.ID] = storeReceipt(receipt)
	return nil
}

// UpdateStatusIf implements billing.PaymentReceiptRepository.
func (r *MemoryPaymentReceiptRepository) UpdateStatusIf(ctx context.Context, receipt *billing.PaymentReceipt, expected billing.ReceiptStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.receipts[receipt.ID]
	if !ok || stored.Status != expected || stored.Version != receipt.Version {
		return shared.ErrConcurrencyConflict
	}
	receipt.Version++
	r.receipts[receipt.ID] = storeReceipt(receipt)
	return nil
}

// MemoryLedgerRepository is an in-memory billing.LedgerTransactionRepository
// with a unique source key.
type MemoryLedgerRepository struct {
	mu       sync.Mutex
	bySource map[billing.SourceKey]billing.LedgerTransaction
}

// NewMemoryLedgerRepository creates an empty repository.
func NewMemoryLedgerRepository() *MemoryLedgerRepository {
	return &MemoryLedgerRepository{bySource: make(map[billing.SourceKey]billing.LedgerTransaction)}
}

// FindBySource implements billing.LedgerTransactionRepository.
func (r *MemoryLedgerRepository) FindBySource(ctx context.Context, key billing.SourceKey) (*billing.LedgerTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.bySource[key]
	if !ok {
		return nil, nil
	}
	return &tx, nil
}

// CreateIfAbsent implements billing.LedgerTransactionRepository.
func (r *MemoryLedgerRepository) CreateIfAbsent(ctx context.Context, tx *billing.LedgerTransaction) (*billing.LedgerTransaction, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.bySource[tx.Metadata.Source]; ok {
		return &existing, false, nil
	}
	r.bySource[tx.Metadata.Source] = *tx
	stored := *tx
	return &stored, true, nil
}

// FindByProject implements billing.LedgerTransactionRepository.
func (r *MemoryLedgerRepository) FindByProject(ctx context.Context, projectID uuid.UUID) ([]billing.LedgerTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]billing.LedgerTransaction, 0)
	for _, tx := range r.bySource {
		if tx.ProjectID == projectID {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransactionDate.Before(out[j].TransactionDate) })
	return out, nil
}

// ExistingSourceIDs implements billing.LedgerTransactionRepository.
func (r *MemoryLedgerRepository) ExistingSourceIDs(ctx context.Context, projectID uuid.UUID, sourceType billing.SourceType) (map[uuid.UUID]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make(map[uuid.UUID]struct{})
	for key, tx := range r.bySource {
		if tx.ProjectID == projectID && key.Type == sourceType {
			ids[key.ID] = struct{}{}
		}
	}
	return ids, nil
}

// Count returns the number of stored transactions.
func (r *MemoryLedgerRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bySource)
}

// MemoryWalletRepository is an in-memory billing.WalletRepository.
type MemoryWalletRepository struct {
	mu      sync.Mutex
	wallets map[shared.ActorRef]billing.Wallet
}

// NewMemoryWalletRepository creates an empty repository.
func NewMemoryWalletRepository() *MemoryWalletRepository {
	return &MemoryWalletRepository{wallets: make(map[shared.ActorRef]billing.Wallet)}
}

// FindByHolder implements billing.WalletRepository.
func (r *MemoryWalletRepository) FindByHolder(ctx context.Context, holder shared.ActorRef) (*billing.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[holder]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

// Save implements billing.WalletRepository.
func (r *MemoryWalletRepository) Save(ctx context.Context, wallet *billing.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *wallet
	cp.ClearDomainEvents()
	r.wallets[wallet.Holder] = cp
	return nil
}

// SaveWithLock implements billing.WalletRepository.
func (r *MemoryWalletRepository) SaveWithLock(ctx context.Context, wallet *billing.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.wallets[wallet.Holder]
	if !ok || stored.Version != wallet.Version {
		return shared.ErrConcurrencyConflict
	}
	wallet.Version++
	cp := *wallet
	cp.ClearDomainEvents()
	r.wallets[wallet.Holder] = cp
	return nil
}

// MemoryWalletEntryRepository is an in-memory billing.WalletEntryRepository.
type MemoryWalletEntryRepository struct {
	mu      sync.Mutex
	entries []billing.WalletEntry
}

// NewMemoryWalletEntryRepository creates an empty repository.
func NewMemoryWalletEntryRepository() *MemoryWalletEntryRepository {
	return &MemoryWalletEntryRepository{}
}

// Create implements billing.WalletEntryRepository.
func (r *MemoryWalletEntryRepository) Create(ctx context.Context, entry *billing.WalletEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

// FindByWallet implements billing.WalletEntryRepository.
func (r *MemoryWalletEntryRepository) FindByWallet(ctx context.Context, walletID uuid.UUID) ([]billing.WalletEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]billing.WalletEntry, 0)
	for _, e := range r.entries {
		if e.WalletID == walletID {
			out = append(out, e)
		}
	}
	return out, nil
}

// MemoryRequestRepository is an in-memory approval.RequestRepository.
type MemoryRequestRepository struct {
	mu        sync.Mutex
	requests  map[uuid.UUID]approval.Request
	conflicts int
}

// NewMemoryRequestRepository creates an empty repository.
func NewMemoryRequestRepository() *MemoryRequestRepository {
	return &MemoryRequestRepository{requests: make(map[uuid.UUID]approval.Request)}
}

func storeRequest(req *approval.Request) approval.Request {
	cp := *req
	cp.ClearDomainEvents()
	return cp
}

// FindByID implements approval.RequestRepository.
func (r *MemoryRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*approval.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

// FindPendingForRecipient implements approval.RequestRepository.
func (r *MemoryRequestRepository) FindPendingForRecipient(ctx context.Context, recipient shared.ActorRef, filter shared.Filter) ([]approval.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]approval.Request, 0)
	for _, req := range r.requests {
		if req.Status == approval.RequestStatusPending && req.Recipient.Equal(recipient) {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Save implements approval.RequestRepository.
func (r *MemoryRequestRepository) Save(ctx context.Context, req *approval.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[req.ID] = storeRequest(req)
	return nil
}

// InjectConflicts makes the next n SaveWithLock calls fail with a conflict.
func (r *MemoryRequestRepository) InjectConflicts(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts = n
}

// SaveWithLock implements approval.RequestRepository.
func (r *MemoryRequestRepository) SaveWithLock(ctx context.Context, req *approval.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts > 0 {
		r.conflicts--
		return shared.ErrConcurrencyConflict
	}
	stored, ok := r.requests[req.ID]
	if !ok || stored.Version != req.Version {
		return shared.ErrConcurrencyConflict
	}
	req.Version++
	r.requests[req.ID] = storeRequest(req)
	return nil
}

// MemoryActorLookup is an in-memory actor directory for one actor kind.
type MemoryActorLookup struct {
	mu     sync.Mutex
	actors map[uuid.UUID]shared.Actor
}

// NewMemoryActorLookup creates a lookup holding the given actors.
func NewMemoryActorLookup(actors ...shared.Actor) *MemoryActorLookup {
	l := &MemoryActorLookup{actors: make(map[uuid.UUID]shared.Actor)}
	for _, a := range actors {
		l.actors[a.Ref.ID] = a
	}
	return l
}

// Add stores an actor.
func (l *MemoryActorLookup) Add(actor shared.Actor) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.actors[actor.Ref.ID] = actor
}

// FindActor returns the actor with the given id, or nil.
func (l *MemoryActorLookup) FindActor(ctx context.Context, id uuid.UUID) (*shared.Actor, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.actors[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}
