package testutil

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// Snapshotter is an in-memory store whose contents can be captured and put
// back, giving MemoryTransactor its rollback.
type Snapshotter interface {
	Snapshot() (restore func())
}

type memoryTxKey struct{}

// MemoryTransactor is a shared.Transactor over in-memory repositories.
// Units of work are serialized; a failed unit of work restores every
// registered store to its state when the unit began. A nested call acts as a
// savepoint. Writes made outside any unit of work while one is rolling back
// are lost, which the tests using it never do.
type MemoryTransactor struct {
	mu     sync.Mutex
	stores []Snapshotter
}

// NewMemoryTransactor creates a transactor over the given stores.
func NewMemoryTransactor(stores ...Snapshotter) *MemoryTransactor {
	return &MemoryTransactor{stores: stores}
}

// WithinTransaction implements shared.Transactor.
func (t *MemoryTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memoryTxKey{}) != t {
		t.mu.Lock()
		defer t.mu.Unlock()
		ctx = context.WithValue(ctx, memoryTxKey{}, t)
	}

	restores := make([]func(), 0, len(t.stores))
	for _, s := range t.stores {
		restores = append(restores, s.Snapshot())
	}
	if err := fn(ctx); err != nil {
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

func snapshotMap[K comparable, V any](mu *sync.Mutex, m *map[K]V) func() {
	mu.Lock()
	saved := maps.Clone(*m)
	mu.Unlock()
	return func() {
		mu.Lock()
		*m = saved
		mu.Unlock()
	}
}

// Snapshot implements Snapshotter. Stored projects are never mutated in
// place, so a shallow copy of the map is enough.
func (r *MemoryProjectRepository) Snapshot() func() {
	return snapshotMap(&r.mu, &r.projects)
}

// Snapshot implements Snapshotter.
func (r *MemoryPaymentReceiptRepository) Snapshot() func() {
	return snapshotMap(&r.mu, &r.receipts)
}

// Snapshot implements Snapshotter.
func (r *MemoryLedgerRepository) Snapshot() func() {
	return snapshotMap(&r.mu, &r.bySource)
}

// Snapshot implements Snapshotter.
func (r *MemoryWalletRepository) Snapshot() func() {
	return snapshotMap(&r.mu, &r.wallets)
}

// Snapshot implements Snapshotter.
func (r *MemoryRequestRepository) Snapshot() func() {
	return snapshotMap(&r.mu, &r.requests)
}

// Snapshot implements Snapshotter.
func (r *MemoryWalletEntryRepository) Snapshot() func() {
	r.mu.Lock()
	saved := slices.Clone(r.entries)
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		r.entries = saved
		r.mu.Unlock()
	}
}
