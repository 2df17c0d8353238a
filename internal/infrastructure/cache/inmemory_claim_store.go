package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/projectbilling/internal/domain/shared"
)

type claim struct {
	expiresAt time.Time
}

// InMemoryClaimStore implements ClaimStore with an in-memory map.
// Suitable for single-instance deployments and testing.
type InMemoryClaimStore struct {
	mu        sync.Mutex
	claims    map[string]claim
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryClaimStore creates a new in-memory claim store.
// It starts a background goroutine that drops expired claims.
func NewInMemoryClaimStore() *InMemoryClaimStore {
	store := &InMemoryClaimStore{
		claims:   make(map[string]claim),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop()

	return store
}

// Claim takes key for ttl. An expired claim can be taken again.
func (s *InMemoryClaimStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if c, ok := s.claims[key]; ok && now.Before(c.expiresAt) {
		return false, nil
	}
	s.claims[key] = claim{expiresAt: now.Add(ttl)}
	return true, nil
}

// Release drops a claim
func (s *InMemoryClaimStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, key)
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *InMemoryClaimStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryClaimStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemoryClaimStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, c := range s.claims {
		if !now.Before(c.expiresAt) {
			delete(s.claims, key)
		}
	}
}

// Size returns the number of held claims (for testing/monitoring)
func (s *InMemoryClaimStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.claims)
}

var _ shared.ClaimStore = (*InMemoryClaimStore)(nil)
