package shared

import (
	"context"
	"time"
)

// ClaimStore records short-lived claims on a key so that repeated or
// concurrent callers can skip work another caller already did.
type ClaimStore interface {
	// Claim marks key as taken for ttl.
	// Returns true if the claim is new, false if the key is already held.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release drops a claim so the next caller can take it again
	Release(ctx context.Context, key string) error

	// Close releases resources held by the store
	Close() error
}
