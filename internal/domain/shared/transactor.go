package shared

import "context"

// Transactor runs fn inside a unit of work spanning every repository that
// honours the context it passes to fn. If fn returns an error the unit of work
// is rolled back. Services re-run a failed unit of work on conflict, so an
// implementation must never leave a partial write behind.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
