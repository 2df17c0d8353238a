package approval

import (
	"context"

	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/google/uuid"
)

// RequestRepository defines the interface for request persistence
type RequestRepository interface {
	// FindByID finds a request by ID; returns nil, nil when absent
	FindByID(ctx context.Context, id uuid.UUID) (*Request, error)

	// FindPendingForRecipient lists pending requests addressed to an actor, oldest first
	FindPendingForRecipient(ctx context.Context, recipient shared.ActorRef, filter shared.Filter) ([]Request, error)

	// Save creates a request
	Save(ctx context.Context, request *Request) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, request *Request) error
}
