package approval

import (
	"context"
	"fmt"

	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/google/uuid"
)

// ActorLookup finds actors of one kind
type ActorLookup interface {
	// FindActor returns the actor with the given id; nil, nil when absent
	FindActor(ctx context.Context, id uuid.UUID) (*shared.Actor, error)
}

// ActorResolver resolves actor references and names the default approver
type ActorResolver interface {
	// Resolve returns the active actor behind ref
	Resolve(ctx context.Context, ref shared.ActorRef) (*shared.Actor, error)
	// DefaultApprover returns the approver used when a request names no recipient
	DefaultApprover(ctx context.Context) (shared.ActorRef, error)
}

// ActorDirectory resolves actors through a per-kind lookup table and an
// explicitly configured default approver.
type ActorDirectory struct {
	lookups         map[shared.ActorKind]ActorLookup
	defaultApprover shared.ActorRef
}

// NewActorDirectory creates a new ActorDirectory. defaultApprover may be zero,
// in which case requests must always name their recipient.
func NewActorDirectory(lookups map[shared.ActorKind]ActorLookup, defaultApprover shared.ActorRef) *ActorDirectory {
	table := make(map[shared.ActorKind]ActorLookup, len(lookups))
	for kind, lookup := range lookups {
		table[kind] = lookup
	}
	return &ActorDirectory{lookups: table, defaultApprover: defaultApprover}
}

// Resolve implements ActorResolver
func (d *ActorDirectory) Resolve(ctx context.Context, ref shared.ActorRef) (*shared.Actor, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if ref.Kind == shared.ActorKindSystem {
		return &shared.Actor{Ref: shared.SystemActor, Name: "system", Active: true}, nil
	}
	lookup, ok := d.lookups[ref.Kind]
	if !ok {
		return nil, shared.NewValidationError("UNSUPPORTED_ACTOR_KIND", fmt.Sprintf("No directory for actor kind %q", ref.Kind))
	}
	actor, err := lookup.FindActor(ctx, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", ref, err)
	}
	if actor == nil || !actor.Active {
		return nil, shared.NewNotFoundError("ACTOR_NOT_FOUND", fmt.Sprintf("Active %s not found", ref.Kind))
	}
	actor.Ref = ref
	return actor, nil
}

// DefaultApprover implements ActorResolver
func (d *ActorDirectory) DefaultApprover(ctx context.Context) (shared.ActorRef, error) {
	if d.defaultApprover.IsZero() {
		return shared.ActorRef{}, shared.NewValidationError("NO_DEFAULT_APPROVER", "Request recipient is required: no default approver is configured")
	}
	if _, err := d.Resolve(ctx, d.defaultApprover); err != nil {
		return shared.ActorRef{}, err
	}
	return d.defaultApprover, nil
}
