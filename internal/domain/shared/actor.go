package shared

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ActorKind identifies which directory an actor lives in
type ActorKind string

const (
	ActorKindAdmin          ActorKind = "admin"
	ActorKindSales          ActorKind = "sales"
	ActorKindProjectManager ActorKind = "pm"
	ActorKindClient         ActorKind = "client"
	ActorKindEmployee       ActorKind = "employee"
	ActorKindChannelPartner ActorKind = "channel_partner"
	ActorKindSystem         ActorKind = "system" // automated flows, never stored in a directory
)

// IsValid checks if the kind is a known ActorKind
func (k ActorKind) IsValid() bool {
	switch k {
	case ActorKindAdmin, ActorKindSales, ActorKindProjectManager, ActorKindClient,
		ActorKindEmployee, ActorKindChannelPartner, ActorKindSystem:
		return true
	}
	return false
}

// String returns the string representation of ActorKind
func (k ActorKind) String() string {
	return string(k)
}

// ActorRef is a reference to an actor of any kind: the pair (id, kind)
type ActorRef struct {
	ID   uuid.UUID `json:"id"`
	Kind ActorKind `json:"kind"`
}

// NewActorRef creates a new ActorRef
func NewActorRef(id uuid.UUID, kind ActorKind) ActorRef {
	return ActorRef{ID: id, Kind: kind}
}

// SystemActor is the identity recorded for automated flows
var SystemActor = ActorRef{ID: uuid.Nil, Kind: ActorKindSystem}

// IsZero returns true if the reference is unset
func (a ActorRef) IsZero() bool {
	return a.ID == uuid.Nil && a.Kind == ""
}

// Equal returns true if both references point to the same actor
func (a ActorRef) Equal(other ActorRef) bool {
	return a.ID == other.ID && a.Kind == other.Kind
}

// Validate checks the reference is complete
func (a ActorRef) Validate() error {
	if !a.Kind.IsValid() {
		return NewValidationError("INVALID_ACTOR_KIND", fmt.Sprintf("Actor kind %q is not valid", a.Kind))
	}
	if a.ID == uuid.Nil && a.Kind != ActorKindSystem {
		return NewValidationError("INVALID_ACTOR", "Actor ID is required")
	}
	return nil
}

// String returns "kind:id"
func (a ActorRef) String() string {
	return fmt.Sprintf("%s:%s", a.Kind, a.ID)
}

// ParseActorRef parses the "kind:id" form produced by String
func ParseActorRef(s string) (ActorRef, error) {
	kind, id, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return ActorRef{}, NewValidationError("INVALID_ACTOR", fmt.Sprintf("Actor %q must look like kind:id", s))
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return ActorRef{}, NewValidationError("INVALID_ACTOR", fmt.Sprintf("Actor id %q is not a UUID", id))
	}
	ref := NewActorRef(parsed, ActorKind(kind))
	if err := ref.Validate(); err != nil {
		return ActorRef{}, err
	}
	return ref, nil
}

// Actor is a resolved actor
type Actor struct {
	Ref    ActorRef
	Name   string
	Active bool
}
