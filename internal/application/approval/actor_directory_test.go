package approval

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/erp/projectbilling/tests/testutil"
)

type brokenLookup struct{}

func (brokenLookup) FindActor(context.Context, uuid.UUID) (*shared.Actor, error) {
	return nil, errors.New("directory offline")
}

func TestActorDirectory_Resolve(t *testing.T) {
	ctx := context.Background()
	active := shared.NewActorRef(uuid.New(), shared.ActorKindProjectManager)
	inactive := shared.NewActorRef(uuid.New(), shared.ActorKindProjectManager)
	pms := testutil.NewMemoryActorLookup(
		shared.Actor{Ref: active, Name: "Meera", Active: true},
		shared.Actor{Ref: inactive, Name: "Karan", Active: false},
	)
	dir := NewActorDirectory(map[shared.ActorKind]ActorLookup{
		shared.ActorKindProjectManager: pms,
		shared.ActorKindEmployee:       brokenLookup{},
	}, shared.ActorRef{})

	t.Run("active actor", func(t *testing.T) {
		actor, err := dir.Resolve(ctx, active)
		require.NoError(t, err)
		assert.Equal(t, "Meera", actor.Name)
		assert.Equal(t, active, actor.Ref)
	})

	t.Run("inactive actor", func(t *testing.T) {
		_, err := dir.Resolve(ctx, inactive)
		assert.True(t, shared.IsNotFound(err))
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := dir.Resolve(ctx, shared.NewActorRef(uuid.New(), shared.ActorKindProjectManager))
		assert.True(t, shared.IsNotFound(err))
	})

	t.Run("kind without directory", func(t *testing.T) {
		_, err := dir.Resolve(ctx, shared.NewActorRef(uuid.New(), shared.ActorKindClient))
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("invalid reference", func(t *testing.T) {
		_, err := dir.Resolve(ctx, shared.ActorRef{Kind: "robot"})
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("system actor", func(t *testing.T) {
		actor, err := dir.Resolve(ctx, shared.SystemActor)
		require.NoError(t, err)
		assert.True(t, actor.Active)
	})

	t.Run("lookup failure", func(t *testing.T) {
		_, err := dir.Resolve(ctx, shared.NewActorRef(uuid.New(), shared.ActorKindEmployee))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "directory offline")
		assert.Equal(t, shared.ErrorKind(""), shared.KindOf(err))
	})
}

func TestActorDirectory_DefaultApprover(t *testing.T) {
	ctx := context.Background()
	admin := shared.NewActorRef(uuid.New(), shared.ActorKindAdmin)
	admins := testutil.NewMemoryActorLookup()
	lookups := map[shared.ActorKind]ActorLookup{shared.ActorKindAdmin: admins}

	_, err := NewActorDirectory(lookups, shared.ActorRef{}).DefaultApprover(ctx)
	assert.True(t, shared.IsValidation(err))

	dir := NewActorDirectory(lookups, admin)
	_, err = dir.DefaultApprover(ctx)
	assert.True(t, shared.IsNotFound(err), "configured approver must exist")

	admins.Add(shared.Actor{Ref: admin, Name: "Asha", Active: true})
	got, err := dir.DefaultApprover(ctx)
	require.NoError(t, err)
	assert.Equal(t, admin, got)
}
