package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/projectbilling/internal/domain/approval"
	"github.com/erp/projectbilling/internal/domain/billing"
	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGeneralRequest(t *testing.T, recipient shared.ActorRef) *approval.Request {
	t.Helper()
	req, err := approval.NewRequest(approval.RequestSpec{
		Type:        approval.RequestTypeGeneral,
		Title:       "Site visit",
		RequestedBy: testSales,
		Recipient:   recipient,
	})
	require.NoError(t, err)
	return req
}

func TestGormRequestRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormRequestRepository(newTestDB(t))
	other := shared.NewActorRef(uuid.New(), shared.ActorKindAdmin)

	older := newGeneralRequest(t, testAdmin)
	older.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, repo.Save(ctx, older))
	newer := newGeneralRequest(t, testAdmin)
	require.NoError(t, repo.Save(ctx, newer))
	require.NoError(t, repo.Save(ctx, newGeneralRequest(t, other)))

	pending, err := repo.FindPendingForRecipient(ctx, testAdmin, shared.Filter{})
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, older.ID, pending[0].ID)

	loaded, err := repo.FindByID(ctx, older.ID)
	require.NoError(t, err)
	require.NoError(t, loaded.Respond(testAdmin, approval.ResponseReject, "not now", time.Now()))
	require.NoError(t, repo.SaveWithLock(ctx, loaded))
	assert.Equal(t, 2, loaded.Version)

	stale, err := repo.FindByID(ctx, newer.ID)
	require.NoError(t, err)
	stale.Version = 7
	assert.ErrorIs(t, repo.SaveWithLock(ctx, stale), shared.ErrConcurrencyConflict)

	pending, err = repo.FindPendingForRecipient(ctx, testAdmin, shared.Filter{})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, newer.ID, pending[0].ID)

	answered, err := repo.FindByID(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.RequestStatusRejected, answered.Status)
	require.NotNil(t, answered.Response)
	assert.Equal(t, "not now", answered.Response.Message)
}

func TestGormActorLookup(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	lookups := NewGormActorLookups(db)
	require.Len(t, lookups, 6)

	admins := lookups[shared.ActorKindAdmin]
	id := uuid.New()
	require.NoError(t, admins.Upsert(ctx, shared.Actor{Ref: shared.NewActorRef(id, shared.ActorKindAdmin), Name: "Asha", Active: true}))

	found, err := admins.FindActor(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Asha", found.Name)
	assert.True(t, found.Active)

	require.NoError(t, admins.Upsert(ctx, shared.Actor{Ref: shared.NewActorRef(id, shared.ActorKindAdmin), Name: "Asha R", Active: false}))
	found, err = admins.FindActor(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Asha R", found.Name)
	assert.False(t, found.Active)

	asSales, err := lookups[shared.ActorKindSales].FindActor(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, asSales)

	err = admins.Upsert(ctx, shared.Actor{Ref: shared.NewActorRef(uuid.New(), shared.ActorKindClient), Name: "x"})
	assert.True(t, shared.IsValidation(err))
}

func TestGormTransactor(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	transactor := NewGormTransactor(db)
	projects := NewGormProjectRepository(db)
	boom := errors.New("boom")

	t.Run("rolls back on error", func(t *testing.T) {
		p := newTestProject(t, 1000)
		err := transactor.WithinTransaction(ctx, func(ctx context.Context) error {
			require.NoError(t, projects.Save(ctx, p))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		found, err := projects.FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("nested failure rolls back only the savepoint", func(t *testing.T) {
		outer := newTestProject(t, 1000)
		inner := newTestProject(t, 2000)
		err := transactor.WithinTransaction(ctx, func(ctx context.Context) error {
			if err := projects.Save(ctx, outer); err != nil {
				return err
			}
			nestedErr := transactor.WithinTransaction(ctx, func(ctx context.Context) error {
				require.NoError(t, projects.Save(ctx, inner))
				return boom
			})
			assert.ErrorIs(t, nestedErr, boom)
			return nil
		})
		require.NoError(t, err)

		found, err := projects.FindByID(ctx, outer.ID)
		require.NoError(t, err)
		assert.NotNil(t, found)
		gone, err := projects.FindByID(ctx, inner.ID)
		require.NoError(t, err)
		assert.Nil(t, gone)
	})

	t.Run("ledger insert joins the caller's transaction", func(t *testing.T) {
		ledger := NewGormLedgerTransactionRepository(db)
		source := billing.SourceKey{Type: billing.SourceTypePaymentReceipt, ID: uuid.New()}
		err := transactor.WithinTransaction(ctx, func(ctx context.Context) error {
			_, created, err := ledger.CreateIfAbsent(ctx, newLedgerTx(t, uuid.New(), source, 100, time.Now()))
			require.NoError(t, err)
			assert.True(t, created)
			return boom
		})
		assert.ErrorIs(t, err, boom)

		found, err := ledger.FindBySource(ctx, source)
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestApplyFilter_Whitelist(t *testing.T) {
	assert.Equal(t, "ASC", ValidateSortOrder(" asc "))
	assert.Equal(t, "DESC", ValidateSortOrder("sideways"))
	assert.Equal(t, "amount", ValidateSortField("amount", ReceiptSortFields, "created_at"))
	assert.Equal(t, "created_at", ValidateSortField("amount; DROP TABLE x", ReceiptSortFields, "created_at"))
}
