package persistence

import (
	"context"
	"fmt"

	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/erp/projectbilling/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormActorLookup finds actors of one kind in the actors table
type GormActorLookup struct {
	db   *gorm.DB
	kind shared.ActorKind
}

// NewGormActorLookup creates a lookup bound to one actor kind
func NewGormActorLookup(db *gorm.DB, kind shared.ActorKind) *GormActorLookup {
	return &GormActorLookup{db: db, kind: kind}
}

// NewGormActorLookups creates one lookup per stored actor kind
func NewGormActorLookups(db *gorm.DB) map[shared.ActorKind]*GormActorLookup {
	kinds := []shared.ActorKind{
		shared.ActorKindAdmin,
		shared.ActorKindSales,
		shared.ActorKindProjectManager,
		shared.ActorKindClient,
		shared.ActorKindEmployee,
		shared.ActorKindChannelPartner,
	}
	lookups := make(map[shared.ActorKind]*GormActorLookup, len(kinds))
	for _, kind := range kinds {
		lookups[kind] = NewGormActorLookup(db, kind)
	}
	return lookups
}

// Kind returns the actor kind served by this lookup
func (l *GormActorLookup) Kind() shared.ActorKind {
	return l.kind
}

// FindActor returns the actor with the given id
func (l *GormActorLookup) FindActor(ctx context.Context, id uuid.UUID) (*shared.Actor, error) {
	var model models.ActorModel
	err := conn(ctx, l.db).Where("id = ? AND kind = ?", id, string(l.kind)).First(&model).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load %s actor %s: %w", l.kind, id, err)
	}
	return model.ToDomain(), nil
}

// Upsert stores an actor of this lookup's kind, updating name and active flag
func (l *GormActorLookup) Upsert(ctx context.Context, actor shared.Actor) error {
	if actor.Ref.Kind != l.kind {
		return shared.NewValidationError("ACTOR_KIND_MISMATCH",
			fmt.Sprintf("Actor kind %s cannot be stored in the %s directory", actor.Ref.Kind, l.kind))
	}
	return conn(ctx, l.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}, {Name: "kind"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "active"}),
		}).
		Create(models.ActorModelFromDomain(actor)).Error
}
