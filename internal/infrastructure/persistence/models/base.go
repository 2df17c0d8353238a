package models

import (
	"time"

	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/google/uuid"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// AggregateModel extends BaseModel with the optimistic locking version
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

// FromDomainAggregateRoot populates AggregateModel from domain BaseAggregateRoot
func (m *AggregateModel) FromDomainAggregateRoot(a shared.BaseAggregateRoot) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.Version = a.Version
}

// ToDomainAggregateRoot rebuilds a BaseAggregateRoot with no pending events
func (m *AggregateModel) ToDomainAggregateRoot() shared.BaseAggregateRoot {
	return shared.BaseAggregateRoot{
		BaseEntity: m.BaseModel.ToDomain(),
		Version:    m.Version,
	}
}

// actorRef rebuilds an actor reference from its id and kind columns
func actorRef(id uuid.UUID, kind string) shared.ActorRef {
	return shared.NewActorRef(id, shared.ActorKind(kind))
}

// nullableActorRef rebuilds an optional actor reference; nil unless both columns are set
func nullableActorRef(id *uuid.UUID, kind *string) *shared.ActorRef {
	if id == nil || kind == nil {
		return nil
	}
	ref := actorRef(*id, *kind)
	return &ref
}

// splitNullableActor flattens an optional actor reference into nullable columns
func splitNullableActor(ref *shared.ActorRef) (*uuid.UUID, *string) {
	if ref == nil {
		return nil, nil
	}
	id := ref.ID
	kind := string(ref.Kind)
	return &id, &kind
}
