package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/erp/projectbilling/internal/domain/approval"
	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RequestModel is the persistence model for the approval Request aggregate root.
// Metadata and the response are stored as JSONB.
type RequestModel struct {
	AggregateModel
	Module          string              `gorm:"type:varchar(50);not null"`
	Type            string              `gorm:"type:varchar(40);not null"`
	Status          string              `gorm:"type:varchar(20);not null"`
	Title           string              `gorm:"type:varchar(200);not null;default:''"`
	Description     string              `gorm:"type:text"`
	RequestedByID   uuid.UUID           `gorm:"type:uuid;not null"`
	RequestedByKind string              `gorm:"type:varchar(30);not null"`
	RecipientID     uuid.UUID           `gorm:"type:uuid;not null;index:idx_requests_recipient_status"`
	RecipientKind   string              `gorm:"type:varchar(30);not null;index:idx_requests_recipient_status"`
	Amount          decimal.NullDecimal `gorm:"type:decimal(18,2)"`
	MetadataJSON    string              `gorm:"column:metadata;type:jsonb;not null;default:'{}'"`
	ResponseJSON    *string             `gorm:"column:response;type:jsonb"`
}

// TableName returns the table name for GORM
func (RequestModel) TableName() string {
	return "requests"
}

// FromDomain populates the model from a domain Request
func (m *RequestModel) FromDomain(r *approval.Request) error {
	metadata, err := json.Marshal(r.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode request metadata: %w", err)
	}

	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	m.Module = r.Module
	m.Type = string(r.Type)
	m.Status = string(r.Status)
	m.Title = r.Title
	m.Description = r.Description
	m.RequestedByID = r.RequestedBy.ID
	m.RequestedByKind = string(r.RequestedBy.Kind)
	m.RecipientID = r.Recipient.ID
	m.RecipientKind = string(r.Recipient.Kind)
	m.Amount = decimal.NullDecimal{}
	if r.Amount != nil {
		m.Amount = decimal.NewNullDecimal(*r.Amount)
	}
	m.MetadataJSON = string(metadata)
	m.ResponseJSON = nil
	if r.Response != nil {
		response, err := json.Marshal(r.Response)
		if err != nil {
			return fmt.Errorf("failed to encode request response: %w", err)
		}
		encoded := string(response)
		m.ResponseJSON = &encoded
	}
	return nil
}

// ToDomain converts the model to a domain Request
func (m *RequestModel) ToDomain() (*approval.Request, error) {
	r := &approval.Request{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Module:            m.Module,
		Type:              approval.RequestType(m.Type),
		Status:            approval.RequestStatus(m.Status),
		Title:             m.Title,
		Description:       m.Description,
		RequestedBy:       actorRef(m.RequestedByID, m.RequestedByKind),
		Recipient:         actorRef(m.RecipientID, m.RecipientKind),
	}
	if m.Amount.Valid {
		amount := m.Amount.Decimal
		r.Amount = &amount
	}
	if m.MetadataJSON != "" {
		if err := json.Unmarshal([]byte(m.MetadataJSON), &r.Metadata); err != nil {
			return nil, fmt.Errorf("request %s: failed to decode metadata: %w", m.ID, err)
		}
	}
	if m.ResponseJSON != nil && *m.ResponseJSON != "" {
		var response approval.Response
		if err := json.Unmarshal([]byte(*m.ResponseJSON), &response); err != nil {
			return nil, fmt.Errorf("request %s: failed to decode response: %w", m.ID, err)
		}
		r.Response = &response
	}
	return r, nil
}

// ActorModel is one row of the actor directory.
// The same id may exist under several kinds.
type ActorModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Kind      string    `gorm:"type:varchar(30);primaryKey"`
	Name      string    `gorm:"type:varchar(200);not null"`
	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ActorModel) TableName() string {
	return "actors"
}

// ToDomain converts the model to a domain Actor
func (m *ActorModel) ToDomain() *shared.Actor {
	return &shared.Actor{
		Ref:    actorRef(m.ID, m.Kind),
		Name:   m.Name,
		Active: m.Active,
	}
}

// ActorModelFromDomain creates a persistence model from a domain Actor
func ActorModelFromDomain(a shared.Actor) *ActorModel {
	return &ActorModel{
		ID:        a.Ref.ID,
		Kind:      string(a.Ref.Kind),
		Name:      a.Name,
		Active:    a.Active,
		CreatedAt: time.Now(),
	}
}
