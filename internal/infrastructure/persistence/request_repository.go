package persistence

import (
	"context"
	"fmt"

	"github.com/erp/projectbilling/internal/domain/approval"
	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/erp/projectbilling/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormRequestRepository implements approval.RequestRepository using GORM
type GormRequestRepository struct {
	db *gorm.DB
}

// NewGormRequestRepository creates a new GormRequestRepository
func NewGormRequestRepository(db *gorm.DB) *GormRequestRepository {
	return &GormRequestRepository{db: db}
}

// FindByID finds a request by ID
func (r *GormRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*approval.Request, error) {
	var model models.RequestModel
	if err := conn(ctx, r.db).First(&model, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load request %s: %w", id, err)
	}
	return model.ToDomain()
}

// FindPendingForRecipient lists pending requests addressed to an actor, oldest first
func (r *GormRequestRepository) FindPendingForRecipient(ctx context.Context, recipient shared.ActorRef, filter shared.Filter) ([]approval.Request, error) {
	query := conn(ctx, r.db).Model(&models.RequestModel{}).
		Where("recipient_id = ? AND recipient_kind = ? AND status = ?",
			recipient.ID, string(recipient.Kind), string(approval.RequestStatusPending))
	query = applyFilter(query, filter, RequestSortFields, "created_at", "ASC")

	var rows []models.RequestModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	out := make([]approval.Request, 0, len(rows))
	for i := range rows {
		req, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, nil
}

// Save creates a request
func (r *GormRequestRepository) Save(ctx context.Context, request *approval.Request) error {
	var model models.RequestModel
	if err := model.FromDomain(request); err != nil {
		return err
	}
	return conn(ctx, r.db).Create(&model).Error
}

// SaveWithLock writes the request if the stored version still matches
func (r *GormRequestRepository) SaveWithLock(ctx context.Context, request *approval.Request) error {
	var model models.RequestModel
	if err := model.FromDomain(request); err != nil {
		return err
	}
	err := lockedUpdate(conn(ctx, r.db), &models.RequestModel{},
		"id = ? AND version = ?", []any{request.ID, request.Version},
		map[string]any{
			"status":      model.Status,
			"title":       model.Title,
			"description": model.Description,
			"amount":      model.Amount,
			"metadata":    model.MetadataJSON,
			"response":    model.ResponseJSON,
			"updated_at":  model.UpdatedAt,
			"version":     request.Version + 1,
		})
	if err != nil {
		return err
	}
	request.Version++
	return nil
}

var _ approval.RequestRepository = (*GormRequestRepository)(nil)
