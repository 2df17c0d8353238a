package persistence

import (
	"context"
	"fmt"

	"github.com/erp/projectbilling/internal/domain/billing"
	"github.com/erp/projectbilling/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormProjectRepository implements billing.ProjectRepository using GORM
type GormProjectRepository struct {
	db *gorm.DB
}

// NewGormProjectRepository creates a new GormProjectRepository
func NewGormProjectRepository(db *gorm.DB) *GormProjectRepository {
	return &GormProjectRepository{db: db}
}

// FindByID finds a project by ID
func (r *GormProjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Project, error) {
	var model models.ProjectModel
	if err := conn(ctx, r.db).First(&model, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load project %s: %w", id, err)
	}
	return model.ToDomain()
}

// Save creates or overwrites a project
func (r *GormProjectRepository) Save(ctx context.Context, project *billing.Project) error {
	var model models.ProjectModel
	if err := model.FromDomain(project); err != nil {
		return err
	}
	return conn(ctx, r.db).Save(&model).Error
}

// SaveWithLock writes the project if its stored version still matches and
// advances the version
func (r *GormProjectRepository) SaveWithLock(ctx context.Context, project *billing.Project) error {
	var model models.ProjectModel
	if err := model.FromDomain(project); err != nil {
		return err
	}
	err := lockedUpdate(conn(ctx, r.db), &models.ProjectModel{},
		"id = ? AND version = ?", []any{project.ID, project.Version},
		map[string]any{
			"name":             model.Name,
			"client_id":        model.ClientID,
			"total_cost":       model.TotalCost,
			"advance_received": model.AdvanceReceived,
			"include_gst":      model.IncludeGST,
			"remaining_amount": model.RemainingAmount,
			"budget":           model.Budget,
			"installment_plan": model.InstallmentPlanJSON,
			"cost_history":     model.CostHistoryJSON,
			"updated_at":       model.UpdatedAt,
			"version":          project.Version + 1,
		})
	if err != nil {
		return err
	}
	project.Version++
	return nil
}

var _ billing.ProjectRepository = (*GormProjectRepository)(nil)
