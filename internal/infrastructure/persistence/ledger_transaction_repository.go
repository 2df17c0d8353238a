package persistence

import (
	"context"
	"fmt"

	"github.com/erp/projectbilling/internal/domain/billing"
	"github.com/erp/projectbilling/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLedgerTransactionRepository implements billing.LedgerTransactionRepository.
// The unique (source_type, source_id) index makes inserts idempotent.
type GormLedgerTransactionRepository struct {
	db *gorm.DB
}

// NewGormLedgerTransactionRepository creates a new GormLedgerTransactionRepository
func NewGormLedgerTransactionRepository(db *gorm.DB) *GormLedgerTransactionRepository {
	return &GormLedgerTransactionRepository{db: db}
}

// FindBySource finds the transaction written for a source key
func (r *GormLedgerTransactionRepository) FindBySource(ctx context.Context, key billing.SourceKey) (*billing.LedgerTransaction, error) {
	var model models.LedgerTransactionModel
	err := conn(ctx, r.db).
		Where("source_type = ? AND source_id = ?", string(key.Type), key.ID).
		First(&model).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load ledger transaction %s: %w", key, err)
	}
	return model.ToDomain()
}

// CreateIfAbsent inserts with ON CONFLICT DO NOTHING. When the source key is
// already taken the stored row is returned with created=false.
func (r *GormLedgerTransactionRepository) CreateIfAbsent(ctx context.Context, tx *billing.LedgerTransaction) (*billing.LedgerTransaction, bool, error) {
	var model models.LedgerTransactionModel
	if err := model.FromDomain(tx); err != nil {
		return nil, false, err
	}

	result := conn(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_type"}, {Name: "source_id"}},
			DoNothing: true,
		}).
		Create(&model)
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to insert ledger transaction %s: %w", tx.Metadata.Source, result.Error)
	}
	if result.RowsAffected > 0 {
		stored := *tx
		return &stored, true, nil
	}

	existing, err := r.FindBySource(ctx, tx.Metadata.Source)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("ledger transaction %s conflicted but is not readable", tx.Metadata.Source)
	}
	return existing, false, nil
}

// FindByProject lists a project's transactions by transaction date
func (r *GormLedgerTransactionRepository) FindByProject(ctx context.Context, projectID uuid.UUID) ([]billing.LedgerTransaction, error) {
	var rows []models.LedgerTransactionModel
	err := conn(ctx, r.db).
		Where("project_id = ?", projectID).
		Order("transaction_date ASC, created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger transactions: %w", err)
	}

	out := make([]billing.LedgerTransaction, 0, len(rows))
	for i := range rows {
		tx, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *tx)
	}
	return out, nil
}

// ExistingSourceIDs returns the source ids of one type already recorded for a project
func (r *GormLedgerTransactionRepository) ExistingSourceIDs(ctx context.Context, projectID uuid.UUID, sourceType billing.SourceType) (map[uuid.UUID]struct{}, error) {
	var ids []uuid.UUID
	err := conn(ctx, r.db).Model(&models.LedgerTransactionModel{}).
		Where("project_id = ? AND source_type = ?", projectID, string(sourceType)).
		Pluck("source_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger sources: %w", err)
	}

	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

var _ billing.LedgerTransactionRepository = (*GormLedgerTransactionRepository)(nil)
