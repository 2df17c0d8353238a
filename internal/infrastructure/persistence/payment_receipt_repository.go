package persistence

import (
	"context"
	"fmt"

	"github.com/erp/projectbilling/internal/domain/billing"
	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/erp/projectbilling/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormPaymentReceiptRepository implements billing.PaymentReceiptRepository using GORM
type GormPaymentReceiptRepository struct {
	db *gorm.DB
}

// NewGormPaymentReceiptRepository creates a new GormPaymentReceiptRepository
func NewGormPaymentReceiptRepository(db *gorm.DB) *GormPaymentReceiptRepository {
	return &GormPaymentReceiptRepository{db: db}
}

// FindByID finds a receipt by ID
func (r *GormPaymentReceiptRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.PaymentReceipt, error) {
	var model models.PaymentReceiptModel
	if err := conn(ctx, r.db).First(&model, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load payment receipt %s: %w", id, err)
	}
	return model.ToDomain(), nil
}

// FindByProject lists the receipts of a project, newest first unless filter says otherwise
func (r *GormPaymentReceiptRepository) FindByProject(ctx context.Context, projectID uuid.UUID, status *billing.ReceiptStatus, filter shared.Filter) ([]billing.PaymentReceipt, error) {
	query := conn(ctx, r.db).Model(&models.PaymentReceiptModel{}).Where("project_id = ?", projectID)
	if status != nil {
		query = query.Where("status = ?", string(*status))
	}
	query = applyFilter(query, filter, ReceiptSortFields, "created_at", "DESC")

	var rows []models.PaymentReceiptModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list payment receipts: %w", err)
	}
	receipts := make([]billing.PaymentReceipt, len(rows))
	for i := range rows {
		receipts[i] = *rows[i].ToDomain()
	}
	return receipts, nil
}

// SumApprovedByProject sums the amounts of a project's approved receipts
func (r *GormPaymentReceiptRepository) SumApprovedByProject(ctx context.Context, projectID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := conn(ctx, r.db).Model(&models.PaymentReceiptModel{}).
		Where("project_id = ? AND status = ?", projectID, string(billing.ReceiptStatusApproved)).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum approved receipts: %w", err)
	}
	return sum, nil
}

// Save creates a receipt
func (r *GormPaymentReceiptRepository) Save(ctx context.Context, receipt *billing.PaymentReceipt) error {
	var model models.PaymentReceiptModel
	model.FromDomain(receipt)
	return conn(ctx, r.db).Create(&model).Error
}

// UpdateStatusIf writes the verification only while the stored status equals
// expected and the version matches
func (r *GormPaymentReceiptRepository) UpdateStatusIf(ctx context.Context, receipt *billing.PaymentReceipt, expected billing.ReceiptStatus) error {
	var model models.PaymentReceiptModel
	model.FromDomain(receipt)
	err := lockedUpdate(conn(ctx, r.db), &models.PaymentReceiptModel{},
		"id = ? AND version = ? AND status = ?", []any{receipt.ID, receipt.Version, string(expected)},
		map[string]any{
			"status":           model.Status,
			"verified_by_id":   model.VerifiedByID,
			"verified_by_kind": model.VerifiedByKind,
			"verified_at":      model.VerifiedAt,
			"reject_reason":    model.RejectReason,
			"notes":            model.Notes,
			"updated_at":       model.UpdatedAt,
			"version":          receipt.Version + 1,
		})
	if err != nil {
		return err
	}
	receipt.Version++
	return nil
}

var _ billing.PaymentReceiptRepository = (*GormPaymentReceiptRepository)(nil)
