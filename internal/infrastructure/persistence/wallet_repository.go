package persistence

import (
	"context"
	"fmt"

	"github.com/erp/projectbilling/internal/domain/billing"
	"github.com/erp/projectbilling/internal/domain/shared"
	"github.com/erp/projectbilling/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormWalletRepository implements billing.WalletRepository using GORM
type GormWalletRepository struct {
	db *gorm.DB
}

// NewGormWalletRepository creates a new GormWalletRepository
func NewGormWalletRepository(db *gorm.DB) *GormWalletRepository {
	return &GormWalletRepository{db: db}
}

// FindByHolder finds the wallet of an actor
func (r *GormWalletRepository) FindByHolder(ctx context.Context, holder shared.ActorRef) (*billing.Wallet, error) {
	var model models.WalletModel
	err := conn(ctx, r.db).
		Where("holder_id = ? AND holder_kind = ?", holder.ID, string(holder.Kind)).
		First(&model).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load wallet of %s: %w", holder, err)
	}
	return model.ToDomain(), nil
}

// Save creates a wallet
func (r *GormWalletRepository) Save(ctx context.Context, wallet *billing.Wallet) error {
	var model models.WalletModel
	model.FromDomain(wallet)
	return conn(ctx, r.db).Create(&model).Error
}

// SaveWithLock writes the balance if the stored version still matches
func (r *GormWalletRepository) SaveWithLock(ctx context.Context, wallet *billing.Wallet) error {
	err := lockedUpdate(conn(ctx, r.db), &models.WalletModel{},
		"id = ? AND version = ?", []any{wallet.ID, wallet.Version},
		map[string]any{
			"balance":    wallet.Balance,
			"updated_at": wallet.UpdatedAt,
			"version":    wallet.Version + 1,
		})
	if err != nil {
		return err
	}
	wallet.Version++
	return nil
}

// GormWalletEntryRepository implements billing.WalletEntryRepository using GORM
type GormWalletEntryRepository struct {
	db *gorm.DB
}

// NewGormWalletEntryRepository creates a new GormWalletEntryRepository
func NewGormWalletEntryRepository(db *gorm.DB) *GormWalletEntryRepository {
	return &GormWalletEntryRepository{db: db}
}

// Create stores a wallet entry
func (r *GormWalletEntryRepository) Create(ctx context.Context, entry *billing.WalletEntry) error {
	var model models.WalletEntryModel
	model.FromDomain(entry)
	return conn(ctx, r.db).Create(&model).Error
}

// FindByWallet lists the entries of a wallet, oldest first
func (r *GormWalletEntryRepository) FindByWallet(ctx context.Context, walletID uuid.UUID) ([]billing.WalletEntry, error) {
	var rows []models.WalletEntryModel
	if err := conn(ctx, r.db).Where("wallet_id = ?", walletID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list wallet entries: %w", err)
	}
	entries := make([]billing.WalletEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries, nil
}

var (
	_ billing.WalletRepository      = (*GormWalletRepository)(nil)
	_ billing.WalletEntryRepository = (*GormWalletEntryRepository)(nil)
)
