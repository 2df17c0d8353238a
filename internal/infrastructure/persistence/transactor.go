package persistence

import (
	"context"

	"github.com/erp/projectbilling/internal/domain/shared"
	"gorm.io/gorm"
)

type txKey struct{}

// GormTransactor implements shared.Transactor. The open transaction travels in
// the context; a nested call opens a savepoint inside the outer transaction.
type GormTransactor struct {
	db *gorm.DB
}

// NewGormTransactor creates a new GormTransactor
func NewGormTransactor(db *gorm.DB) *GormTransactor {
	return &GormTransactor{db: db}
}

// WithinTransaction runs fn in a transaction, or a savepoint when ctx already carries one
func (t *GormTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return conn(ctx, t.db).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// conn returns the transaction carried by ctx, else db, bound to ctx
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

var _ shared.Transactor = (*GormTransactor)(nil)
