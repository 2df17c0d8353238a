package persistence

import (
	"testing"

	"github.com/erp/projectbilling/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB opens an in-memory sqlite database with the billing tables.
// One connection keeps every query on the same in-memory database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.ProjectModel{},
		&models.PaymentReceiptModel{},
		&models.LedgerTransactionModel{},
		&models.WalletModel{},
		&models.WalletEntryModel{},
		&models.RequestModel{},
		&models.ActorModel{},
	))
	return db
}
