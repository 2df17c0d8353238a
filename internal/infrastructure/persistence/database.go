package persistence

import (
	"fmt"
	"time"

	"github.com/erp/projectbilling/internal/infrastructure/config"
	"github.com/erp/projectbilling/internal/infrastructure/telemetry"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database holds the database connection
type Database struct {
	DB *gorm.DB
}

// Option customises database bootstrap
type Option func(*options)

type options struct {
	logger  gormlogger.Interface
	tracing *telemetry.DBTracingPlugin
}

// WithLogger sets the GORM logger (see logger.NewGormLogger)
func WithLogger(l gormlogger.Interface) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithTracing registers the otelgorm tracing plugin on the connection
func WithTracing(plugin *telemetry.DBTracingPlugin) Option {
	return func(o *options) {
		o.tracing = plugin
	}
}

// NewDatabase opens a PostgreSQL connection and applies pool settings
func NewDatabase(cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	return openDatabase(postgres.Open(cfg.DSN()), cfg, opts...)
}

func openDatabase(dialector gorm.Dialector, cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	o := options{logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 o.logger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if o.tracing != nil {
		if err := o.tracing.RegisterOtelGorm(db); err != nil {
			return nil, fmt.Errorf("failed to register database tracing: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{DB: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}

// Stats returns connection pool statistics
func (d *Database) Stats() (ConnectionStats, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return ConnectionStats{}, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	return ConnectionStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
	}, nil
}

// ConnectionStats holds database connection pool statistics
type ConnectionStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
}
