package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type tracedRow struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:100"`
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedRow{}))
	return db
}

func TestDefaultDBTracingConfig(t *testing.T) {
	cfg := DefaultDBTracingConfig()

	assert.False(t, cfg.Enabled)
	assert.False(t, cfg.LogFullSQL)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThresh)
	assert.Equal(t, "postgresql", cfg.DBSystem)
}

func TestDBTracingPlugin_RegisterOtelGorm(t *testing.T) {
	t.Run("disabled is a no-op", func(t *testing.T) {
		db := setupTestDB(t)
		plugin := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())
		assert.NoError(t, plugin.RegisterOtelGorm(db))
		assert.Nil(t, db.Callback().Query().Get("otel_slow_query:query"))
	})

	t.Run("enabled registers callbacks", func(t *testing.T) {
		db := setupTestDB(t)
		cfg := DefaultDBTracingConfig()
		cfg.Enabled = true
		cfg.DBSystem = "sqlite"

		plugin := NewDBTracingPlugin(cfg, zap.NewNop())
		require.NoError(t, plugin.RegisterOtelGorm(db))
		assert.NotNil(t, db.Callback().Query().Get("otel_slow_query:query"))
		assert.NotNil(t, db.Callback().Create().Get("otel_timing:before_create"))
	})

	t.Run("queries still work with full SQL", func(t *testing.T) {
		db := setupTestDB(t)
		cfg := DefaultDBTracingConfig()
		cfg.Enabled = true
		cfg.LogFullSQL = true

		require.NoError(t, NewDBTracingPlugin(cfg, zap.NewNop()).RegisterOtelGorm(db))
		require.NoError(t, db.Create(&tracedRow{Name: "a"}).Error)

		var rows []tracedRow
		require.NoError(t, db.Find(&rows).Error)
		assert.Len(t, rows, 1)
	})
}

func TestSlowQueryCallback(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	db := setupTestDB(t)
	plugin := NewDBTracingPlugin(DBTracingConfig{SlowQueryThresh: time.Nanosecond}, zap.NewNop())

	ctx, span := tp.Tracer("test").Start(context.Background(), "slow-query-test")
	ctx = context.WithValue(ctx, queryStartTimeKey, time.Now().Add(-time.Second))

	stmt := db.WithContext(ctx)
	stmt.Statement.Table = "traced_rows"
	stmt.Statement.RowsAffected = 2
	plugin.slowQueryCallback(stmt)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	found := map[string]bool{}
	for _, a := range spans[0].Attributes() {
		found[string(a.Key)] = true
	}
	assert.True(t, found["db.slow_query"])
	assert.True(t, found["db.sql.table"])
	assert.True(t, found["db.rows_affected"])
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "slow_query_warning", spans[0].Events()[0].Name)
}

func TestSlowQueryCallback_NonRecordingSpan(t *testing.T) {
	db := setupTestDB(t)
	plugin := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())

	assert.NotPanics(t, func() {
		plugin.slowQueryCallback(db.WithContext(context.Background()))
	})
}
