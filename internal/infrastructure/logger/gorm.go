package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

const (
	defaultSlowQuery    = 200 * time.Millisecond
	defaultMaxSQLLength = 2048
)

// GormLogger writes gorm's statement log through zap, tagged with the billing
// context of the unit of work that issued the statement.
type GormLogger struct {
	log    *zap.Logger
	level  gormlogger.LogLevel
	slow   time.Duration
	maxSQL int
}

// GormOption tunes a GormLogger.
type GormOption func(*GormLogger)

// WithSlowQuery sets the duration above which a statement is logged as slow.
// Zero disables slow statement warnings.
func WithSlowQuery(d time.Duration) GormOption {
	return func(l *GormLogger) { l.slow = d }
}

// WithMaxSQLLength truncates logged statements to n bytes.
func WithMaxSQLLength(n int) GormOption {
	return func(l *GormLogger) { l.maxSQL = n }
}

// NewGormLogger creates a gorm logger on a "gorm" child of log.
func NewGormLogger(log *zap.Logger, level gormlogger.LogLevel, opts ...GormOption) *GormLogger {
	l := &GormLogger{
		log:    log.Named("gorm"),
		level:  level,
		slow:   defaultSlowQuery,
		maxSQL: defaultMaxSQLLength,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LogMode implements gormlogger.Interface.
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

// Info implements gormlogger.Interface.
func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	l.message(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

// Warn implements gormlogger.Interface.
func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.message(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

// Error implements gormlogger.Interface.
func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	l.message(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) message(ctx context.Context, at gormlogger.LogLevel, lvl zapcore.Level, msg string, data []any) {
	if l.level < at {
		return
	}
	l.log.Log(lvl, fmt.Sprintf(msg, data...), queryContext(ctx)...)
}

// Trace implements gormlogger.Interface. Record not found is never logged:
// repositories turn it into an absent result.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound)
	slow := l.slow > 0 && elapsed > l.slow

	var (
		lvl zapcore.Level
		msg string
	)
	switch {
	case failed && l.level >= gormlogger.Error:
		lvl, msg = zapcore.ErrorLevel, "sql failed"
	case slow && l.level >= gormlogger.Warn:
		lvl, msg = zapcore.WarnLevel, "slow sql"
	case l.level >= gormlogger.Info:
		lvl, msg = zapcore.DebugLevel, "sql"
	default:
		return
	}

	sql, rows := fc()
	fields := append(queryContext(ctx),
		zap.String("statement", statementKind(sql)),
		zap.String("sql", l.truncate(sql)),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	)
	if slow {
		fields = append(fields, zap.Duration("slow_threshold", l.slow))
	}
	if failed {
		fields = append(fields, zap.Error(err))
	}
	l.log.Log(lvl, msg, fields...)
}

func (l *GormLogger) truncate(sql string) string {
	if l.maxSQL <= 0 || len(sql) <= l.maxSQL {
		return sql
	}
	return sql[:l.maxSQL] + "..."
}

// statementKind is the leading keyword of a statement, e.g. SELECT or UPDATE.
func statementKind(sql string) string {
	kind, _, _ := strings.Cut(strings.TrimSpace(sql), " ")
	return strings.ToUpper(kind)
}

// queryContext collects the billing identifiers carried by ctx.
func queryContext(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if id := GetCorrelationID(ctx); id != "" {
		fields = append(fields, zap.String("correlation_id", id))
	}
	if id := GetProjectID(ctx); id != "" {
		fields = append(fields, zap.String("project_id", id))
	}
	if actor, ok := GetActor(ctx); ok {
		fields = append(fields, zap.String("actor", actor.String()))
	}
	if id := GetTraceID(ctx); id != "" {
		fields = append(fields, zap.String("trace_id", id))
	}
	return fields
}

// GormLevel maps the configured log level onto gorm's. Only debug logs every
// statement; info keeps slow statements and failures.
func GormLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return gormlogger.Info
	case "error":
		return gormlogger.Error
	case "silent":
		return gormlogger.Silent
	default:
		return gormlogger.Warn
	}
}
