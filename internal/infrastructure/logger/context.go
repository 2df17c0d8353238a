package logger

import (
	"context"

	"github.com/erp/projectbilling/internal/domain/shared"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	// LoggerKey is the context key for the logger
	LoggerKey contextKey = "logger"
	// CorrelationIDKey is the context key for the correlation ID of one billing operation
	CorrelationIDKey contextKey = "correlation_id"
	// ActorKey is the context key for the acting user
	ActorKey contextKey = "actor"
	// ProjectIDKey is the context key for the project being worked on
	ProjectIDKey contextKey = "project_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context, returns a no-op logger if not found
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithCorrelationID adds a correlation ID to context and returns the enriched logger
func WithCorrelationID(ctx context.Context, logger *zap.Logger, correlationID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, CorrelationIDKey, correlationID)
	enriched := logger.With(zap.String("correlation_id", correlationID))
	return WithContext(ctx, enriched), enriched
}

// WithActor adds the acting user to context and returns the enriched logger
func WithActor(ctx context.Context, logger *zap.Logger, actor shared.ActorRef) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, ActorKey, actor)
	enriched := logger.With(zap.Stringer("actor", actor))
	return WithContext(ctx, enriched), enriched
}

// WithProjectID adds the project ID to context and returns the enriched logger
func WithProjectID(ctx context.Context, logger *zap.Logger, projectID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, ProjectIDKey, projectID)
	enriched := logger.With(zap.String("project_id", projectID))
	return WithContext(ctx, enriched), enriched
}

// GetCorrelationID retrieves the correlation ID from context
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

// GetActor retrieves the acting user from context
func GetActor(ctx context.Context) (shared.ActorRef, bool) {
	actor, ok := ctx.Value(ActorKey).(shared.ActorRef)
	return actor, ok
}

// GetProjectID retrieves the project ID from context
func GetProjectID(ctx context.Context) string {
	if id, ok := ctx.Value(ProjectIDKey).(string); ok {
		return id
	}
	return ""
}

// GetTraceID extracts the trace ID from the context's span.
// Returns an empty string if no valid span exists.
func GetTraceID(ctx context.Context) string {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}

// WithTraceContext adds trace_id and span_id to the logger from the context's span.
// If no valid span exists, returns the original logger unchanged.
func WithTraceContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	)
}

// ContextLogger injects trace and billing context fields into every entry.
type ContextLogger struct {
	ctx    context.Context
	logger *zap.Logger
}

// L returns a ContextLogger from the given context.
//
//	logger.L(ctx).Warn("ledger write degraded", zap.Error(err))
func L(ctx context.Context) *ContextLogger {
	return &ContextLogger{
		ctx:    ctx,
		logger: FromContext(ctx),
	}
}

// WithLogger returns a ContextLogger using the provided logger instead of
// extracting from context.
func WithLogger(ctx context.Context, logger *zap.Logger) *ContextLogger {
	return &ContextLogger{
		ctx:    ctx,
		logger: logger,
	}
}

func (cl *ContextLogger) enrichedLogger() *zap.Logger {
	l := cl.logger
	if l == nil {
		l = zap.NewNop()
	}

	l = WithTraceContext(cl.ctx, l)
	if id := GetCorrelationID(cl.ctx); id != "" {
		l = l.With(zap.String("correlation_id", id))
	}
	if actor, ok := GetActor(cl.ctx); ok {
		l = l.With(zap.Stringer("actor", actor))
	}
	if id := GetProjectID(cl.ctx); id != "" {
		l = l.With(zap.String("project_id", id))
	}
	return l
}

// With creates a child ContextLogger with additional fields.
func (cl *ContextLogger) With(fields ...zap.Field) *ContextLogger {
	base := cl.logger
	if base == nil {
		base = zap.NewNop()
	}
	return &ContextLogger{
		ctx:    cl.ctx,
		logger: base.With(fields...),
	}
}

func (cl *ContextLogger) Debug(msg string, fields ...zap.Field) {
	cl.enrichedLogger().Debug(msg, fields...)
}

func (cl *ContextLogger) Info(msg string, fields ...zap.Field) {
	cl.enrichedLogger().Info(msg, fields...)
}

func (cl *ContextLogger) Warn(msg string, fields ...zap.Field) {
	cl.enrichedLogger().Warn(msg, fields...)
}

func (cl *ContextLogger) Error(msg string, fields ...zap.Field) {
	cl.enrichedLogger().Error(msg, fields...)
}

// Zap returns the underlying zap.Logger enriched with context fields.
func (cl *ContextLogger) Zap() *zap.Logger {
	return cl.enrichedLogger()
}
