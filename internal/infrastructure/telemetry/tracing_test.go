package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/projectbilling/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// setupTestTracer installs an in-memory span recorder as the global provider.
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})

	return sr
}

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value
	}
	return m
}

func TestStartSpan(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "test.operation")
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "test.operation", spans[0].Name())
	assert.Equal(t, trace.SpanKindInternal, spans[0].SpanKind())
}

func TestStartSpan_WithOptions(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "test.operation",
		telemetry.WithAttribute("test_key", "test_value"),
		telemetry.WithSpanKind(trace.SpanKindClient),
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind())
	assert.Equal(t, "test_value", attrMap(spans[0].Attributes())["test_key"].AsString())
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "payment_receipt", "verify")
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "payment_receipt.verify", spans[0].Name())
}

func TestSetAttributes(t *testing.T) {
	sr := setupTestTracer(t)
	projectID := uuid.New()

	_, span := telemetry.StartSpan(context.Background(), "test")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrProjectID, projectID,
		"created", 3,
		"degraded", true,
		42, "skipped: non-string key",
	)
	telemetry.SetAttribute(span, telemetry.SpanAttrAmount, "15000")
	span.End()

	attrs := attrMap(sr.Ended()[0].Attributes())
	assert.Equal(t, projectID.String(), attrs[telemetry.SpanAttrProjectID].AsString())
	assert.Equal(t, int64(3), attrs["created"].AsInt64())
	assert.True(t, attrs["degraded"].AsBool())
	assert.Equal(t, "15000", attrs[telemetry.SpanAttrAmount].AsString())
	assert.Len(t, attrs, 4)
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "test")
	telemetry.RecordError(span, errors.New("boom"))
	telemetry.RecordError(span, nil)
	span.End()

	s := sr.Ended()[0]
	assert.Equal(t, codes.Error, s.Status().Code)
	assert.Equal(t, "boom", s.Status().Description)
	require.Len(t, s.Events(), 1)
	assert.Equal(t, "exception", s.Events()[0].Name)
}

func TestSetOK(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "test")
	telemetry.SetOK(span)
	span.End()

	assert.Equal(t, codes.Ok, sr.Ended()[0].Status().Code)
}

func TestAddEvent(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "test")
	telemetry.AddEvent(span, "ledger_transaction_created",
		telemetry.SpanAttrSourceType, "projectInstallment",
		telemetry.SpanAttrSourceID, "abc",
	)
	span.End()

	events := sr.Ended()[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "ledger_transaction_created", events[0].Name)
	attrs := attrMap(events[0].Attributes)
	assert.Equal(t, "projectInstallment", attrs[telemetry.SpanAttrSourceType].AsString())
}

func TestGetTraceID(t *testing.T) {
	setupTestTracer(t)

	assert.Empty(t, telemetry.GetTraceID(context.Background()))

	ctx, span := telemetry.StartSpan(context.Background(), "test")
	defer span.End()
	assert.Len(t, telemetry.GetTraceID(ctx), 32)
}

func TestNilSpanHelpers(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.SetAttributes(nil, "k", "v")
		telemetry.SetAttribute(nil, "k", "v")
		telemetry.RecordError(nil, errors.New("x"))
		telemetry.SetOK(nil)
		telemetry.AddEvent(nil, "e")
	})
}
