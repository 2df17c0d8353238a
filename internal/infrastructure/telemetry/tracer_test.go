package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap/zaptest"

	"github.com/erp/projectbilling/internal/infrastructure/config"
	"github.com/erp/projectbilling/internal/infrastructure/telemetry"
)

func billingConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "project-billing", Env: "staging", Version: "2.4.1"},
		Telemetry: config.TelemetryConfig{
			Enabled:           true,
			CollectorEndpoint: "otel.internal:4317",
			SamplingRatio:     0.25,
			ServiceName:       "billing-reconciler",
			Insecure:          true,
		},
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := telemetry.ConfigFrom(billingConfig(), "reconcile")

	assert.True(t, cfg.Enabled)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, "otel.internal:4317", cfg.CollectorEndpoint)
	assert.Equal(t, 0.25, cfg.SamplingRatio)
	assert.Equal(t, "billing-reconciler", cfg.ServiceName)
	assert.Equal(t, "2.4.1", cfg.ServiceVersion)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "reconcile", cfg.Command)
}

func TestConfigFrom_FallsBackToAppName(t *testing.T) {
	loaded := billingConfig()
	loaded.Telemetry.ServiceName = ""

	assert.Equal(t, "project-billing", telemetry.ConfigFrom(loaded, "reconcile").ServiceName)
}

func TestResource(t *testing.T) {
	res := telemetry.Resource(telemetry.ConfigFrom(billingConfig(), "reconcile"))
	set := res.Set()

	value := func(key string) string {
		t.Helper()
		for _, kv := range set.ToSlice() {
			if string(kv.Key) == key {
				return kv.Value.AsString()
			}
		}
		return ""
	}
	assert.Equal(t, "billing-reconciler", value(string(semconv.ServiceNameKey)))
	assert.Equal(t, "2.4.1", value(string(semconv.ServiceVersionKey)))
	assert.Equal(t, "staging", value(string(semconv.DeploymentEnvironmentNameKey)))
	assert.Equal(t, "reconcile", value(string(telemetry.AttrCommand)))
	assert.Equal(t, semconv.SchemaURL, res.SchemaURL())
}

func TestResource_OmitsEmptyVersionAndCommand(t *testing.T) {
	res := telemetry.Resource(telemetry.Config{ServiceName: "project-billing", Environment: "development"})

	_, hasVersion := res.Set().Value(semconv.ServiceVersionKey)
	_, hasCommand := res.Set().Value(telemetry.AttrCommand)
	assert.False(t, hasVersion)
	assert.False(t, hasCommand)
}

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		root  string
	}{
		{1.0, "AlwaysOnSampler"},
		{3.0, "AlwaysOnSampler"},
		{0.0, "AlwaysOffSampler"},
		{-1.0, "AlwaysOffSampler"},
		{0.5, "TraceIDRatioBased{0.5}"},
	}
	for _, tt := range tests {
		t.Run(tt.root, func(t *testing.T) {
			desc := telemetry.Sampler(tt.ratio).Description()
			assert.Contains(t, desc, "ParentBased{root:"+tt.root)
		})
	}
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := telemetry.ConfigFrom(billingConfig(), "reconcile")
	cfg.Enabled = false

	tp, err := telemetry.NewTracerProvider(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, tp.Enabled())
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.NoError(t, tp.Shutdown(cancelled))
}
