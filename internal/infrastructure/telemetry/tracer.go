package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"

	"github.com/erp/projectbilling/internal/infrastructure/config"
)

// AttrCommand names the billing command a process runs (reconcile, migrate).
const AttrCommand = attribute.Key("billing.command")

// Config describes where billing spans go and how the process is labelled.
type Config struct {
	Enabled           bool
	CollectorEndpoint string
	Insecure          bool
	SamplingRatio     float64

	ServiceName    string
	ServiceVersion string
	Environment    string
	Command        string
}

// ConfigFrom derives the tracing setup of one command from the loaded
// configuration. The telemetry service name wins over the app name.
func ConfigFrom(cfg *config.Config, command string) Config {
	name := cfg.Telemetry.ServiceName
	if name == "" {
		name = cfg.App.Name
	}
	return Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       name,
		ServiceVersion:    cfg.App.Version,
		Environment:       cfg.App.Env,
		Command:           command,
	}
}

// Resource labels every exported span with the billing service identity.
func Resource(cfg Config) *resource.Resource {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.DeploymentEnvironmentName(cfg.Environment),
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	if cfg.Command != "" {
		attrs = append(attrs, AttrCommand.String(cfg.Command))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

// Sampler maps a sampling ratio onto a parent based sampler. Ratios outside
// (0, 1) sample everything or nothing.
func Sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case ratio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// TracerProvider owns the exporter pipeline of a command. A disabled provider
// leaves the global no-op provider in place.
type TracerProvider struct {
	sdk    *sdktrace.TracerProvider
	logger *zap.Logger
}

// NewTracerProvider installs the global tracer provider and propagator.
func NewTracerProvider(ctx context.Context, cfg Config, logger *zap.Logger) (*TracerProvider, error) {
	tp := &TracerProvider{logger: logger}
	if !cfg.Enabled {
		logger.Debug("tracing disabled", zap.String("command", cfg.Command))
		return tp, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	tp.sdk = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(Resource(cfg)),
		sdktrace.WithSampler(Sampler(cfg.SamplingRatio)),
	)
	otel.SetTracerProvider(tp.sdk)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("tracing enabled",
		zap.String("collector", cfg.CollectorEndpoint),
		zap.String("service", cfg.ServiceName),
		zap.String("version", cfg.ServiceVersion),
		zap.String("env", cfg.Environment),
		zap.String("command", cfg.Command),
	)
	return tp, nil
}

// Enabled reports whether spans are exported.
func (tp *TracerProvider) Enabled() bool {
	return tp.sdk != nil
}

// Shutdown flushes pending spans. The caller bounds it through ctx.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.sdk == nil {
		return nil
	}
	if err := tp.sdk.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}
	return nil
}
