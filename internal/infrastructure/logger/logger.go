package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/erp/projectbilling/internal/infrastructure/config"
)

// Options shape the logger of one billing command.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json or console; empty picks json in production
	Output string // stdout, stderr or a file path

	Service string
	Env     string
	Version string
	Command string
}

// OptionsFrom merges the log and app sections of the configuration for the
// named command.
func OptionsFrom(cfg *config.Config, command string) Options {
	return Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
		Env:     cfg.App.Env,
		Version: cfg.App.Version,
		Command: command,
	}
}

// New builds a zap logger whose entries carry the service identity fields.
// An unknown level, format or an unwritable output file is an error.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(opts.Level))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	encoder, err := newEncoder(opts)
	if err != nil {
		return nil, err
	}
	sink, err := openSink(opts.Output)
	if err != nil {
		return nil, err
	}

	return zap.New(zapcore.NewCore(encoder, sink, level),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
		zap.Fields(identityFields(opts)...),
	), nil
}

func identityFields(opts Options) []zap.Field {
	var fields []zap.Field
	for _, kv := range [][2]string{
		{"service", opts.Service},
		{"env", opts.Env},
		{"version", opts.Version},
		{"command", opts.Command},
	} {
		if kv[1] != "" {
			fields = append(fields, zap.String(kv[0], kv[1]))
		}
	}
	return fields
}

func newEncoder(opts Options) (zapcore.Encoder, error) {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeDuration = zapcore.MillisDurationEncoder

	format := strings.ToLower(opts.Format)
	if format == "" {
		format = "console"
		if opts.Env == "production" {
			format = "json"
		}
	}
	switch format {
	case "json":
		return zapcore.NewJSONEncoder(ec), nil
	case "console":
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", opts.Format)
	}
}

func openSink(output string) (zapcore.WriteSyncer, error) {
	switch strings.ToLower(output) {
	case "", "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	}
	f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return zapcore.Lock(f), nil
}
