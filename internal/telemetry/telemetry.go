// Package telemetry wires the engine's ambient observability stack:
// structured logging via log/slog and OpenTelemetry metrics via
// go.opentelemetry.io/otel/metric, following the same pattern the
// teacher's internal/compact/haiku.go uses (a package-level Meter()
// helper over the global MeterProvider) generalized into a small
// reusable package instead of one file's private aiMetrics struct.
package telemetry

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// LogFormat selects slog's output encoding.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// LogConfig configures NewLogger.
type LogConfig struct {
	Level  slog.Level
	Format LogFormat
}

// NewLogger builds the engine's root structured logger, matching the
// teacher's cmd/bd convention of passing one *slog.Logger down through
// constructors rather than relying on slog.Default() everywhere.
func NewLogger(cfg LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level}
	var handler slog.Handler
	if cfg.Format == LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// MeterProviderConfig configures NewMeterProvider.
type MeterProviderConfig struct {
	// StdoutExport, when true, registers a periodic stdout reader so
	// metrics are visible without a collector — suitable for
	// cmd/memoryd's standalone ambient-stack demonstration, not for a
	// production deployment behind a real OTel collector.
	StdoutExport bool
}

// NewMeterProvider builds an SDK MeterProvider and installs it as the
// global provider, returning a shutdown function. When cfg.StdoutExport
// is false the provider holds no readers and every instrument it mints
// is a harmless no-op recorder.
func NewMeterProvider(ctx context.Context, cfg MeterProviderConfig) (shutdown func(context.Context) error, err error) {
	var opts []sdkmetric.Option
	if cfg.StdoutExport {
		exporter, err := stdoutmetric.New(stdoutmetric.WithoutTimestamps())
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	}
	provider := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(provider)
	return provider.Shutdown, nil
}

// Meter returns a named Meter off the currently installed global
// MeterProvider, the package-scoped lookup callers use before minting
// counters/histograms.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}
