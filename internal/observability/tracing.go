// Package observability wires OpenTelemetry trace export. Spans produced by
// Genkit's TracerProvider are shipped to a local OTLP collector over HTTP;
// the collector owns authentication and forwarding.
package observability

import (
	"context"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/quizforge/quizforge/internal/log"
)

// Config for OTLP trace export.
type Config struct {
	// Endpoint is the collector's OTLP HTTP endpoint, host:port.
	Endpoint string
	// ServiceName tags exported spans.
	ServiceName string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
}

// DefaultEndpoint is the conventional local OTLP HTTP endpoint.
const DefaultEndpoint = "localhost:4318"

// Setup registers an OTLP exporter with Genkit's TracerProvider and returns
// a shutdown function that flushes pending spans. An empty endpoint leaves
// tracing disabled; exporter failures disable it with a warning rather than
// failing startup.
func Setup(ctx context.Context, cfg Config, logger log.Logger) (func(context.Context) error, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	// Genkit's TracerProvider reads service identity from the environment.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating otlp exporter failed, tracing disabled", "error", err)
		return func(context.Context) error { return nil }, nil
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"endpoint", endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment)

	return tracing.TracerProvider().Shutdown, nil
}
