// Package observability wires OTLP trace export into Genkit's tracer
// provider, so agent turns, flows and model calls show up as spans in any
// OpenTelemetry-compatible backend.
//
// # Local setup
//
// The exporter speaks OTLP over HTTP to a collector. For local work the
// Jaeger all-in-one image is enough:
//
//	docker run --rm -p 16686:16686 -p 4318:4318 \
//	  jaegertracing/all-in-one:latest
//
// then point docket at it:
//
//	DOCKET_OTLP_ENDPOINT=localhost:4318 docket serve
//
// Traces appear at http://localhost:16686 under the configured service
// name. Tracing is off entirely when no endpoint is configured; docket
// never fails startup over an unreachable collector.
package observability

import (
	"context"
	"os"
	"time"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/docketbot/docket/internal/log"
)

// Config for OTLP trace export.
type Config struct {
	// Endpoint is the collector's OTLP HTTP address (host:port).
	// Empty disables tracing.
	Endpoint string
	// Environment is the deployment.environment tag on exported spans.
	Environment string
	// ServiceName is the service name on exported spans.
	ServiceName string
}

// shutdownTimeout bounds the final span flush on exit.
const shutdownTimeout = 5 * time.Second

// Setup registers an OTLP exporter with Genkit's TracerProvider and returns
// a function that flushes pending spans. Setup must run before genkit.Init
// so the provider is configured when flows register, and it runs exactly
// once during startup, before any goroutines exist (os.Setenv is not
// concurrent-safe). An unreachable collector disables tracing rather than
// failing startup.
func Setup(ctx context.Context, cfg Config, logger log.Logger) func() {
	if logger == nil {
		logger = log.NewNop()
	}
	if cfg.Endpoint == "" {
		logger.Debug("tracing disabled, no OTLP endpoint configured")
		return func() {}
	}

	// Genkit's TracerProvider reads service identity from the OTEL env vars.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating OTLP exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"endpoint", cfg.Endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	shutdown := tracing.TracerProvider().Shutdown
	return func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}
