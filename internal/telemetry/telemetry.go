// Package telemetry installs the global OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const serviceName = "eternalflame"

type Config struct {
	// Endpoint is an OTLP/HTTP collector URL or host:port. Empty disables
	// export.
	Endpoint     string
	Version      string
	Environment  string
	BatchTimeout time.Duration
}

// ShutdownFunc flushes pending spans.
type ShutdownFunc func(context.Context) error

// Setup installs a batching OTLP/HTTP tracer provider. With no endpoint the
// global no-op provider stays in place and the returned shutdown does nothing.
func Setup(ctx context.Context, cfg Config, logger zerolog.Logger) (ShutdownFunc, error) {
	if cfg.Endpoint == "" {
		logger.Debug().Msg("tracing disabled")
		return func(context.Context) error { return nil }, nil
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 5 * time.Second
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(clientOptions(cfg.Endpoint)...))
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", cfg.Version),
		attribute.String("deployment.environment", cfg.Environment),
	)
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(cfg.BatchTimeout)),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info().Str("endpoint", cfg.Endpoint).Msg("tracing enabled")
	return provider.Shutdown, nil
}

// clientOptions accepts either a full URL or a bare host:port. Plain http
// URLs and bare endpoints are sent without TLS.
func clientOptions(endpoint string) []otlptracehttp.Option {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return []otlptracehttp.Option{otlptracehttp.WithEndpointURL(endpoint)}
	case strings.HasPrefix(endpoint, "http://"):
		return []otlptracehttp.Option{otlptracehttp.WithEndpointURL(endpoint), otlptracehttp.WithInsecure()}
	default:
		return []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure()}
	}
}
