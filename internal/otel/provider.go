// Package otel provides OpenTelemetry tracer provider initialization and management.
package otel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/mrzor/exec-monitor/internal/config"
)

// ShutdownFunc flushes and stops a tracer provider.
type ShutdownFunc func(context.Context) error

// InitProvider returns the tracer provider for API request spans. Without a
// configured endpoint it returns a no-op provider.
//
// Note: Uses OTLP/HTTP protocol. The HTTP client automatically honors HTTP_PROXY,
// HTTPS_PROXY, and NO_PROXY environment variables through Go's standard net/http transport.
func InitProvider(ctx context.Context, cfg *config.OTELConfig, logger *zap.Logger) (trace.TracerProvider, ShutdownFunc, error) {
	if !cfg.Enabled() {
		logger.Debug("tracing disabled, no OTLP endpoint configured")
		return noop.NewTracerProvider(), func(context.Context) error { return nil }, nil
	}

	endpoint := cfg.GetEndpoint()
	logger.Info("tracing enabled",
		zap.String("service_name", cfg.ServiceName),
		zap.String("endpoint", endpoint),
		zap.String("resource_attributes", cfg.ResourceAttributes),
	)

	exporter, err := otlptracehttp.New(ctx, exporterOptions(endpoint)...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	// Build resource attributes
	resourceAttrs := []resource.Option{
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	}

	// Add custom resource attributes from environment
	customAttrs := cfg.ParseResourceAttributes()
	if len(customAttrs) > 0 {
		resourceAttrs = append(resourceAttrs, resource.WithAttributes(customAttrs...))
	}

	res, err := resource.New(ctx, resourceAttrs...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// Create tracer provider with batch span processor
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	return tp, func(ctx context.Context) error { return ShutdownProvider(tp, ctx) }, nil
}

// exporterOptions accepts either a bare host:port or a full URL.
func exporterOptions(endpoint string) []otlptracehttp.Option {
	opts := []otlptracehttp.Option{otlptracehttp.WithTimeout(10 * time.Second)}
	if strings.Contains(endpoint, "://") {
		return append(opts, otlptracehttp.WithEndpointURL(endpoint))
	}
	return append(opts,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
}

// ShutdownProvider gracefully shuts down the tracer provider, flushing any remaining spans.
func ShutdownProvider(tp *sdktrace.TracerProvider, ctx context.Context) error {
	if tp == nil {
		return nil
	}

	if err := tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}

	return nil
}
