// Package tracing wires OpenTelemetry into the harness: provider setup, a
// span per remote agent call and a span per status fetch while polling.
package tracing

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
)

// InstrumentationName names the tracer used throughout the harness
const InstrumentationName = "github.com/Ingenimax/agent-harness-go"

// Config selects the exporter
type Config struct {
	// Endpoint is an OTLP collector. http(s):// URLs use OTLP/HTTP, anything
	// else (host:port or grpc://host:port) uses insecure OTLP/gRPC. Empty
	// disables export.
	Endpoint    string
	ServiceName string
}

// Provider owns a tracer provider and its shutdown
type Provider struct {
	trace.TracerProvider
	shutdown func(context.Context) error
}

// Tracer returns the harness tracer
func (p *Provider) Tracer() trace.Tracer {
	return p.TracerProvider.Tracer(InstrumentationName)
}

// Shutdown flushes pending spans and stops the exporter
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

// Setup builds a Provider for cfg
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Endpoint == "" {
		return &Provider{TracerProvider: noop.NewTracerProvider()}, nil
	}

	exporter, err := newExporter(ctx, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter for %s: %w", cfg.Endpoint, err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "agent-harness"
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
	return &Provider{TracerProvider: tp, shutdown: tp.Shutdown}, nil
}

func newExporter(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
	if u, err := url.Parse(endpoint); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	}

	return otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(strings.TrimPrefix(endpoint, "grpc://")),
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithDialOption(grpc.WithUserAgent("agent-harness")),
	)
}
