package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/paradigm4/arrayshim/internal/config"
)

// TracerProvider wraps the OpenTelemetry SDK provider with arrayshim's
// config-driven setup.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	config   *config.OpenTelemetryConfig
}

// NewTracerProvider builds a TracerProvider from cfg. Returns (nil, nil) if
// tracing is disabled or cfg is nil.
func NewTracerProvider(ctx context.Context, cfg *config.OpenTelemetryConfig) (*TracerProvider, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	var exporter sdktrace.SpanExporter
	var err error

	opts := []otlptracegrpc.Option{}
	httpOpts := []otlptracehttp.Option{}
	if cfg.OTLPEndpoint != "" {
		opts = append(opts, otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint))
		httpOpts = append(httpOpts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
	}

	switch cfg.GetOTLPProtocol() {
	case "grpc":
		exporter, err = otlptracegrpc.New(ctx, opts...)
	case "http":
		exporter, err = otlptracehttp.New(ctx, httpOpts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol: %s", cfg.GetOTLPProtocol())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(cfg.GetServiceName()),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var sampler sdktrace.Sampler
	switch rate := cfg.GetSamplingRate(); {
	case rate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case rate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(rate)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{provider: provider, config: cfg}, nil
}

// Tracer returns a tracer with the given name, or a no-op tracer if
// tracing is disabled.
func (tp *TracerProvider) Tracer(name string) trace.Tracer {
	if tp == nil || tp.provider == nil {
		return otel.Tracer(name)
	}
	return tp.provider.Tracer(name)
}

// Shutdown gracefully shuts down the tracer provider and flushes pending spans.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp == nil || tp.provider == nil {
		return nil
	}
	return tp.provider.Shutdown(ctx)
}

// Enabled returns true if tracing is active.
func (tp *TracerProvider) Enabled() bool { return tp != nil && tp.provider != nil }

// Span attribute keys used throughout the query pipeline.
const (
	AttrSessionID  = "arrayshim.session_id"
	AttrQueryText  = "arrayshim.query_text"
	AttrSaveFormat = "arrayshim.save_format"
	AttrQueryID    = "arrayshim.query_id"
)

// SessionAttributes returns the common attributes attached to every span
// inside a session's request handling.
func SessionAttributes(sessionID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrSessionID, sessionID),
	}
}
