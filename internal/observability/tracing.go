package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies spans emitted by this core in a shared trace
// backend.
const TracerName = "semcache"

// TracingConfig configures the optional OTLP exporter. Tracing defaults to
// disabled — the core emits spans only when a host explicitly wires an
// endpoint, matching the spec's "no required external observability"
// stance while still giving one a home when present.
type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
	SampleRate  float64
	Insecure    bool
}

// DefaultTracingConfig disables tracing.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{Enabled: false, Endpoint: "localhost:4317", ServiceName: "semcache", SampleRate: 1.0, Insecure: true}
}

// TracerProvider wraps the OpenTelemetry tracer provider, or a no-op
// tracer when tracing is disabled.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// InitTracing sets up OTLP export when cfg.Enabled, otherwise returns a
// provider backed by the global no-op tracer.
func InitTracing(ctx context.Context, cfg TracingConfig) (*TracerProvider, error) {
	if !cfg.Enabled {
		return &TracerProvider{tracer: otel.Tracer(TracerName)}, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			attribute.String("service.name", cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SampleRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	return &TracerProvider{provider: provider, tracer: provider.Tracer(TracerName)}, nil
}

// Tracer returns the active tracer (real or no-op).
func (tp *TracerProvider) Tracer() trace.Tracer { return tp.tracer }

// Shutdown drains the exporter, if one is running.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider != nil {
		return tp.provider.Shutdown(ctx)
	}
	return nil
}

// StartDecisionSpan starts a span around one decide() call, tagging it
// with the outcome once known via RecordDecision.
func StartDecisionSpan(ctx context.Context, tracer trace.Tracer, operation string) (context.Context, trace.Span) {
	return tracer.Start(ctx, operation, trace.WithSpanKind(trace.SpanKindInternal))
}

// RecordDecision annotates span with the decision outcome.
func RecordDecision(span trace.Span, action string, similarity, uncertainty float64) {
	span.SetAttributes(
		attribute.String("semcache.decision.action", action),
		attribute.Float64("semcache.decision.similarity", similarity),
		attribute.Float64("semcache.decision.uncertainty", uncertainty),
	)
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetAttributes(attribute.Bool("error", true))
}
