package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "mystery-message"
	defaultServiceName  = "mystery-message"
)

// Config drives how tracing is initialized. With no endpoint and no provider
// spans are still created but never exported.
type Config struct {
	ServiceName    string
	OTLPEndpoint   string
	TracerProvider trace.TracerProvider
}

// Provider owns the tracer used by the service layers.
type Provider struct {
	tracer         trace.Tracer
	tracerProvider trace.TracerProvider
}

var global atomic.Pointer[Provider]

// Setup builds a Provider. A non-empty OTLPEndpoint exports spans over
// OTLP/HTTP in batches.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	tp := cfg.TracerProvider
	if tp == nil {
		res, err := buildResource(cfg.ServiceName)
		if err != nil {
			return nil, fmt.Errorf("telemetry: build resource: %w", err)
		}
		opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
		if endpoint := strings.TrimSpace(cfg.OTLPEndpoint); endpoint != "" {
			exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
			if err != nil {
				return nil, fmt.Errorf("telemetry: create otlp exporter: %w", err)
			}
			opts = append(opts, sdktrace.WithBatcher(exp))
		}
		tp = sdktrace.NewTracerProvider(opts...)
	}
	return &Provider{
		tracer:         tp.Tracer(instrumentationName),
		tracerProvider: tp,
	}, nil
}

// StartSpan starts a span on the provider's tracer.
func (p *Provider) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if p == nil || p.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return p.tracer.Start(ctx, name, opts...)
}

// Shutdown flushes and stops the tracer provider when it supports it.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	closer, ok := p.tracerProvider.(interface {
		Shutdown(context.Context) error
	})
	if !ok || closer == nil {
		return nil
	}
	if err := closer.Shutdown(ctx); err != nil {
		return errors.Join(errors.New("telemetry: shutdown"), err)
	}
	return nil
}

// SetDefault swaps the process-wide provider used by StartSpan.
func SetDefault(p *Provider) {
	global.Store(p)
}

// Default returns the registered provider, or nil.
func Default() *Provider {
	return global.Load()
}

// StartSpan starts a span on the default provider. Without one it returns
// the span already in ctx, which is a no-op span for a bare context.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if p := Default(); p != nil {
		return p.StartSpan(ctx, name, trace.WithAttributes(attrs...))
	}
	return ctx, trace.SpanFromContext(ctx)
}

// EndSpan records err on the span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "ok")
	}
	span.End()
}

func buildResource(serviceName string) (*resource.Resource, error) {
	service := strings.TrimSpace(serviceName)
	if service == "" {
		service = defaultServiceName
	}
	base := resource.Default()
	schema := base.SchemaURL()
	if schema == "" {
		schema = semconv.SchemaURL
	}
	custom := resource.NewWithAttributes(schema, semconv.ServiceName(service))
	return resource.Merge(base, custom)
}
