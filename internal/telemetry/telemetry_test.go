package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)))
	p, err := Setup(context.Background(), Config{TracerProvider: tp})
	require.NoError(t, err)
	SetDefault(p)
	t.Cleanup(func() {
		SetDefault(nil)
		_ = p.Shutdown(context.Background())
	})
	return exporter
}

func TestStartSpan_RecordsStatusAndAttributes(t *testing.T) {
	exporter := withRecorder(t)

	_, ok := StartSpan(context.Background(), "usecase.Send", attribute.String("recipient", "alice"))
	EndSpan(ok, nil)
	_, failed := StartSpan(context.Background(), "usecase.Suggest")
	EndSpan(failed, errors.New("upstream down"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	require.Equal(t, "usecase.Send", spans[0].Name)
	require.Equal(t, codes.Ok, spans[0].Status.Code)
	require.Contains(t, spans[0].Attributes, attribute.String("recipient", "alice"))

	require.Equal(t, "usecase.Suggest", spans[1].Name)
	require.Equal(t, codes.Error, spans[1].Status.Code)
	require.Equal(t, "upstream down", spans[1].Status.Description)
	require.Len(t, spans[1].Events, 1)
}

func TestStartSpan_WithoutDefaultIsNoop(t *testing.T) {
	SetDefault(nil)
	ctx := context.Background()
	got, span := StartSpan(ctx, "noop")
	require.Equal(t, ctx, got)
	require.False(t, span.SpanContext().IsValid())
	EndSpan(span, errors.New("ignored"))
	EndSpan(nil, nil)
}

func TestSetup_DefaultProvider(t *testing.T) {
	p, err := Setup(context.Background(), Config{ServiceName: "unit-test"})
	require.NoError(t, err)
	_, span := p.StartSpan(context.Background(), "x")
	require.True(t, span.SpanContext().IsValid())
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestSetup_WithEndpointDoesNotDial(t *testing.T) {
	p, err := Setup(context.Background(), Config{OTLPEndpoint: "http://127.0.0.1:4318"})
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestNilProvider(t *testing.T) {
	var p *Provider
	ctx := context.Background()
	got, _ := p.StartSpan(ctx, "x")
	require.Equal(t, ctx, got)
	require.NoError(t, p.Shutdown(ctx))
}
