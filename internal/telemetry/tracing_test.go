package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogExporterWritesSpans(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(NewLogExporter(zap.New(core))))
	tracer := tp.Tracer("test")

	ctx, parent := tracer.Start(context.Background(), "audit.Run")
	_, child := tracer.Start(ctx, "audit.fetch")
	child.SetAttributes(attribute.Int("http.response.status_code", 404))
	child.End()
	parent.End()
	require.NoError(t, tp.Shutdown(context.Background()))

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, "audit.fetch", entries[0].Message)
	fields := entries[0].ContextMap()
	require.Equal(t, "404", fields["http.response.status_code"])
	require.Contains(t, fields, "parent_span_id")
	require.Equal(t, "audit.Run", entries[1].Message)
	require.NotContains(t, entries[1].ContextMap(), "parent_span_id")
}

func TestInitTracerProviderSamplesByRatio(t *testing.T) {
	tp, err := InitTracerProvider(context.Background(), Config{ServiceName: "test", SampleRatio: 0})
	require.NoError(t, err)
	defer func() {
		require.NoError(t, tp.Shutdown(context.Background()))
	}()

	_, span := tp.Tracer("test").Start(context.Background(), "unsampled")
	require.False(t, span.SpanContext().IsSampled())
	span.End()
}
