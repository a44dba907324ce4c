package telemetry

import (
	"context"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// LogExporter writes finished spans to a zap logger. It stands in for a
// collector exporter in local runs.
type LogExporter struct {
	logger *zap.Logger
}

var _ sdktrace.SpanExporter = (*LogExporter)(nil)

// NewLogExporter returns an exporter logging through logger.
func NewLogExporter(logger *zap.Logger) *LogExporter {
	return &LogExporter{logger: logger.Named("trace")}
}

// ExportSpans implements sdktrace.SpanExporter.
func (e *LogExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		fields := []zap.Field{
			zap.String("trace_id", span.SpanContext().TraceID().String()),
			zap.String("span_id", span.SpanContext().SpanID().String()),
			zap.Duration("duration", span.EndTime().Sub(span.StartTime())),
			zap.String("status", span.Status().Code.String()),
		}
		if span.Parent().IsValid() {
			fields = append(fields, zap.String("parent_span_id", span.Parent().SpanID().String()))
		}
		for _, attr := range span.Attributes() {
			fields = append(fields, zap.String(string(attr.Key), attr.Value.Emit()))
		}
		e.logger.Debug(span.Name(), fields...)
	}
	return nil
}

// Shutdown implements sdktrace.SpanExporter.
func (e *LogExporter) Shutdown(context.Context) error {
	return nil
}
