// Package tracing installs the OpenTelemetry tracer provider. Finished
// spans are written to the zap logger at debug level.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// Init registers a global tracer provider for service and returns a
// function that flushes and stops it.
func Init(service, version string, log *zap.Logger) func(context.Context) error {
	res := resource.NewSchemaless(
		attribute.String("service.name", service),
		attribute.String("service.version", version),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(NewLogExporter(log)),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}

// LogExporter is a sdktrace.SpanExporter that logs spans.
type LogExporter struct {
	log *zap.Logger
}

// NewLogExporter returns an exporter writing to log.
func NewLogExporter(log *zap.Logger) *LogExporter {
	return &LogExporter{log: log}
}

func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		fields := []zap.Field{
			zap.String("trace_id", s.SpanContext().TraceID().String()),
			zap.String("span_id", s.SpanContext().SpanID().String()),
			zap.Duration("duration", s.EndTime().Sub(s.StartTime())),
			zap.String("status", s.Status().Code.String()),
		}
		for _, kv := range s.Attributes() {
			fields = append(fields, zap.String(string(kv.Key), kv.Value.Emit()))
		}
		e.log.Debug("span "+s.Name(), fields...)
	}
	return nil
}

func (e *LogExporter) Shutdown(ctx context.Context) error {
	return nil
}
