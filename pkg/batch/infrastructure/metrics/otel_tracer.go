package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	metrics "github.com/forlulz/spring-batch/pkg/batch/core/metrics"
)

// InstrumentationName names the tracer and meter of the batch framework.
const InstrumentationName = "github.com/forlulz/spring-batch"

// OpenTelemetryTracer is an implementation of metrics.Tracer using OpenTelemetry.
type OpenTelemetryTracer struct {
	tracer trace.Tracer
}

// NewOpenTelemetryTracer creates a tracer backed by provider.
func NewOpenTelemetryTracer(provider trace.TracerProvider) *OpenTelemetryTracer {
	return &OpenTelemetryTracer{tracer: provider.Tracer(InstrumentationName)}
}

// StartJobSpan starts a new span for a JobExecution. The span status reflects the
// execution's status when the returned function is called.
func (t *OpenTelemetryTracer) StartJobSpan(ctx context.Context, execution *model.JobExecution) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "job "+execution.JobName, trace.WithAttributes(
		attribute.String("job.name", execution.JobName),
		attribute.Int64("job.execution_id", execution.ID),
	))
	return ctx, func() {
		status := execution.GetStatus()
		span.SetAttributes(
			attribute.String("job.status", status.String()),
			attribute.String("job.exit_status", execution.GetExitStatus().String()),
		)
		if status == model.BatchStatusFailed {
			span.SetStatus(codes.Error, "job failed")
		} else if status == model.BatchStatusCompleted {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// StartTaskSpan starts a child span for an inner task.
func (t *OpenTelemetryTracer) StartTaskSpan(ctx context.Context, name string) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, func() { span.End() }
}

// RecordError records err on the span in ctx and marks the span as failed.
func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithAttributes(attribute.String("module", module)))
	span.SetStatus(codes.Error, err.Error())
}

// RecordEvent records an event in the current span.
func (t *OpenTelemetryTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(toAttributes(attributes)...))
}

func toAttributes(values map[string]interface{}) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(values))
	for k, v := range values {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
	return attrs
}

var _ metrics.Tracer = (*OpenTelemetryTracer)(nil)
