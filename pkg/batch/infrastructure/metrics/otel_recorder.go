package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	metrics "github.com/forlulz/spring-batch/pkg/batch/core/metrics"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/exception"
)

// OpenTelemetryRecorder records batch metrics through an OpenTelemetry meter.
type OpenTelemetryRecorder struct {
	jobStarted   otelmetric.Int64Counter
	jobEnded     otelmetric.Int64Counter
	jobDuration  otelmetric.Float64Histogram
	activeScopes otelmetric.Int64UpDownCounter
	opDuration   otelmetric.Float64Histogram
}

// NewOpenTelemetryRecorder creates the recorder's instruments on provider's meter.
func NewOpenTelemetryRecorder(provider otelmetric.MeterProvider) (*OpenTelemetryRecorder, error) {
	meter := provider.Meter(InstrumentationName)
	r := &OpenTelemetryRecorder{}
	var err error
	if r.jobStarted, err = meter.Int64Counter("batch.job.started",
		otelmetric.WithDescription("Batch job executions started.")); err != nil {
		return nil, wrapInstrumentError("batch.job.started", err)
	}
	if r.jobEnded, err = meter.Int64Counter("batch.job.ended",
		otelmetric.WithDescription("Batch job executions ended, by final status.")); err != nil {
		return nil, wrapInstrumentError("batch.job.ended", err)
	}
	if r.jobDuration, err = meter.Float64Histogram("batch.job.duration",
		otelmetric.WithUnit("s"),
		otelmetric.WithDescription("Duration of batch job executions.")); err != nil {
		return nil, wrapInstrumentError("batch.job.duration", err)
	}
	if r.activeScopes, err = meter.Int64UpDownCounter("batch.job.scope.active",
		otelmetric.WithDescription("Job registrations currently open across all tasks.")); err != nil {
		return nil, wrapInstrumentError("batch.job.scope.active", err)
	}
	if r.opDuration, err = meter.Float64Histogram("batch.operation.duration",
		otelmetric.WithUnit("s"),
		otelmetric.WithDescription("Duration of named batch operations.")); err != nil {
		return nil, wrapInstrumentError("batch.operation.duration", err)
	}
	return r, nil
}

func wrapInstrumentError(name string, err error) error {
	return exception.NewBatchError(moduleName, "failed to create instrument "+name, err, false, false)
}

func (r *OpenTelemetryRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {
	r.jobStarted.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("job.name", execution.JobName)))
}

func (r *OpenTelemetryRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	attrs := otelmetric.WithAttributes(
		attribute.String("job.name", execution.JobName),
		attribute.String("job.status", execution.GetStatus().String()),
	)
	r.jobEnded.Add(ctx, 1, attrs)
	if execution.EndTime != nil {
		r.jobDuration.Record(ctx, execution.EndTime.Sub(execution.StartTime).Seconds(), attrs)
	}
}

func (r *OpenTelemetryRecorder) RecordScopeOpened(ctx context.Context, jobName string) {
	r.activeScopes.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("job.name", jobName)))
}

func (r *OpenTelemetryRecorder) RecordScopeClosed(ctx context.Context, jobName string) {
	r.activeScopes.Add(ctx, -1, otelmetric.WithAttributes(attribute.String("job.name", jobName)))
}

// RecordDuration records duration with every tag as an attribute.
func (r *OpenTelemetryRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	attrs := make([]attribute.KeyValue, 0, len(tags)+1)
	attrs = append(attrs, attribute.String("name", name))
	for k, v := range tags {
		attrs = append(attrs, attribute.String(k, v))
	}
	r.opDuration.Record(ctx, duration.Seconds(), otelmetric.WithAttributes(attrs...))
}

var _ metrics.MetricRecorder = (*OpenTelemetryRecorder)(nil)
