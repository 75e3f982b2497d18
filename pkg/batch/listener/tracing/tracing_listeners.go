// Package tracing provides a job listener that records job boundaries as span events.
package tracing

import (
	"context"

	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	"github.com/forlulz/spring-batch/pkg/batch/core/metrics"
)

// TracingJobListener adds events to the job span the runner opened on ctx.
type TracingJobListener struct {
	tracer metrics.Tracer
}

func NewTracingJobListener(tracer metrics.Tracer) *TracingJobListener {
	return &TracingJobListener{tracer: tracer}
}

func (l *TracingJobListener) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {
	l.tracer.RecordEvent(ctx, "job.before", map[string]interface{}{
		"job.name":         jobExecution.JobName,
		"job.execution_id": jobExecution.ID,
	})
}

func (l *TracingJobListener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	l.tracer.RecordEvent(ctx, "job.after", map[string]interface{}{
		"job.name":         jobExecution.JobName,
		"job.execution_id": jobExecution.ID,
		"job.status":       jobExecution.GetStatus().String(),
		"job.failures":     len(jobExecution.GetFailures()),
	})
}
