package metrics

import (
	"context"

	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
)

// Tracer integrates job executions with a tracing system.
type Tracer interface {
	// StartJobSpan starts a span for a JobExecution. Call the returned function, typically
	// in a defer, to end it.
	StartJobSpan(ctx context.Context, execution *model.JobExecution) (context.Context, func())
	// StartTaskSpan starts a child span for an inner task of a job, such as one partition
	// of a parallel run.
	StartTaskSpan(ctx context.Context, name string) (context.Context, func())
	// RecordError records err on the span in ctx.
	RecordError(ctx context.Context, module string, err error)
	// RecordEvent records a named event on the span in ctx.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
