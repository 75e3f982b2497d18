// Package metrics declares the observability ports of the batch core.
// Concrete backends live in pkg/batch/infrastructure/metrics.
package metrics

import (
	"context"
	"time"

	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
)

// Span represents a single unit of work in distributed tracing.
type Span interface {
	End()
}

// MetricRecorder records metrics about job executions and their scopes.
type MetricRecorder interface {
	// RecordJobStart records the start of a JobExecution.
	RecordJobStart(ctx context.Context, execution *model.JobExecution)
	// RecordJobEnd records the end of a JobExecution, including its status and duration.
	RecordJobEnd(ctx context.Context, execution *model.JobExecution)
	// RecordScopeOpened records a registration of jobName's execution on a task.
	RecordScopeOpened(ctx context.Context, jobName string)
	// RecordScopeClosed records the matching deregistration.
	RecordScopeClosed(ctx context.Context, jobName string)
	// RecordDuration records the execution time of a named operation.
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}
