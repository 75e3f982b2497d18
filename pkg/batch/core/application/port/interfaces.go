// Package port defines the core interfaces (ports) for the batch application.
// The job runner and listener wiring depend on these rather than on concrete types.
package port

import (
	"context"

	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
)

// JobExecutionListener is an interface for handling job execution events.
type JobExecutionListener interface {
	// BeforeJob is called just before a job execution starts.
	BeforeJob(ctx context.Context, jobExecution *model.JobExecution)
	// AfterJob is called after a job execution completes (regardless of success or failure).
	AfterJob(ctx context.Context, jobExecution *model.JobExecution)
}

// Job is the interface for an executable batch job.
type Job interface {
	// Run executes the job body. The execution is already registered with the
	// synchronization manager when Run is called.
	Run(ctx context.Context, jobExecution *model.JobExecution, jobParameters model.JobParameters) error
	// JobName returns the logical name of the job.
	JobName() string
	// ID returns the unique ID of the job definition.
	ID() string
	// ValidateParameters validates job parameters before job execution.
	ValidateParameters(params model.JobParameters) error
}

// JobRunner drives one JobExecution of a Job: scope registration, listener
// notification and status bookkeeping around Job.Run.
type JobRunner interface {
	Run(ctx context.Context, job Job, jobExecution *model.JobExecution) error
}

// ExpressionResolver resolves late-binding expressions such as
// #{jobParameters['key']} or #{jobExecutionContext['key']}.
type ExpressionResolver interface {
	// Resolve evaluates expression against an explicit execution.
	Resolve(ctx context.Context, expression string, jobExecution *model.JobExecution) (string, error)
	// ResolveCurrent evaluates expression against the execution registered on ctx's task.
	ResolveCurrent(ctx context.Context, expression string) (string, error)
}

// Notifier notifies external systems about job execution results.
type Notifier interface {
	NotifyJobCompletion(ctx context.Context, execution *model.JobExecution)
}

// JobParametersIncrementer derives the parameters of the next launch of a job.
type JobParametersIncrementer interface {
	GetNext(params model.JobParameters) model.JobParameters
}
