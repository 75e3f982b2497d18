package usecase

import (
	"context"

	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
)

// JobLauncher launches a registered Job with JobParameters.
type JobLauncher interface {
	// Launch starts the named job asynchronously and returns its JobExecution.
	// The error reports a failure of the launch itself, not of the job. Launching
	// with the parameters of a running execution of the same job fails with
	// ErrJobExecutionAlreadyRunning.
	Launch(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error)
}

// JobOperator controls running and finished job executions.
type JobOperator interface {
	// Stop cancels the context of a running execution. Stopping is asynchronous.
	Stop(ctx context.Context, executionID int64) error
	// Abandon marks a stopped or failed execution as ABANDONED.
	Abandon(ctx context.Context, executionID int64) error
	// Restart launches a new execution of a stopped or failed one, with its parameters
	// and a copy of its ExecutionContext.
	Restart(ctx context.Context, executionID int64) (*model.JobExecution, error)
}

// JobExplorer queries job executions.
type JobExplorer interface {
	GetJobExecution(ctx context.Context, executionID int64) (*model.JobExecution, error)
	// GetJobExecutions returns the executions of jobName, latest first.
	GetJobExecutions(ctx context.Context, jobName string) ([]*model.JobExecution, error)
	// GetJobExecutionsByParameters returns the executions of jobName whose parameters include params.
	GetJobExecutionsByParameters(ctx context.Context, jobName string, params model.JobParameters) ([]*model.JobExecution, error)
	GetRunningJobExecutions(ctx context.Context) ([]*model.JobExecution, error)
	// GetJobNames returns the names of the registered jobs, sorted.
	GetJobNames(ctx context.Context) ([]string, error)
}
