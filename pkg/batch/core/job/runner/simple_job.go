package runner

import (
	"context"
	"fmt"

	port "github.com/forlulz/spring-batch/pkg/batch/core/application/port"
	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	"github.com/forlulz/spring-batch/pkg/batch/core/scope"
	exception "github.com/forlulz/spring-batch/pkg/batch/support/util/exception"
	logger "github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

// JobBody is the work of a SimpleJob. jobCtx is the registration of the running execution.
type JobBody func(ctx context.Context, jobCtx *scope.JobContext) error

// SimpleJob runs a single body inside the job's scope.
type SimpleJob struct {
	id                 string
	name               string
	body               JobBody
	manager            *scope.JobSynchronizationManager
	requiredParameters []string
}

// Verify that SimpleJob implements the port.Job interface.
var _ port.Job = (*SimpleJob)(nil)

// SimpleJobOption configures a SimpleJob.
type SimpleJobOption func(*SimpleJob)

// WithRequiredParameters makes ValidateParameters reject parameters missing any of keys.
func WithRequiredParameters(keys ...string) SimpleJobOption {
	return func(j *SimpleJob) {
		j.requiredParameters = append(j.requiredParameters, keys...)
	}
}

// WithManager resolves the running JobContext from manager instead of the default manager.
func WithManager(manager *scope.JobSynchronizationManager) SimpleJobOption {
	return func(j *SimpleJob) {
		if manager != nil {
			j.manager = manager
		}
	}
}

// NewSimpleJob creates a job named name that runs body.
func NewSimpleJob(name string, body JobBody, opts ...SimpleJobOption) *SimpleJob {
	j := &SimpleJob{
		id:      model.NewID(),
		name:    name,
		body:    body,
		manager: scope.DefaultManager(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// ID returns the job ID.
func (j *SimpleJob) ID() string {
	return j.id
}

// JobName returns the job name.
func (j *SimpleJob) JobName() string {
	return j.name
}

// ValidateParameters checks that every required parameter is present.
func (j *SimpleJob) ValidateParameters(params model.JobParameters) error {
	logger.Debugf("Job '%s': Executing JobParameters validation. Parameters: %s", j.name, params.String())
	for _, key := range j.requiredParameters {
		if _, ok := params.Params[key]; !ok {
			return exception.NewBatchError(j.name, fmt.Sprintf("required parameter '%s' not found", key), exception.ErrInvalidArgument, false, false)
		}
	}
	return nil
}

// Run executes the body against the execution registered on ctx.
func (j *SimpleJob) Run(ctx context.Context, jobExecution *model.JobExecution, jobParameters model.JobParameters) error {
	select {
	case <-ctx.Done():
		logger.Warnf("Context cancelled before Job '%s' (Execution ID: %d) started: %v", j.name, jobExecution.ID, ctx.Err())
		return ctx.Err()
	default:
	}

	jobCtx, err := j.manager.GetContext(ctx)
	if err != nil {
		return err
	}
	if jobCtx.JobExecution() != jobExecution {
		return exception.NewBatchErrorf(j.name, "execution %d is not the current registration (%s)", jobExecution.ID, jobCtx.ID(), exception.ErrNoContext)
	}
	if j.body == nil {
		return nil
	}
	return j.body(ctx, jobCtx)
}
