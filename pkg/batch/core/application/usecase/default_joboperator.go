package usecase

import (
	"context"
	"fmt"

	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	repository "github.com/forlulz/spring-batch/pkg/batch/core/domain/repository"
	exception "github.com/forlulz/spring-batch/pkg/batch/support/util/exception"
	logger "github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

// DefaultJobOperator is the default implementation of the JobOperator interface.
type DefaultJobOperator struct {
	jobRepository repository.JobExecutionRepository
	jobLauncher   *SimpleJobLauncher
}

// NewDefaultJobOperator creates a new instance of DefaultJobOperator.
func NewDefaultJobOperator(repo repository.JobExecutionRepository, launcher *SimpleJobLauncher) *DefaultJobOperator {
	return &DefaultJobOperator{jobRepository: repo, jobLauncher: launcher}
}

func (o *DefaultJobOperator) load(ctx context.Context, executionID int64) (*model.JobExecution, error) {
	je, err := o.jobRepository.FindJobExecutionByID(ctx, executionID)
	if err != nil {
		return nil, exception.NewBatchError("job_operator", fmt.Sprintf("failed to load JobExecution (ID: %d)", executionID), err, false, false)
	}
	return je, nil
}

// Stop cancels a running execution. The runner marks it STOPPED once the job returns.
func (o *DefaultJobOperator) Stop(ctx context.Context, executionID int64) error {
	je, err := o.load(ctx, executionID)
	if err != nil {
		return err
	}
	if je.GetStatus().IsFinished() {
		return exception.NewBatchErrorf("job_operator", "JobExecution (ID: %d) already finished with status %s", executionID, je.GetStatus())
	}
	if !o.jobLauncher.cancel(executionID) {
		return exception.NewBatchErrorf("job_operator", "JobExecution (ID: %d) is not running in this process", executionID)
	}
	logger.Infof("JobOperator: stop requested for JobExecution (ID: %d).", executionID)
	return nil
}

// Abandon marks a stopped or failed execution ABANDONED so it can no longer be restarted.
func (o *DefaultJobOperator) Abandon(ctx context.Context, executionID int64) error {
	je, err := o.load(ctx, executionID)
	if err != nil {
		return err
	}
	if status := je.GetStatus(); status != model.BatchStatusFailed && status != model.BatchStatusStopped {
		return exception.NewBatchErrorf("job_operator", "JobExecution (ID: %d) cannot be abandoned (status: %s)", executionID, status)
	}
	je.MarkAsAbandoned()
	logger.Infof("JobOperator: JobExecution (ID: %d) abandoned.", executionID)
	return o.jobRepository.UpdateJobExecution(ctx, je)
}

// Restart launches a new execution of a failed or stopped one. The new execution reuses
// the parameters without applying the job's incrementer.
func (o *DefaultJobOperator) Restart(ctx context.Context, executionID int64) (*model.JobExecution, error) {
	prev, err := o.load(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if status := prev.GetStatus(); status != model.BatchStatusFailed && status != model.BatchStatusStopped {
		return nil, exception.NewBatchErrorf("job_operator", "JobExecution (ID: %d) is not restartable (status: %s)", executionID, status)
	}

	o.jobLauncher.mu.Lock()
	reg, ok := o.jobLauncher.jobs[prev.JobName]
	o.jobLauncher.mu.Unlock()
	if !ok {
		return nil, exception.NewConfigurationError("job_operator", fmt.Sprintf("no job registered under '%s'", prev.JobName))
	}

	next := model.NewJobExecution(model.NextExecutionID(), prev.JobName, prev.Parameters)
	next.ExecutionContext = prev.ExecutionContext.Copy()
	if _, err := o.jobLauncher.start(ctx, reg.job, next); err != nil {
		return nil, err
	}
	logger.Infof("JobOperator: JobExecution (ID: %d) restarted as %d.", executionID, next.ID)
	return next, nil
}

var _ JobOperator = (*DefaultJobOperator)(nil)
