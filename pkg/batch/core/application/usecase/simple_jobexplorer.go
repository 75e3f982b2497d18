package usecase

import (
	"context"

	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	repository "github.com/forlulz/spring-batch/pkg/batch/core/domain/repository"
)

// SimpleJobExplorer answers queries from the repository and the launcher's job registry.
type SimpleJobExplorer struct {
	jobRepository repository.JobExecutionRepository
	jobLauncher   *SimpleJobLauncher
}

// NewSimpleJobExplorer creates a new instance of SimpleJobExplorer.
func NewSimpleJobExplorer(repo repository.JobExecutionRepository, launcher *SimpleJobLauncher) *SimpleJobExplorer {
	return &SimpleJobExplorer{jobRepository: repo, jobLauncher: launcher}
}

func (e *SimpleJobExplorer) GetJobExecution(ctx context.Context, executionID int64) (*model.JobExecution, error) {
	return e.jobRepository.FindJobExecutionByID(ctx, executionID)
}

func (e *SimpleJobExplorer) GetJobExecutions(ctx context.Context, jobName string) ([]*model.JobExecution, error) {
	return e.jobRepository.FindJobExecutionsByJobName(ctx, jobName)
}

// GetJobExecutionsByParameters returns the executions of jobName whose parameters
// contain every entry of params, latest first. Numbers match by value, so an int
// parameter finds an execution read back from storage as float64.
func (e *SimpleJobExplorer) GetJobExecutionsByParameters(ctx context.Context, jobName string, params model.JobParameters) ([]*model.JobExecution, error) {
	executions, err := e.jobRepository.FindJobExecutionsByJobName(ctx, jobName)
	if err != nil {
		return nil, err
	}
	matched := make([]*model.JobExecution, 0, len(executions))
	for _, je := range executions {
		if je.Parameters.Contains(params) {
			matched = append(matched, je)
		}
	}
	return matched, nil
}

func (e *SimpleJobExplorer) GetRunningJobExecutions(ctx context.Context) ([]*model.JobExecution, error) {
	return e.jobRepository.FindRunningJobExecutions(ctx)
}

func (e *SimpleJobExplorer) GetJobNames(ctx context.Context) ([]string, error) {
	return e.jobLauncher.JobNames(), nil
}

var _ JobExplorer = (*SimpleJobExplorer)(nil)
