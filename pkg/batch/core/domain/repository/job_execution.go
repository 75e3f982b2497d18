// Package repository declares the persistence port for job executions.
package repository

import (
	"context"
	"errors"

	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/exception"
)

var (
	// ErrJobExecutionNotFound is the error returned when a JobExecution is not found.
	ErrJobExecutionNotFound = errors.New("job execution not found")
	// ErrJobExecutionExists is returned when saving an execution whose ID is already stored.
	ErrJobExecutionExists = errors.New("job execution already exists")
)

func init() {
	exception.RegisterErrorType("ErrJobExecutionNotFound", ErrJobExecutionNotFound)
	exception.RegisterErrorType("ErrJobExecutionExists", ErrJobExecutionExists)
}

// JobExecutionRepository stores job executions launched in this process.
type JobExecutionRepository interface {
	// SaveJobExecution persists a new JobExecution.
	SaveJobExecution(ctx context.Context, jobExecution *model.JobExecution) error
	// UpdateJobExecution replaces the stored state of an existing JobExecution.
	UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error
	// FindJobExecutionByID finds a JobExecution by its ID.
	FindJobExecutionByID(ctx context.Context, executionID int64) (*model.JobExecution, error)
	// FindJobExecutionsByJobName returns the executions of jobName, latest first.
	FindJobExecutionsByJobName(ctx context.Context, jobName string) ([]*model.JobExecution, error)
	// FindRunningJobExecutions returns the executions that have not finished.
	FindRunningJobExecutions(ctx context.Context) ([]*model.JobExecution, error)
	// Close releases resources used by the repository.
	Close() error
}
