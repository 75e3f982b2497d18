// Package inmemory provides an in-memory implementation of the JobExecutionRepository
// interface, suitable for tests and processes that do not need persistence.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	"github.com/forlulz/spring-batch/pkg/batch/core/domain/repository"
)

// InMemoryJobRepository holds job executions in a map keyed by execution ID.
// Executions are stored by reference: the runner updates them in place.
type InMemoryJobRepository struct {
	jobExecutions map[int64]*model.JobExecution
	mu            sync.RWMutex
}

// NewInMemoryJobRepository creates an empty repository.
func NewInMemoryJobRepository() *InMemoryJobRepository {
	return &InMemoryJobRepository{
		jobExecutions: make(map[int64]*model.JobExecution),
	}
}

// Close always returns nil; the repository holds no external resources.
func (r *InMemoryJobRepository) Close() error {
	return nil
}

var _ repository.JobExecutionRepository = (*InMemoryJobRepository)(nil)

// SaveJobExecution persists a new JobExecution.
func (r *InMemoryJobRepository) SaveJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobExecutions[jobExecution.ID]; exists {
		return fmt.Errorf("JobExecution with ID %d: %w", jobExecution.ID, repository.ErrJobExecutionExists)
	}
	r.jobExecutions[jobExecution.ID] = jobExecution
	return nil
}

// UpdateJobExecution updates an existing JobExecution.
func (r *InMemoryJobRepository) UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobExecutions[jobExecution.ID]; !exists {
		return fmt.Errorf("JobExecution with ID %d: %w", jobExecution.ID, repository.ErrJobExecutionNotFound)
	}
	r.jobExecutions[jobExecution.ID] = jobExecution
	return nil
}

// FindJobExecutionByID finds a JobExecution by its ID.
func (r *InMemoryJobRepository) FindJobExecutionByID(ctx context.Context, id int64) (*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobExecution, ok := r.jobExecutions[id]
	if !ok {
		return nil, repository.ErrJobExecutionNotFound
	}
	return jobExecution, nil
}

// FindJobExecutionsByJobName returns the executions of jobName sorted by CreateTime,
// latest first. Executions created at the same instant are ordered by descending ID.
func (r *InMemoryJobRepository) FindJobExecutionsByJobName(ctx context.Context, jobName string) ([]*model.JobExecution, error) {
	return r.filter(func(je *model.JobExecution) bool { return je.JobName == jobName }), nil
}

// FindRunningJobExecutions returns the executions whose status is not final.
func (r *InMemoryJobRepository) FindRunningJobExecutions(ctx context.Context) ([]*model.JobExecution, error) {
	return r.filter(func(je *model.JobExecution) bool { return !je.GetStatus().IsFinished() }), nil
}

func (r *InMemoryJobRepository) filter(keep func(*model.JobExecution) bool) []*model.JobExecution {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var executions []*model.JobExecution
	for _, je := range r.jobExecutions {
		if keep(je) {
			executions = append(executions, je)
		}
	}
	sort.Slice(executions, func(i, j int) bool {
		if executions[i].CreateTime.Equal(executions[j].CreateTime) {
			return executions[i].ID > executions[j].ID
		}
		return executions[j].CreateTime.Before(executions[i].CreateTime)
	})
	return executions
}
