package scope

import (
	"context"

	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
)

var defaultManager = NewJobSynchronizationManager()

// DefaultManager returns the process-wide manager used by the package-level functions.
func DefaultManager() *JobSynchronizationManager {
	return defaultManager
}

// Register registers execution with the default manager.
func Register(ctx context.Context, execution *model.JobExecution) (context.Context, *JobContext, error) {
	return defaultManager.Register(ctx, execution)
}

// GetContext returns the current JobContext of the default manager.
func GetContext(ctx context.Context) (*JobContext, error) {
	return defaultManager.GetContext(ctx)
}

// Close closes the current registration of the default manager.
func Close(ctx context.Context) error {
	return defaultManager.Close(ctx)
}

// Release clears the calling task's stack in the default manager.
func Release(ctx context.Context) error {
	return defaultManager.Release(ctx)
}

// NewTask forks a task context against the default manager.
func NewTask(ctx context.Context) context.Context {
	return defaultManager.NewTask(ctx)
}
