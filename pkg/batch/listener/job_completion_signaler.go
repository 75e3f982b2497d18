// Package listener collects the stock job listeners.
package listener

import (
	"context"
	"sync"

	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

// JobCompletionSignaler closes a channel once the first job execution it observes ends.
type JobCompletionSignaler struct {
	// JobDoneChan is closed upon job completion.
	JobDoneChan chan struct{}
	once        sync.Once
}

// NewJobCompletionSignaler creates a signaler closing jobDoneChan.
func NewJobCompletionSignaler(jobDoneChan chan struct{}) *JobCompletionSignaler {
	return &JobCompletionSignaler{
		JobDoneChan: jobDoneChan,
	}
}

// BeforeJob does nothing.
func (l *JobCompletionSignaler) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {}

// AfterJob closes JobDoneChan. Later calls are no-ops.
func (l *JobCompletionSignaler) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	l.once.Do(func() {
		logger.Infof("JobCompletionSignaler: Job '%s' (ID: %d) completed. Closing JobDoneChan.", jobExecution.JobName, jobExecution.ID)
		close(l.JobDoneChan)
	})
}
