package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	port "github.com/forlulz/spring-batch/pkg/batch/core/application/port"
	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	"github.com/forlulz/spring-batch/pkg/batch/core/listener"
	metrics "github.com/forlulz/spring-batch/pkg/batch/core/metrics"
	"github.com/forlulz/spring-batch/pkg/batch/core/scope"
	exception "github.com/forlulz/spring-batch/pkg/batch/support/util/exception"
	logger "github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

// SimpleJobRunner is an implementation of port.JobRunner. It registers the execution
// with the synchronization manager for the whole run, notifies listeners and
// records metrics and spans.
type SimpleJobRunner struct {
	manager   *scope.JobSynchronizationManager
	listeners *listener.CompositeJobListener
	recorder  metrics.MetricRecorder
	tracer    metrics.Tracer
}

// NewSimpleJobRunner creates an instance of SimpleJobRunner. Nil collaborators fall back
// to the default manager, an empty listener set and no-op observability.
func NewSimpleJobRunner(
	manager *scope.JobSynchronizationManager,
	listeners *listener.CompositeJobListener,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *SimpleJobRunner {
	if manager == nil {
		manager = scope.DefaultManager()
	}
	if listeners == nil {
		listeners, _ = listener.NewCompositeJobListener()
	}
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	if tracer == nil {
		tracer = metrics.NewNoOpTracer()
	}
	return &SimpleJobRunner{
		manager:   manager,
		listeners: listeners,
		recorder:  recorder,
		tracer:    tracer,
	}
}

// Listeners returns the composite notified around every run.
func (r *SimpleJobRunner) Listeners() *listener.CompositeJobListener {
	return r.listeners
}

// Run executes job for jobExecution. The execution stays registered until Run returns,
// including when the job or a listener panics; the panic is re-raised after the
// registration is closed.
func (r *SimpleJobRunner) Run(ctx context.Context, job port.Job, jobExecution *model.JobExecution) (err error) {
	if jobExecution == nil {
		return exception.NewInvalidArgumentError("job_runner", "cannot run a nil JobExecution")
	}
	if err := job.ValidateParameters(jobExecution.Parameters); err != nil {
		logger.Errorf("Job '%s' (Execution ID: %d): invalid parameters: %v", job.JobName(), jobExecution.ID, err)
		jobExecution.MarkAsFailed(err)
		return err
	}

	ctx, _, err = r.manager.Register(ctx, jobExecution)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := r.closeScope(ctx, jobExecution); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	ctx, finishSpan := r.tracer.StartJobSpan(ctx, jobExecution)
	defer finishSpan()

	defer func() {
		if p := recover(); p != nil {
			panicErr := exception.NewBatchErrorf("job_runner", "job '%s' panicked: %v", job.JobName(), p)
			logger.Errorf("Job '%s' (Execution ID: %d): %v", job.JobName(), jobExecution.ID, panicErr)
			jobExecution.MarkAsFailed(panicErr)
			r.tracer.RecordError(ctx, "job_runner", panicErr)
			r.afterJob(ctx, jobExecution)
			panic(p)
		}
	}()

	logger.Infof("Starting Job '%s' (Execution ID: %d).", job.JobName(), jobExecution.ID)
	r.recorder.RecordJobStart(ctx, jobExecution)
	if !jobExecution.GetStatus().IsFinished() {
		jobExecution.MarkAsStarted()
	}
	r.listeners.BeforeJob(ctx, jobExecution)

	runErr := job.Run(ctx, jobExecution, jobExecution.Parameters)
	switch {
	case runErr != nil && (errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded)):
		logger.Warnf("Job '%s' (Execution ID: %d) interrupted: %v", job.JobName(), jobExecution.ID, runErr)
		jobExecution.AddFailureException(runErr)
		jobExecution.MarkAsStopped()
		r.tracer.RecordError(ctx, "job_runner", runErr)
	case runErr != nil:
		if jobExecution.GetStatus().IsFinished() {
			logger.Warnf("JobRunner: Job execution finished with error, but status already set to %s.", jobExecution.GetStatus())
			jobExecution.AddFailureException(runErr)
		} else {
			jobExecution.MarkAsFailed(runErr)
		}
		r.tracer.RecordError(ctx, "job_runner", runErr)
	case !jobExecution.GetStatus().IsFinished():
		jobExecution.MarkAsCompleted()
	}

	r.afterJob(ctx, jobExecution)
	return runErr
}

func (r *SimpleJobRunner) afterJob(ctx context.Context, jobExecution *model.JobExecution) {
	if jobExecution.EndTime == nil {
		now := time.Now()
		jobExecution.EndTime = &now
	}
	r.listeners.AfterJob(ctx, jobExecution)
	r.recorder.RecordJobEnd(ctx, jobExecution)
	logger.Infof("Job '%s' (Execution ID: %d) finished. Final Status: %s, Exit Status: %s",
		jobExecution.JobName, jobExecution.ID, jobExecution.GetStatus(), jobExecution.GetExitStatus())
}

// closeScope closes the run's registration. Registrations left open by inner tasks are
// released so the execution never outlives its run.
func (r *SimpleJobRunner) closeScope(ctx context.Context, jobExecution *model.JobExecution) error {
	err := r.manager.Close(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, exception.ErrInnerScopeOpen) {
		logger.Errorf("Job execution %d: %v; releasing the task's registrations.", jobExecution.ID, err)
		if releaseErr := r.manager.Release(ctx); releaseErr != nil {
			return fmt.Errorf("%w; release: %v", err, releaseErr)
		}
	}
	return err
}

var _ port.JobRunner = (*SimpleJobRunner)(nil)
