package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	port "github.com/forlulz/spring-batch/pkg/batch/core/application/port"
	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	repository "github.com/forlulz/spring-batch/pkg/batch/core/domain/repository"
	"github.com/forlulz/spring-batch/pkg/batch/core/scope"
	exception "github.com/forlulz/spring-batch/pkg/batch/support/util/exception"
	logger "github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

const moduleName = "job_launcher"

type registeredJob struct {
	job         port.Job
	incrementer port.JobParametersIncrementer
}

// ErrJobExecutionAlreadyRunning is returned when a job is launched with the
// parameters of one of its executions still running in this launcher.
var ErrJobExecutionAlreadyRunning = errors.New("job execution already running")

func init() {
	exception.RegisterErrorType("ErrJobExecutionAlreadyRunning", ErrJobExecutionAlreadyRunning)
}

// activeExecution tracks a launched execution until its runner returns.
type activeExecution struct {
	execution *model.JobExecution
	// paramsHash identifies the launch parameters of execution.
	paramsHash string
	cancel     context.CancelFunc
	done   chan struct{}
	err    error
}

// SimpleJobLauncher runs registered jobs on their own goroutine and task.
type SimpleJobLauncher struct {
	jobRepository repository.JobExecutionRepository
	jobRunner     port.JobRunner

	mu     sync.Mutex
	jobs   map[string]registeredJob
	active map[int64]*activeExecution
	wg     sync.WaitGroup
}

// NewSimpleJobLauncher creates a new SimpleJobLauncher.
func NewSimpleJobLauncher(repo repository.JobExecutionRepository, runner port.JobRunner) *SimpleJobLauncher {
	return &SimpleJobLauncher{
		jobRepository: repo,
		jobRunner:     runner,
		jobs:          make(map[string]registeredJob),
		active:        make(map[int64]*activeExecution),
	}
}

// RegisterJob makes job launchable under its name. A non-nil incrementer derives the
// parameters of every launch from the caller's.
func (l *SimpleJobLauncher) RegisterJob(job port.Job, incrementer port.JobParametersIncrementer) error {
	if job == nil {
		return exception.NewInvalidArgumentError(moduleName, "cannot register a nil job")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.jobs[job.JobName()]; exists {
		return exception.NewConfigurationError(moduleName, fmt.Sprintf("job '%s' is already registered", job.JobName()))
	}
	l.jobs[job.JobName()] = registeredJob{job: job, incrementer: incrementer}
	logger.Debugf("Job '%s' registered with JobLauncher.", job.JobName())
	return nil
}

// JobNames returns the registered job names, sorted.
func (l *SimpleJobLauncher) JobNames() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.jobs))
	for name := range l.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Launch starts jobName asynchronously. The job runs on a task detached from any
// registration on ctx; cancelling ctx stops it.
func (l *SimpleJobLauncher) Launch(ctx context.Context, jobName string, jobParameters model.JobParameters) (*model.JobExecution, error) {
	jobExecution, _, err := l.launch(ctx, jobName, jobParameters)
	return jobExecution, err
}

func (l *SimpleJobLauncher) launch(ctx context.Context, jobName string, jobParameters model.JobParameters) (*model.JobExecution, *activeExecution, error) {
	l.mu.Lock()
	reg, ok := l.jobs[jobName]
	l.mu.Unlock()
	if !ok {
		return nil, nil, exception.NewConfigurationError(moduleName, fmt.Sprintf("no job registered under '%s'", jobName))
	}

	if reg.incrementer != nil {
		jobParameters = reg.incrementer.GetNext(jobParameters)
	}
	if err := reg.job.ValidateParameters(jobParameters); err != nil {
		return nil, nil, exception.NewBatchError(moduleName, "JobParameters validation error", err, false, false)
	}

	jobExecution := model.NewJobExecution(model.NextExecutionID(), jobName, jobParameters)
	active, err := l.start(ctx, reg.job, jobExecution)
	if err != nil {
		return nil, nil, err
	}
	return jobExecution, active, nil
}

func (l *SimpleJobLauncher) start(ctx context.Context, job port.Job, jobExecution *model.JobExecution) (*activeExecution, error) {
	paramsHash, err := jobExecution.Parameters.Hash()
	if err != nil {
		return nil, err
	}
	jobCtx, cancel := context.WithCancel(scope.Detach(ctx))
	active := &activeExecution{execution: jobExecution, paramsHash: paramsHash, cancel: cancel, done: make(chan struct{})}

	l.mu.Lock()
	for id, other := range l.active {
		if other.execution.JobName == jobExecution.JobName && other.paramsHash == paramsHash {
			l.mu.Unlock()
			cancel()
			return nil, exception.NewBatchError(moduleName,
				fmt.Sprintf("job '%s' is already running with the same parameters (Execution ID: %d)", jobExecution.JobName, id),
				ErrJobExecutionAlreadyRunning, false, false)
		}
	}
	l.active[jobExecution.ID] = active
	l.mu.Unlock()

	if err := l.jobRepository.SaveJobExecution(ctx, jobExecution); err != nil {
		saveErr := exception.NewBatchError(moduleName, "failed to save JobExecution", err, false, false)
		l.mu.Lock()
		delete(l.active, jobExecution.ID)
		l.mu.Unlock()
		cancel()
		active.err = saveErr
		close(active.done)
		return nil, saveErr
	}
	jobExecution.CancelFunc = cancel

	logger.Infof("Launching Job '%s' (Execution ID: %d). Parameters: %s", job.JobName(), jobExecution.ID, jobExecution.Parameters.String())
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer close(active.done)
		defer cancel()

		active.err = l.runJob(jobCtx, job, jobExecution)
		if err := l.jobRepository.UpdateJobExecution(context.Background(), jobExecution); err != nil {
			logger.Errorf("Failed to update JobExecution (ID: %d): %v", jobExecution.ID, err)
		}

		l.mu.Lock()
		delete(l.active, jobExecution.ID)
		l.mu.Unlock()
	}()
	return active, nil
}

// runJob runs job and turns a panic of the job or of a listener into a failed execution.
func (l *SimpleJobLauncher) runJob(ctx context.Context, job port.Job, jobExecution *model.JobExecution) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = exception.NewBatchErrorf(moduleName, "job '%s' (Execution ID: %d) panicked: %v", job.JobName(), jobExecution.ID, p)
			logger.Errorf("%v", err)
			if !jobExecution.GetStatus().IsFinished() {
				jobExecution.MarkAsFailed(err)
			}
		}
	}()
	return l.jobRunner.Run(ctx, job, jobExecution)
}

// Wait blocks until the execution launched under executionID finished or ctx is done,
// and returns the error the job returned. Executions that already finished return nil.
func (l *SimpleJobLauncher) Wait(ctx context.Context, executionID int64) error {
	l.mu.Lock()
	active, ok := l.active[executionID]
	l.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-active.done:
		return active.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run launches jobName and waits for it to finish.
func (l *SimpleJobLauncher) Run(ctx context.Context, jobName string, jobParameters model.JobParameters) (*model.JobExecution, error) {
	jobExecution, active, err := l.launch(ctx, jobName, jobParameters)
	if err != nil {
		return nil, err
	}
	select {
	case <-active.done:
		return jobExecution, active.err
	case <-ctx.Done():
		return jobExecution, ctx.Err()
	}
}

// cancel cancels a running execution. It reports whether the execution was running.
func (l *SimpleJobLauncher) cancel(executionID int64) bool {
	l.mu.Lock()
	active, ok := l.active[executionID]
	l.mu.Unlock()
	if ok {
		active.cancel()
	}
	return ok
}

// Shutdown cancels every running execution and waits for their runners to return.
func (l *SimpleJobLauncher) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	for id, active := range l.active {
		logger.Warnf("Stopping JobExecution (ID: %d) on shutdown.", id)
		active.cancel()
	}
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ JobLauncher = (*SimpleJobLauncher)(nil)
