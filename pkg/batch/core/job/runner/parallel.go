package runner

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	metrics "github.com/forlulz/spring-batch/pkg/batch/core/metrics"
	"github.com/forlulz/spring-batch/pkg/batch/core/scope"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/exception"
	logger "github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

// Partition is one unit of work of a parallel run.
type Partition func(ctx context.Context, jobCtx *scope.JobContext) error

// RunParallel runs partitions concurrently, each on an inner task of the task registered
// on ctx. Every inner task registers the current execution, so scoped collaborators are
// shared with the outer task. It returns after all partitions finished; the first error
// cancels the context of the others. limit caps concurrency when positive.
func RunParallel(ctx context.Context, manager *scope.JobSynchronizationManager, tracer metrics.Tracer, limit int, partitions ...Partition) error {
	if manager == nil {
		manager = scope.DefaultManager()
	}
	if tracer == nil {
		tracer = metrics.NewNoOpTracer()
	}
	outer, err := manager.GetContext(ctx)
	if err != nil {
		return err
	}
	execution := outer.JobExecution()

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, partition := range partitions {
		task := manager.NewTask(gctx)
		name := fmt.Sprintf("%s-partition-%d", execution.JobName, i)
		g.Go(func() (err error) {
			taskCtx, jobCtx, err := manager.Register(task, execution)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := manager.Close(taskCtx); closeErr != nil && err == nil {
					err = closeErr
				}
			}()
			defer func() {
				if p := recover(); p != nil {
					err = exception.NewBatchErrorf("job_runner", "partition '%s' panicked: %v", name, p)
					logger.Errorf("%v", err)
				}
			}()

			taskCtx, finishSpan := tracer.StartTaskSpan(taskCtx, name)
			defer finishSpan()

			logger.Debugf("Partition '%s' started on task registered with %s.", name, jobCtx.ID())
			if err := partition(taskCtx, jobCtx); err != nil {
				tracer.RecordError(taskCtx, "job_runner", err)
				return fmt.Errorf("partition '%s': %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// RunParallel runs partitions with the runner's manager and tracer.
func (r *SimpleJobRunner) RunParallel(ctx context.Context, limit int, partitions ...Partition) error {
	return RunParallel(ctx, r.manager, r.tracer, limit, partitions...)
}
