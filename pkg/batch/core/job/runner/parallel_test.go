package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	"github.com/forlulz/spring-batch/pkg/batch/core/scope"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/exception"
)

func TestRunParallel_SharesScopedCollaborators(t *testing.T) {
	r, manager := newRunner(t)
	je := newExecution("import")

	var created atomic.Int32
	counter := scope.NewScoped(manager, "counter", func(*scope.JobContext) (*atomic.Int64, error) {
		created.Add(1)
		return &atomic.Int64{}, nil
	})

	var tasks sync.Map
	partitions := make([]Partition, 8)
	for i := range partitions {
		partitions[i] = func(ctx context.Context, jobCtx *scope.JobContext) error {
			id, ok := scope.TaskID(ctx)
			assert.True(t, ok)
			tasks.Store(id, struct{}{})
			assert.Same(t, je, jobCtx.JobExecution())
			c, err := counter.Get(ctx)
			if err != nil {
				return err
			}
			c.Add(1)
			return nil
		}
	}

	job := NewSimpleJob("import", func(ctx context.Context, _ *scope.JobContext) error {
		if err := r.RunParallel(ctx, 3, partitions...); err != nil {
			return err
		}
		c, err := counter.Get(ctx)
		if err != nil {
			return err
		}
		assert.Equal(t, int64(8), c.Load())
		return nil
	}, WithManager(manager))

	require.NoError(t, r.Run(context.Background(), job, je))
	assert.Equal(t, int32(1), created.Load())

	distinct := 0
	tasks.Range(func(_, _ any) bool { distinct++; return true })
	assert.Equal(t, 8, distinct)
	assert.Zero(t, manager.ActiveTasks())
}

func TestRunParallel_PropagatesFirstError(t *testing.T) {
	r, manager := newRunner(t)
	je := newExecution("import")
	broken := errors.New("broken partition")

	job := NewSimpleJob("import", func(ctx context.Context, _ *scope.JobContext) error {
		return r.RunParallel(ctx, 0,
			func(context.Context, *scope.JobContext) error { return nil },
			func(context.Context, *scope.JobContext) error { return broken },
			func(ctx context.Context, _ *scope.JobContext) error {
				<-ctx.Done()
				return nil
			},
		)
	}, WithManager(manager))

	err := r.Run(context.Background(), job, je)
	assert.ErrorIs(t, err, broken)
	assert.Contains(t, err.Error(), "import-partition-1")
	assert.Zero(t, manager.ActiveTasks())
	assert.Zero(t, manager.ActiveContexts())
}

func TestRunParallel_RequiresRegistration(t *testing.T) {
	manager := scope.NewJobSynchronizationManager()
	err := RunParallel(context.Background(), manager, nil, 0, func(context.Context, *scope.JobContext) error { return nil })
	assert.ErrorIs(t, err, exception.ErrNoContext)
}

func TestRunParallel_PanickingPartitionBecomesError(t *testing.T) {
	r, manager := newRunner(t)
	je := newExecution("import")

	job := NewSimpleJob("import", func(ctx context.Context, _ *scope.JobContext) error {
		return r.RunParallel(ctx, 0,
			func(context.Context, *scope.JobContext) error { return nil },
			func(context.Context, *scope.JobContext) error { panic("bad row") },
		)
	}, WithManager(manager))

	err := r.Run(context.Background(), job, je)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad row")
	assert.Contains(t, err.Error(), "import-partition-1")
	assert.Equal(t, model.BatchStatusFailed, je.GetStatus())
	assert.Zero(t, manager.ActiveTasks())
	assert.Zero(t, manager.ActiveContexts())
}
