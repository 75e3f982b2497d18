package scope

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/forlulz/spring-batch/pkg/batch/core/config"
	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/exception"
)

const taskCount = 12

func newExecution(id int64) *model.JobExecution {
	return model.NewJobExecution(id, "scopeTestJob", model.NewJobParameters())
}

// fooReader resolves the "foo" entry of the execution it is scoped to.
func fooReader(m *JobSynchronizationManager) *Scoped[string] {
	return NewScoped(m, "fooReader", func(jc *JobContext) (string, error) {
		v, ok := jc.ExecutionContext().GetString("foo")
		if !ok {
			return "", errors.New("foo not set")
		}
		return v, nil
	})
}

func TestRegister_NilExecution(t *testing.T) {
	m := NewJobSynchronizationManager()

	_, jc, err := m.Register(context.Background(), nil)

	require.Error(t, err)
	assert.Nil(t, jc)
	assert.ErrorIs(t, err, exception.ErrInvalidArgument)
	assert.Equal(t, 0, m.ActiveTasks())
}

func TestGetContext_NoRegistration(t *testing.T) {
	m := NewJobSynchronizationManager()

	_, err := m.GetContext(context.Background())
	assert.ErrorIs(t, err, exception.ErrNoContext)

	ctx, _, err := m.Register(context.Background(), newExecution(1))
	require.NoError(t, err)
	require.NoError(t, m.Close(ctx))

	_, err = m.GetContext(ctx)
	assert.ErrorIs(t, err, exception.ErrNoContext)
}

func TestRegister_BindsExecutionContext(t *testing.T) {
	m := NewJobSynchronizationManager()
	je := newExecution(7)
	je.ExecutionContext.Put("foo", "bar")

	ctx, jc, err := m.Register(context.Background(), je)
	require.NoError(t, err)
	defer m.Close(ctx)

	assert.Same(t, je, jc.JobExecution())
	assert.Equal(t, "jobExecution#7", jc.ID())
	assert.Equal(t, map[string]interface{}{"foo": "bar"}, jc.JobExecutionContext())

	jc.ExecutionContext().Put("baz", 1)
	v, ok := je.ExecutionContext.Get("baz")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	current, err := m.GetContext(ctx)
	require.NoError(t, err)
	assert.Same(t, jc, current)
}

func TestRegister_NestedIsLIFO(t *testing.T) {
	m := NewJobSynchronizationManager()
	outer, inner := newExecution(1), newExecution(2)

	ctx, outerCtx, err := m.Register(context.Background(), outer)
	require.NoError(t, err)
	ctx, innerCtx, err := m.Register(ctx, inner)
	require.NoError(t, err)
	assert.NotSame(t, outerCtx, innerCtx)
	assert.Equal(t, 2, m.Depth(ctx))

	current, err := m.GetContext(ctx)
	require.NoError(t, err)
	assert.Same(t, innerCtx, current)

	require.NoError(t, m.Close(ctx))
	current, err = m.GetContext(ctx)
	require.NoError(t, err)
	assert.Same(t, outerCtx, current)

	require.NoError(t, m.Close(ctx))
	assert.Equal(t, 0, m.Depth(ctx))
	assert.Equal(t, 0, m.ActiveTasks())
	assert.Equal(t, 0, m.ActiveContexts())
}

func TestRegister_SameExecutionTwiceSharesContext(t *testing.T) {
	m := NewJobSynchronizationManager()
	je := newExecution(3)

	ctx, first, err := m.Register(context.Background(), je)
	require.NoError(t, err)
	ctx, second, err := m.Register(ctx, je)
	require.NoError(t, err)
	assert.Same(t, first, second)

	require.NoError(t, m.Close(ctx))
	assert.False(t, first.IsClosed())
	require.NoError(t, m.Close(ctx))
	assert.True(t, first.IsClosed())
}

func TestClose_Unbalanced(t *testing.T) {
	t.Run("error policy", func(t *testing.T) {
		m := NewJobSynchronizationManager()
		assert.ErrorIs(t, m.Close(context.Background()), exception.ErrUnbalancedClose)

		ctx, _, err := m.Register(context.Background(), newExecution(1))
		require.NoError(t, err)
		require.NoError(t, m.Close(ctx))
		assert.ErrorIs(t, m.Close(ctx), exception.ErrUnbalancedClose)
	})

	t.Run("ignore policy", func(t *testing.T) {
		m := NewJobSynchronizationManager(WithUnbalancedClosePolicy(config.UnbalancedClosePolicyIgnore))
		assert.NoError(t, m.Close(context.Background()))

		ctx, _, err := m.Register(context.Background(), newExecution(1))
		require.NoError(t, err)
		require.NoError(t, m.Close(ctx))
		assert.NoError(t, m.Close(ctx))
	})

	t.Run("policy is case-insensitive", func(t *testing.T) {
		m := NewJobSynchronizationManager(WithUnbalancedClosePolicy("Ignore"))
		assert.NoError(t, m.Close(context.Background()))
	})

	t.Run("unknown policy falls back to error", func(t *testing.T) {
		m := NewJobSynchronizationManager(WithUnbalancedClosePolicy("lenient"))
		assert.ErrorIs(t, m.Close(context.Background()), exception.ErrUnbalancedClose)
	})
}

func TestClose_OuterWithInnerOpenFails(t *testing.T) {
	m := NewJobSynchronizationManager()
	je := newExecution(10)

	ctx, _, err := m.Register(context.Background(), je)
	require.NoError(t, err)

	childCtx, _, err := m.Register(m.NewTask(ctx), je)
	require.NoError(t, err)

	err = m.Close(ctx)
	assert.ErrorIs(t, err, exception.ErrInnerScopeOpen)
	assert.Equal(t, 1, m.Depth(ctx), "a refused close leaves the stack untouched")

	require.NoError(t, m.Close(childCtx))
	require.NoError(t, m.Close(ctx))
	assert.Equal(t, 0, m.ActiveContexts())
}

func TestClose_NestedForksCountOnce(t *testing.T) {
	m := NewJobSynchronizationManager()

	ctx, _, err := m.Register(context.Background(), newExecution(1))
	require.NoError(t, err)

	child := m.NewTask(ctx)
	child, _, err = m.Register(child, newExecution(2))
	require.NoError(t, err)
	child, _, err = m.Register(child, newExecution(3))
	require.NoError(t, err)

	require.NoError(t, m.Close(child))
	assert.ErrorIs(t, m.Close(ctx), exception.ErrInnerScopeOpen)
	require.NoError(t, m.Close(child))
	require.NoError(t, m.Close(ctx))
}

func TestRegister_ForkedTaskAfterParentClosedFails(t *testing.T) {
	m := NewJobSynchronizationManager()
	je := newExecution(11)

	ctx, parentCtx, err := m.Register(context.Background(), je)
	require.NoError(t, err)
	child := m.NewTask(ctx)

	require.NoError(t, m.Close(ctx))
	assert.True(t, parentCtx.IsClosed())

	_, jc, err := m.Register(child, je)
	assert.ErrorIs(t, err, exception.ErrNoContext)
	assert.Nil(t, jc)
	assert.Equal(t, 0, m.ActiveTasks())
	assert.Equal(t, 0, m.ActiveContexts())
}

func TestClose_RacesWithForkedRegister(t *testing.T) {
	m := NewJobSynchronizationManager()
	for i := int64(1); i <= 200; i++ {
		je := newExecution(i)
		ctx, _, err := m.Register(context.Background(), je)
		require.NoError(t, err)
		child := m.NewTask(ctx)

		var childCtx context.Context
		var registerErr error
		done := make(chan struct{})
		go func() {
			defer close(done)
			childCtx, _, registerErr = m.Register(child, je)
		}()
		closeErr := m.Close(ctx)
		<-done

		if closeErr == nil {
			require.ErrorIs(t, registerErr, exception.ErrNoContext, "iteration %d", i)
			continue
		}
		require.ErrorIs(t, closeErr, exception.ErrInnerScopeOpen, "iteration %d", i)
		require.NoError(t, registerErr, "iteration %d", i)
		require.NoError(t, m.Close(childCtx))
		require.NoError(t, m.Close(ctx))
	}
	assert.Equal(t, 0, m.ActiveTasks())
	assert.Equal(t, 0, m.ActiveContexts())
}

func TestRelease(t *testing.T) {
	m := NewJobSynchronizationManager()
	ctx := context.Background()
	var err error
	for i := int64(1); i <= 3; i++ {
		ctx, _, err = m.Register(ctx, newExecution(i))
		require.NoError(t, err)
	}
	require.Equal(t, 3, m.Depth(ctx))

	require.NoError(t, m.Release(ctx))

	assert.Equal(t, 0, m.Depth(ctx))
	assert.Equal(t, 0, m.ActiveTasks())
	assert.Equal(t, 0, m.ActiveContexts())
	_, err = m.GetContext(ctx)
	assert.ErrorIs(t, err, exception.ErrNoContext)

	// The task can be reused after a release.
	ctx, _, err = m.Register(ctx, newExecution(4))
	require.NoError(t, err)
	assert.Equal(t, 1, m.Depth(ctx))
	require.NoError(t, m.Close(ctx))
}

func TestRelease_UnblocksOuterClose(t *testing.T) {
	m := NewJobSynchronizationManager()

	ctx, _, err := m.Register(context.Background(), newExecution(1))
	require.NoError(t, err)
	child, _, err := m.Register(m.NewTask(ctx), newExecution(2))
	require.NoError(t, err)

	require.NoError(t, m.Release(child))
	assert.NoError(t, m.Close(ctx))
}

func TestReleaseAll(t *testing.T) {
	m := NewJobSynchronizationManager()
	var destroyed int
	for i := int64(1); i <= 3; i++ {
		_, jc, err := m.Register(context.Background(), newExecution(i))
		require.NoError(t, err)
		jc.RegisterDestructionCallback("counter", func() error {
			destroyed++
			return nil
		})
	}
	require.Equal(t, 3, m.ActiveTasks())

	require.NoError(t, m.ReleaseAll())

	assert.Equal(t, 0, m.ActiveTasks())
	assert.Equal(t, 0, m.ActiveContexts())
	assert.Equal(t, 3, destroyed)
}

func TestClose_RunsDestructionCallbacksOnLastRelease(t *testing.T) {
	m := NewJobSynchronizationManager()
	je := newExecution(5)
	var order []string

	ctx, jc, err := m.Register(context.Background(), je)
	require.NoError(t, err)
	jc.RegisterDestructionCallback("first", func() error {
		order = append(order, "first")
		return nil
	})
	jc.RegisterDestructionCallback("second", func() error {
		order = append(order, "second")
		return errors.New("boom")
	})

	other, _, err := m.Register(context.Background(), je)
	require.NoError(t, err)
	require.NoError(t, m.Close(other))
	assert.Empty(t, order)

	err = m.Close(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, []string{"second", "first"}, order)
	assert.True(t, jc.IsClosed())
}

func TestConcurrentTasks_DistinctExecutions(t *testing.T) {
	m := NewJobSynchronizationManager()
	reader := fooReader(m)

	var g errgroup.Group
	for i := 0; i < taskCount; i++ {
		i := i
		g.Go(func() error {
			je := newExecution(int64(100 + i))
			want := fmt.Sprintf("foo%d", i)
			je.ExecutionContext.Put("foo", want)

			ctx, _, err := m.Register(context.Background(), je)
			if err != nil {
				return err
			}
			defer m.Close(ctx)

			got, err := reader.Get(ctx)
			if err != nil {
				return err
			}
			if got != want {
				return fmt.Errorf("task %d resolved %q, want %q", i, got, want)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 0, m.ActiveTasks())
	assert.Equal(t, 0, m.ActiveContexts())
}

func TestConcurrentTasks_SharedExecution(t *testing.T) {
	m := NewJobSynchronizationManager()
	reader := fooReader(m)
	je := newExecution(200)
	je.ExecutionContext.Put("foo", "foo")

	ctx, _, err := m.Register(context.Background(), je)
	require.NoError(t, err)
	outerValue, err := reader.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "foo", outerValue)

	var g errgroup.Group
	for i := 0; i < taskCount; i++ {
		i := i
		task := m.NewTask(ctx)
		g.Go(func() error {
			taskCtx, jc, err := m.Register(task, je)
			if err != nil {
				return err
			}
			defer m.Close(taskCtx)

			jc.ExecutionContext().Put("foo", fmt.Sprintf("foo%d", i))
			got, err := reader.Get(taskCtx)
			if err != nil {
				return err
			}
			if got != "foo" {
				return fmt.Errorf("task %d resolved %q, want the shared value", i, got)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.NoError(t, m.Close(ctx))
	assert.Equal(t, 0, m.ActiveTasks())
	assert.Equal(t, 0, m.ActiveContexts())
}

func TestConcurrentTasks_SharedExecutionSequencedWrites(t *testing.T) {
	m := NewJobSynchronizationManager()
	je := newExecution(300)

	ctx, _, err := m.Register(context.Background(), je)
	require.NoError(t, err)

	var seq sync.Mutex
	var g errgroup.Group
	for i := 0; i < taskCount; i++ {
		i := i
		task := m.NewTask(ctx)
		g.Go(func() error {
			seq.Lock()
			defer seq.Unlock()

			taskCtx, jc, err := m.Register(task, je)
			if err != nil {
				return err
			}
			defer m.Close(taskCtx)

			want := fmt.Sprintf("foo%d", i)
			jc.ExecutionContext().Put("foo", want)
			current, err := m.GetContext(taskCtx)
			if err != nil {
				return err
			}
			if got, _ := current.ExecutionContext().GetString("foo"); got != want {
				return fmt.Errorf("task %d saw %q, want %q", i, got, want)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.NoError(t, m.Close(ctx))
}

func TestConcurrentTasks_OuterCloseWaitsForInner(t *testing.T) {
	m := NewJobSynchronizationManager()
	reader := fooReader(m)
	je := newExecution(400)
	je.ExecutionContext.Put("foo", "foo")

	ctx, _, err := m.Register(context.Background(), je)
	require.NoError(t, err)

	registered := make(chan struct{}, taskCount)
	proceed := make(chan struct{})
	var g errgroup.Group
	for i := 0; i < taskCount; i++ {
		task := m.NewTask(ctx)
		g.Go(func() error {
			taskCtx, _, err := m.Register(task, je)
			if err != nil {
				return err
			}
			defer m.Close(taskCtx)
			registered <- struct{}{}
			<-proceed

			got, err := reader.Get(taskCtx)
			if err != nil {
				return err
			}
			if got != "foo" {
				return fmt.Errorf("resolved %q", got)
			}
			return nil
		})
	}
	for i := 0; i < taskCount; i++ {
		<-registered
	}

	assert.ErrorIs(t, m.Close(ctx), exception.ErrInnerScopeOpen)

	close(proceed)
	require.NoError(t, g.Wait())
	require.NoError(t, m.Close(ctx))
	assert.Equal(t, 0, m.ActiveTasks())
	assert.Equal(t, 0, m.ActiveContexts())
}

func TestTaskID(t *testing.T) {
	_, ok := TaskID(context.Background())
	assert.False(t, ok)

	m := NewJobSynchronizationManager()
	ctx, _, err := m.Register(context.Background(), newExecution(1))
	require.NoError(t, err)
	defer m.Close(ctx)

	id, ok := TaskID(ctx)
	assert.True(t, ok)
	assert.NotEmpty(t, id)

	childID, ok := TaskID(m.NewTask(ctx))
	assert.True(t, ok)
	assert.NotEqual(t, id, childID)
}

func TestDetach_StartsIndependentTask(t *testing.T) {
	m := NewJobSynchronizationManager()
	outer := model.NewJobExecution(model.NextExecutionID(), "outer", model.NewJobParameters())
	other := model.NewJobExecution(model.NextExecutionID(), "other", model.NewJobParameters())

	ctx, _, err := m.Register(context.Background(), outer)
	require.NoError(t, err)

	detached := Detach(ctx)
	_, ok := TaskID(detached)
	assert.False(t, ok)
	_, err = m.GetContext(detached)
	assert.ErrorIs(t, err, exception.ErrNoContext)

	innerCtx, _, err := m.Register(detached, other)
	require.NoError(t, err)

	// The detached registration does not hold the outer one open.
	require.NoError(t, m.Close(ctx))
	require.NoError(t, m.Close(innerCtx))
	assert.Zero(t, m.ActiveTasks())
}
