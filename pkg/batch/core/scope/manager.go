// Package scope binds JobExecutions to the logical tasks that run them.
//
// A task is identified through its context.Context. Register returns a context
// carrying the task identity; the same context must be handed to GetContext and
// Close. Tasks started with NewTask are tracked as inner tasks of the
// registration that was current when they were forked, and that registration
// cannot be closed while any of them still holds a registration.
//
//	ctx, jc, err := manager.Register(ctx, execution)
//	if err != nil {
//		return err
//	}
//	defer manager.Close(ctx)
//
// A task that never calls Close keeps its registrations until Release or
// ReleaseAll.
package scope

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/forlulz/spring-batch/pkg/batch/core/config"
	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	"github.com/forlulz/spring-batch/pkg/batch/core/metrics"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/exception"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

const module = "scope"

// sharedContext is the JobContext of one execution with the number of live registrations.
type sharedContext struct {
	jobCtx *JobContext
	refs   int
}

// JobSynchronizationManager keeps a LIFO stack of JobContexts per task.
// Tasks only ever touch their own stack; the registry of stacks is a sync.Map keyed by task ID.
type JobSynchronizationManager struct {
	tasks sync.Map // task ID -> *taskStack

	mu       sync.Mutex
	contexts map[int64]*sharedContext

	unbalancedClosePolicy string
	recorder              metrics.MetricRecorder
}

// Option configures a JobSynchronizationManager.
type Option func(*JobSynchronizationManager)

// WithUnbalancedClosePolicy selects what Close does on a task with no registration.
// Matching is case-insensitive. Unknown values fall back to config.UnbalancedClosePolicyError.
func WithUnbalancedClosePolicy(policy string) Option {
	return func(m *JobSynchronizationManager) {
		switch strings.ToLower(strings.TrimSpace(policy)) {
		case config.UnbalancedClosePolicyIgnore:
			m.unbalancedClosePolicy = config.UnbalancedClosePolicyIgnore
		default:
			m.unbalancedClosePolicy = config.UnbalancedClosePolicyError
		}
	}
}

// WithMetricRecorder reports scope opens and closes to recorder.
func WithMetricRecorder(recorder metrics.MetricRecorder) Option {
	return func(m *JobSynchronizationManager) {
		if recorder != nil {
			m.recorder = recorder
		}
	}
}

// NewJobSynchronizationManager creates an empty manager.
func NewJobSynchronizationManager(opts ...Option) *JobSynchronizationManager {
	m := &JobSynchronizationManager{
		contexts:              make(map[int64]*sharedContext),
		unbalancedClosePolicy: config.UnbalancedClosePolicyError,
		recorder:              &metrics.NoOpMetricRecorder{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewTask returns a context for a new task forked from the task of ctx.
// Once the new task registers, the registration that was on top of the parent's
// stack at fork time cannot be closed until the task's registrations are closed.
// Registering after that parent registration was closed fails with a NoContextError.
func (m *JobSynchronizationManager) NewTask(ctx context.Context) context.Context {
	var parent *entry
	if ref, ok := taskFrom(ctx); ok {
		if stack := m.stackOf(ref.id); stack != nil {
			stack.mu.Lock()
			parent = stack.top()
			stack.mu.Unlock()
		}
	}
	child, _ := withTask(ctx, parent)
	return child
}

// Register pushes execution onto the stack of the task carried by ctx and returns the
// context to use for the matching Close together with the execution's JobContext.
// A ctx without a task identity starts a new task. Registering an execution that is
// already registered by any task, or another instance with the same ID, yields the
// same JobContext.
func (m *JobSynchronizationManager) Register(ctx context.Context, execution *model.JobExecution) (context.Context, *JobContext, error) {
	if execution == nil {
		return ctx, nil, exception.NewInvalidArgumentError(module, "cannot register a nil JobExecution")
	}
	ref, ok := taskFrom(ctx)
	if !ok {
		ctx, ref = withTask(ctx, nil)
	}

	jobCtx := m.acquire(execution)
	e := &entry{jobCtx: jobCtx}

	for {
		stack := m.loadOrCreateStack(ref.id)
		stack.mu.Lock()
		if stack.dead {
			stack.mu.Unlock()
			continue
		}
		if len(stack.entries) == 0 && ref.parent != nil {
			if !ref.parent.reserveInner() {
				stack.dead = true
				m.tasks.CompareAndDelete(ref.id, stack)
				stack.mu.Unlock()
				if err := m.releaseContext(jobCtx); err != nil {
					logger.Warnf("Releasing %s after a refused register: %v", jobCtx.ID(), err)
				}
				return ctx, nil, exception.NewNoContextError(module,
					fmt.Sprintf("task %s was forked from %s, which is already closed", ref.id, ref.parent.jobCtx.ID()))
			}
			e.countedAgainst = ref.parent
		}
		stack.entries = append(stack.entries, e)
		depth := len(stack.entries)
		stack.mu.Unlock()

		logger.Debugf("Registered %s on task %s (depth %d).", jobCtx.ID(), ref.id, depth)
		break
	}
	m.recorder.RecordScopeOpened(ctx, execution.JobName)
	return ctx, jobCtx, nil
}

// GetContext returns the JobContext on top of the calling task's stack.
func (m *JobSynchronizationManager) GetContext(ctx context.Context) (*JobContext, error) {
	ref, ok := taskFrom(ctx)
	if !ok {
		return nil, exception.NewNoContextError(module, "no task is bound to the context")
	}
	stack := m.stackOf(ref.id)
	if stack == nil {
		return nil, exception.NewNoContextError(module, fmt.Sprintf("task %s has no active registration", ref.id))
	}
	stack.mu.Lock()
	defer stack.mu.Unlock()
	top := stack.top()
	if top == nil {
		return nil, exception.NewNoContextError(module, fmt.Sprintf("task %s has no active registration", ref.id))
	}
	return top.jobCtx, nil
}

// Close pops the most recent registration of the calling task. When it was the last
// registration of its execution across all tasks, the JobContext is closed and the
// errors of its destruction callbacks are returned.
func (m *JobSynchronizationManager) Close(ctx context.Context) error {
	ref, ok := taskFrom(ctx)
	if !ok {
		return m.unbalancedClose("<none>")
	}
	stack := m.stackOf(ref.id)
	if stack == nil {
		return m.unbalancedClose(ref.id)
	}

	stack.mu.Lock()
	top := stack.top()
	if top == nil {
		stack.mu.Unlock()
		return m.unbalancedClose(ref.id)
	}
	if n, ok := top.seal(); !ok {
		stack.mu.Unlock()
		return exception.NewInnerScopeOpenError(module,
			fmt.Sprintf("cannot close %s on task %s: %d inner registration(s) still open", top.jobCtx.ID(), ref.id, n))
	}
	stack.entries[len(stack.entries)-1] = nil
	stack.entries = stack.entries[:len(stack.entries)-1]
	if len(stack.entries) == 0 {
		stack.dead = true
		m.tasks.CompareAndDelete(ref.id, stack)
	}
	stack.mu.Unlock()

	if top.countedAgainst != nil {
		top.countedAgainst.releaseInner()
	}
	logger.Debugf("Closed %s on task %s.", top.jobCtx.ID(), ref.id)
	m.recorder.RecordScopeClosed(ctx, top.jobCtx.JobName())
	return m.releaseContext(top.jobCtx)
}

// Release clears the calling task's stack regardless of nesting.
// Errors of destruction callbacks are aggregated.
func (m *JobSynchronizationManager) Release(ctx context.Context) error {
	ref, ok := taskFrom(ctx)
	if !ok {
		return nil
	}
	stack := m.stackOf(ref.id)
	if stack == nil {
		return nil
	}
	stack.mu.Lock()
	entries := stack.entries
	stack.entries = nil
	stack.dead = true
	m.tasks.CompareAndDelete(ref.id, stack)
	stack.mu.Unlock()

	if len(entries) > 0 {
		logger.Warnf("Releasing %d open registration(s) of task %s.", len(entries), ref.id)
	}
	return m.dropEntries(ctx, entries)
}

// ReleaseAll clears every task's stack and closes every JobContext.
func (m *JobSynchronizationManager) ReleaseAll() error {
	var errs *multierror.Error
	m.tasks.Range(func(key, value any) bool {
		stack := value.(*taskStack)
		stack.mu.Lock()
		entries := stack.entries
		stack.entries = nil
		stack.dead = true
		m.tasks.CompareAndDelete(key, stack)
		stack.mu.Unlock()
		if err := m.dropEntries(context.Background(), entries); err != nil {
			errs = multierror.Append(errs, err)
		}
		return true
	})
	return errs.ErrorOrNil()
}

// ActiveTasks returns the number of tasks holding at least one registration.
func (m *JobSynchronizationManager) ActiveTasks() int {
	n := 0
	m.tasks.Range(func(_, value any) bool {
		stack := value.(*taskStack)
		stack.mu.Lock()
		if len(stack.entries) > 0 {
			n++
		}
		stack.mu.Unlock()
		return true
	})
	return n
}

// ActiveContexts returns the number of executions with a live JobContext.
func (m *JobSynchronizationManager) ActiveContexts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.contexts)
}

// Depth returns the number of registrations on the calling task's stack.
func (m *JobSynchronizationManager) Depth(ctx context.Context) int {
	ref, ok := taskFrom(ctx)
	if !ok {
		return 0
	}
	stack := m.stackOf(ref.id)
	if stack == nil {
		return 0
	}
	stack.mu.Lock()
	defer stack.mu.Unlock()
	return len(stack.entries)
}

func (m *JobSynchronizationManager) dropEntries(ctx context.Context, entries []*entry) error {
	var errs *multierror.Error
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		e.inner.Store(sealedInner)
		if e.countedAgainst != nil {
			e.countedAgainst.releaseInner()
		}
		m.recorder.RecordScopeClosed(ctx, e.jobCtx.JobName())
		if err := m.releaseContext(e.jobCtx); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

func (m *JobSynchronizationManager) unbalancedClose(taskID string) error {
	msg := fmt.Sprintf("close called on task %s without a matching register", taskID)
	if m.unbalancedClosePolicy == config.UnbalancedClosePolicyIgnore {
		logger.Warnf("%s; ignoring.", msg)
		return nil
	}
	return exception.NewUnbalancedCloseError(module, msg)
}

func (m *JobSynchronizationManager) stackOf(taskID string) *taskStack {
	v, ok := m.tasks.Load(taskID)
	if !ok {
		return nil
	}
	return v.(*taskStack)
}

func (m *JobSynchronizationManager) loadOrCreateStack(taskID string) *taskStack {
	if stack := m.stackOf(taskID); stack != nil {
		return stack
	}
	v, _ := m.tasks.LoadOrStore(taskID, &taskStack{})
	return v.(*taskStack)
}

func (m *JobSynchronizationManager) acquire(execution *model.JobExecution) *JobContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc, ok := m.contexts[execution.ID]
	if !ok {
		if execution.ExecutionContext == nil {
			execution.ExecutionContext = model.NewExecutionContext()
		}
		sc = &sharedContext{jobCtx: newJobContext(execution)}
		m.contexts[execution.ID] = sc
	}
	sc.refs++
	return sc.jobCtx
}

// releaseContext drops one reference to jobCtx and closes it when none remain.
func (m *JobSynchronizationManager) releaseContext(jobCtx *JobContext) error {
	m.mu.Lock()
	id := jobCtx.execution.ID
	sc, ok := m.contexts[id]
	if !ok || sc.jobCtx != jobCtx {
		m.mu.Unlock()
		return nil
	}
	sc.refs--
	last := sc.refs == 0
	if last {
		delete(m.contexts, id)
	}
	m.mu.Unlock()

	if !last {
		return nil
	}
	if err := jobCtx.close(); err != nil {
		return exception.NewBatchError(module, fmt.Sprintf("destruction callbacks of %s failed", jobCtx.ID()), err, false, false)
	}
	return nil
}
