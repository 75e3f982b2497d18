package scope

import (
	"context"
	"errors"
	"fmt"

	"github.com/forlulz/spring-batch/pkg/batch/support/util/exception"
)

// TargetPrefix prefixes the attribute names under which Scoped values are stored.
const TargetPrefix = "scopedTarget."

// Scoped is a collaborator created at most once per registered JobExecution.
// Every task registered on the same execution resolves the same value, and the
// value is destroyed when the execution's JobContext closes.
type Scoped[T any] struct {
	manager *JobSynchronizationManager
	name    string
	factory func(*JobContext) (T, error)
	destroy func(T) error
}

// NewScoped declares a scoped collaborator named name. A nil manager means the default manager.
func NewScoped[T any](manager *JobSynchronizationManager, name string, factory func(*JobContext) (T, error)) *Scoped[T] {
	if manager == nil {
		manager = DefaultManager()
	}
	return &Scoped[T]{manager: manager, name: name, factory: factory}
}

// WithDestroy sets the function run on the value when its JobContext closes.
func (s *Scoped[T]) WithDestroy(destroy func(T) error) *Scoped[T] {
	s.destroy = destroy
	return s
}

// Name returns the collaborator name.
func (s *Scoped[T]) Name() string {
	return s.name
}

// Get resolves the value for the calling task's current registration, creating it on first use.
// It fails with a NoContextError when the task has no registration.
func (s *Scoped[T]) Get(ctx context.Context) (T, error) {
	var zero T
	jobCtx, err := s.manager.GetContext(ctx)
	if err != nil {
		return zero, err
	}
	return s.getFrom(jobCtx)
}

func (s *Scoped[T]) getFrom(jobCtx *JobContext) (T, error) {
	var zero T
	attr := TargetPrefix + s.name
	v, created, err := jobCtx.getOrCreate(attr, func() (any, error) {
		return s.factory(jobCtx)
	})
	if errors.Is(err, exception.ErrNoContext) {
		return zero, err
	}
	if err != nil {
		return zero, exception.NewBatchError(module, fmt.Sprintf("failed to create scoped '%s' for %s", s.name, jobCtx.ID()), err, false, false)
	}
	value, ok := v.(T)
	if !ok {
		return zero, exception.NewBatchError(module,
			fmt.Sprintf("attribute '%s' of %s holds %T", attr, jobCtx.ID(), v), exception.ErrConfiguration, false, false)
	}
	if created && s.destroy != nil {
		destroy := s.destroy
		jobCtx.RegisterDestructionCallback(attr, func() error { return destroy(value) })
	}
	// The context may have closed while the value was being created.
	if jobCtx.IsClosed() {
		return zero, exception.NewNoContextError(module, fmt.Sprintf("%s closed while resolving scoped '%s'", jobCtx.ID(), s.name))
	}
	return value, nil
}
