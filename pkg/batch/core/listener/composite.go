package listener

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"

	port "github.com/forlulz/spring-batch/pkg/batch/core/application/port"
	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
)

// CompositeJobListener fans job events out to an ordered set of adapted listeners.
// BeforeJob runs in registration order and AfterJob in reverse order.
// Registering a target that is already present is a no-op.
type CompositeJobListener struct {
	mu        sync.RWMutex
	listeners []JobListenerAdapter
	index     map[JobListenerAdapter]struct{}
}

// NewCompositeJobListener adapts and registers every target. Adaptation errors are
// aggregated; valid targets are registered regardless.
func NewCompositeJobListener(targets ...any) (*CompositeJobListener, error) {
	c := &CompositeJobListener{index: make(map[JobListenerAdapter]struct{})}
	return c, c.registerAll(targets)
}

// Register adapts target and appends it unless an equal adapter is already registered.
// It reports whether the set grew.
func (c *CompositeJobListener) Register(target any) (bool, error) {
	a, err := GetListener(target)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index == nil {
		c.index = make(map[JobListenerAdapter]struct{})
	}
	if _, dup := c.index[a]; dup {
		return false, nil
	}
	c.index[a] = struct{}{}
	c.listeners = append(c.listeners, a)
	return true, nil
}

// SetListeners replaces the registered listeners with targets.
func (c *CompositeJobListener) SetListeners(targets []any) error {
	c.mu.Lock()
	c.listeners = nil
	c.index = make(map[JobListenerAdapter]struct{})
	c.mu.Unlock()
	return c.registerAll(targets)
}

func (c *CompositeJobListener) registerAll(targets []any) error {
	var errs *multierror.Error
	for _, t := range targets {
		if _, err := c.Register(t); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// Len returns the number of distinct listeners.
func (c *CompositeJobListener) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.listeners)
}

// Listeners returns the registered adapters in order.
func (c *CompositeJobListener) Listeners() []JobListenerAdapter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]JobListenerAdapter, len(c.listeners))
	copy(out, c.listeners)
	return out
}

// BeforeJob notifies listeners in registration order.
func (c *CompositeJobListener) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {
	for _, l := range c.Listeners() {
		l.BeforeJob(ctx, jobExecution)
	}
}

// AfterJob notifies listeners in reverse registration order.
func (c *CompositeJobListener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	ls := c.Listeners()
	for i := len(ls) - 1; i >= 0; i-- {
		ls[i].AfterJob(ctx, jobExecution)
	}
}

var _ port.JobExecutionListener = (*CompositeJobListener)(nil)
