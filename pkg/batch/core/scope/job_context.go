package scope

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"

	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/exception"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

// JobContext is the view of one JobExecution handed to collaborators while the
// execution is registered. Every task registering the same execution shares it.
type JobContext struct {
	execution *model.JobExecution

	mu         sync.Mutex
	attributes map[string]any
	callbacks  []destructionCallback
	closed     bool
}

type destructionCallback struct {
	name string
	fn   func() error
}

// pending is a placeholder for an attribute whose value is being created.
type pending struct {
	done  chan struct{}
	value any
	err   error
}

func newJobContext(execution *model.JobExecution) *JobContext {
	return &JobContext{
		execution:  execution,
		attributes: make(map[string]any),
	}
}

// JobExecution returns the bound execution.
func (c *JobContext) JobExecution() *model.JobExecution {
	return c.execution
}

// ExecutionContext returns the live execution context; writes are visible to every holder.
func (c *JobContext) ExecutionContext() *model.ExecutionContext {
	return c.execution.ExecutionContext
}

// JobExecutionContext returns a read-only snapshot of the execution context.
func (c *JobContext) JobExecutionContext() map[string]any {
	return c.execution.ExecutionContext.ToMap()
}

// JobName returns the bound execution's job name.
func (c *JobContext) JobName() string {
	return c.execution.JobName
}

// JobParameters returns a copy of the bound execution's parameters.
func (c *JobContext) JobParameters() map[string]any {
	out := make(map[string]any, len(c.execution.Parameters.Params))
	for k, v := range c.execution.Parameters.Params {
		out[k] = v
	}
	return out
}

// ID identifies the context, e.g. "jobExecution#11".
func (c *JobContext) ID() string {
	return fmt.Sprintf("jobExecution#%d", c.execution.ID)
}

// SetAttribute stores value under name.
func (c *JobContext) SetAttribute(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attributes[name] = value
}

// GetAttribute returns the value stored under name. Values still being created
// by a Scoped provider are reported as absent.
func (c *JobContext) GetAttribute(name string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.attributes[name]
	if !ok {
		return nil, false
	}
	if _, isPending := v.(*pending); isPending {
		return nil, false
	}
	return v, true
}

// RemoveAttribute deletes name and returns what it held. The destruction callback
// registered under the same name is dropped as well.
func (c *JobContext) RemoveAttribute(name string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.attributes[name]
	if !ok {
		return nil, false
	}
	if _, isPending := v.(*pending); isPending {
		return nil, false
	}
	delete(c.attributes, name)
	for i, cb := range c.callbacks {
		if cb.name == name {
			c.callbacks = append(c.callbacks[:i], c.callbacks[i+1:]...)
			break
		}
	}
	return v, true
}

// AttributeNames returns the names of the stored attributes, sorted.
func (c *JobContext) AttributeNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.attributes))
	for name, v := range c.attributes {
		if _, isPending := v.(*pending); isPending {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterDestructionCallback arranges for fn to run when the context closes, that is
// when the last registration of its execution ends. A callback registered under an
// existing name replaces it. On an already closed context fn runs immediately.
func (c *JobContext) RegisterDestructionCallback(name string, fn func() error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		logger.Warnf("%s is already closed; running destruction callback '%s' now.", c.ID(), name)
		if err := runCallback(name, fn); err != nil {
			logger.Errorf("%s: %v", c.ID(), err)
		}
		return
	}
	defer c.mu.Unlock()
	for i, cb := range c.callbacks {
		if cb.name == name {
			c.callbacks[i].fn = fn
			return
		}
	}
	c.callbacks = append(c.callbacks, destructionCallback{name: name, fn: fn})
}

// IsClosed reports whether the context has been closed.
func (c *JobContext) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// String renders the context for logs.
func (c *JobContext) String() string {
	return fmt.Sprintf("JobContext{%s, job=%s, context=%s}", c.ID(), c.execution.JobName, c.execution.ExecutionContext)
}

// getOrCreate returns the attribute under name, creating it with create when absent.
// Concurrent callers for the same name wait for a single creation. A failed
// creation leaves the attribute absent.
func (c *JobContext) getOrCreate(name string, create func() (any, error)) (any, bool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, false, exception.NewNoContextError(module, fmt.Sprintf("%s is closed", c.ID()))
	}
	if existing, ok := c.attributes[name]; ok {
		c.mu.Unlock()
		if p, isPending := existing.(*pending); isPending {
			<-p.done
			return p.value, false, p.err
		}
		return existing, false, nil
	}
	p := &pending{done: make(chan struct{})}
	c.attributes[name] = p
	c.mu.Unlock()

	defer close(p.done)
	p.err = fmt.Errorf("creation of '%s' did not complete", name)
	defer func() {
		c.mu.Lock()
		if c.attributes[name] == any(p) {
			if p.err != nil {
				delete(c.attributes, name)
			} else {
				c.attributes[name] = p.value
			}
		}
		c.mu.Unlock()
	}()

	p.value, p.err = create()
	return p.value, p.err == nil, p.err
}

// close runs the destruction callbacks in reverse registration order, once.
func (c *JobContext) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	callbacks := c.callbacks
	c.callbacks = nil
	c.attributes = make(map[string]any)
	c.mu.Unlock()

	var errs *multierror.Error
	for i := len(callbacks) - 1; i >= 0; i-- {
		if err := runCallback(callbacks[i].name, callbacks[i].fn); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

func runCallback(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("destruction callback '%s' panicked: %v", name, r)
		}
	}()
	if fn == nil {
		return nil
	}
	if cbErr := fn(); cbErr != nil {
		return fmt.Errorf("destruction callback '%s': %w", name, cbErr)
	}
	return nil
}
