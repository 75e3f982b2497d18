package listener

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"

	config "github.com/forlulz/spring-batch/pkg/batch/core/config"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/exception"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

// JobExecutionListenerBuilder creates a listener target from configuration.
// The result may be anything GetListener accepts.
type JobExecutionListenerBuilder func(cfg *config.Config, properties map[string]interface{}) (any, error)

// NewListenerBuilder returns a builder that always yields target.
// The target is validated eagerly so wiring mistakes surface at registration.
func NewListenerBuilder(target any) (JobExecutionListenerBuilder, error) {
	if _, err := GetListener(target); err != nil {
		return nil, err
	}
	return func(_ *config.Config, _ map[string]interface{}) (any, error) {
		return target, nil
	}, nil
}

// Registry maps listener names, as referenced from configuration, to builders.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]JobExecutionListenerBuilder
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]JobExecutionListenerBuilder)}
}

// RegisterBuilder registers builder under name, replacing any previous one.
func (r *Registry) RegisterBuilder(name string, builder JobExecutionListenerBuilder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.builders[name]; exists {
		logger.Warnf("Listener builder '%s' is registered twice; the last registration wins.", name)
	}
	r.builders[name] = builder
	logger.Debugf("Listener builder '%s' registered.", name)
}

// RegisterTarget registers a fixed target under name.
func (r *Registry) RegisterTarget(name string, target any) error {
	builder, err := NewListenerBuilder(target)
	if err != nil {
		return err
	}
	r.RegisterBuilder(name, builder)
	return nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.builders))
	for n := range r.builders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build creates a composite of the named listeners in the given order, passing
// each builder its entry of cfg.Surfin.ListenerProperties. Every failure is reported.
func (r *Registry) Build(cfg *config.Config, names []string) (*CompositeJobListener, error) {
	composite, _ := NewCompositeJobListener()
	var errs *multierror.Error
	for _, name := range names {
		r.mu.RLock()
		builder, ok := r.builders[name]
		r.mu.RUnlock()
		if !ok {
			errs = multierror.Append(errs, exception.NewConfigurationError(moduleName,
				fmt.Sprintf("no listener registered under '%s'", name)))
			continue
		}

		var props map[string]interface{}
		if cfg != nil {
			props = cfg.Surfin.ListenerProperties[name]
		}
		target, err := builder(cfg, props)
		if err != nil {
			errs = multierror.Append(errs, exception.NewBatchError(moduleName,
				fmt.Sprintf("failed to build listener '%s'", name), err, false, false))
			continue
		}
		if _, err := composite.Register(target); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return composite, errs.ErrorOrNil()
}
