package logging

import (
	"go.uber.org/fx"

	config "github.com/forlulz/spring-batch/pkg/batch/core/config"
	corelistener "github.com/forlulz/spring-batch/pkg/batch/core/listener"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/configbinder"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

// ListenerName is the name under which the logging listener is registered.
const ListenerName = "loggingJobListener"

// NewLoggingJobListenerBuilder creates the builder for LoggingJobListener.
func NewLoggingJobListenerBuilder() corelistener.JobExecutionListenerBuilder {
	return func(
		_ *config.Config,
		properties map[string]interface{},
	) (any, error) {
		var props LoggingProperties
		if err := configbinder.BindProperties(properties, &props); err != nil {
			return nil, err
		}
		return NewLoggingJobListener(props), nil
	}
}

// LoggingListenerParams are the dependencies of RegisterLoggingListener.
type LoggingListenerParams struct {
	fx.In
	Registry *corelistener.Registry
	Builder  corelistener.JobExecutionListenerBuilder `name:"loggingJobListener"`
}

// RegisterLoggingListener registers the logging listener builder.
func RegisterLoggingListener(p LoggingListenerParams) {
	p.Registry.RegisterBuilder(ListenerName, p.Builder)
	logger.Debugf("Logging listener registered.")
}

// Module provides the logging listener.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewLoggingJobListenerBuilder, fx.ResultTags(`name:"loggingJobListener"`))),
	fx.Invoke(RegisterLoggingListener),
)
