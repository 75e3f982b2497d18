package tracing

import (
	"go.uber.org/fx"

	config "github.com/forlulz/spring-batch/pkg/batch/core/config"
	corelistener "github.com/forlulz/spring-batch/pkg/batch/core/listener"
	"github.com/forlulz/spring-batch/pkg/batch/core/metrics"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

// ListenerName is the name under which the tracing listener is registered.
const ListenerName = "tracingJobListener"

// NewTracingJobListenerBuilder creates the builder for TracingJobListener.
func NewTracingJobListenerBuilder(tracer metrics.Tracer) corelistener.JobExecutionListenerBuilder {
	return func(
		_ *config.Config,
		_ map[string]interface{},
	) (any, error) {
		return NewTracingJobListener(tracer), nil
	}
}

// TracingListenerParams are the dependencies of RegisterTracingListener.
type TracingListenerParams struct {
	fx.In
	Registry *corelistener.Registry
	Builder  corelistener.JobExecutionListenerBuilder `name:"tracingJobListener"`
}

// RegisterTracingListener registers the tracing listener builder.
func RegisterTracingListener(p TracingListenerParams) {
	p.Registry.RegisterBuilder(ListenerName, p.Builder)
	logger.Debugf("Tracing listener registered.")
}

// Module provides the tracing listener. The Tracer itself comes from the metrics modules.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewTracingJobListenerBuilder, fx.ResultTags(`name:"tracingJobListener"`))),
	fx.Invoke(RegisterTracingListener),
)
