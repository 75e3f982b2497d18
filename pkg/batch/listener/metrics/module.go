package metrics

import (
	"go.uber.org/fx"

	config "github.com/forlulz/spring-batch/pkg/batch/core/config"
	corelistener "github.com/forlulz/spring-batch/pkg/batch/core/listener"
	"github.com/forlulz/spring-batch/pkg/batch/core/metrics"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/configbinder"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

// ListenerName is the name under which the metrics listener is registered.
const ListenerName = "metricsJobListener"

// NewMetricsJobListenerBuilder creates the builder for MetricsJobListener.
func NewMetricsJobListenerBuilder(recorder metrics.MetricRecorder) corelistener.JobExecutionListenerBuilder {
	return func(
		_ *config.Config,
		properties map[string]interface{},
	) (any, error) {
		var props MetricsProperties
		if err := configbinder.BindProperties(properties, &props); err != nil {
			return nil, err
		}
		return NewMetricsJobListener(recorder, props), nil
	}
}

// MetricsListenerParams are the dependencies of RegisterMetricsListener.
type MetricsListenerParams struct {
	fx.In
	Registry *corelistener.Registry
	Builder  corelistener.JobExecutionListenerBuilder `name:"metricsJobListener"`
}

// RegisterMetricsListener registers the metrics listener builder.
func RegisterMetricsListener(p MetricsListenerParams) {
	p.Registry.RegisterBuilder(ListenerName, p.Builder)
	logger.Debugf("Metrics listener registered.")
}

// Module wraps the application's MetricRecorder asynchronously and provides the metrics listener.
var Module = fx.Options(
	fx.Decorate(NewAsyncMetricRecorderWrapper),
	fx.Provide(fx.Annotate(NewMetricsJobListenerBuilder, fx.ResultTags(`name:"metricsJobListener"`))),
	fx.Invoke(RegisterMetricsListener),
)
