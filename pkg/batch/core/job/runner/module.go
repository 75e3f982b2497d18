package runner

import (
	"go.uber.org/fx"

	port "github.com/forlulz/spring-batch/pkg/batch/core/application/port"
	"github.com/forlulz/spring-batch/pkg/batch/core/config"
	"github.com/forlulz/spring-batch/pkg/batch/core/listener"
	metrics "github.com/forlulz/spring-batch/pkg/batch/core/metrics"
	"github.com/forlulz/spring-batch/pkg/batch/core/scope"
)

// SimpleJobRunnerParams defines dependencies for SimpleJobRunner.
type SimpleJobRunnerParams struct {
	fx.In
	Config         *config.Config
	Manager        *scope.JobSynchronizationManager
	Registry       *listener.Registry
	MetricRecorder metrics.MetricRecorder
	Tracer         metrics.Tracer
}

// NewJobRunner builds the runner with the listeners named in surfin.batch.listeners.
func NewJobRunner(p SimpleJobRunnerParams) (*SimpleJobRunner, error) {
	listeners, err := p.Registry.Build(p.Config, p.Config.Surfin.Batch.Listeners)
	if err != nil {
		return nil, err
	}
	return NewSimpleJobRunner(p.Manager, listeners, p.MetricRecorder, p.Tracer), nil
}

// Module provides the JobRunner implementation.
var Module = fx.Options(
	fx.Provide(NewJobRunner),
	fx.Provide(func(r *SimpleJobRunner) port.JobRunner { return r }),
)
