// Package metrics provides the Prometheus and OpenTelemetry backends of the
// core observability ports. Use Module in place of the core metrics.Module.
package metrics

import (
	"go.uber.org/fx"
)

// Module provides a MetricRecorder chosen by the observability config and an
// OpenTelemetry Tracer.
var Module = fx.Options(
	fx.Provide(NewMetricRecorder),
	fx.Provide(NewTracerProvider),
	fx.Provide(NewTracer),
)
