package metrics

import (
	"go.uber.org/fx"
)

// Module provides no-op observability. Applications that export metrics use the
// infrastructure metrics module instead of this one.
var Module = fx.Options(
	fx.Provide(NewNoOpMetricRecorder),
	fx.Provide(NewNoOpTracer),
)
