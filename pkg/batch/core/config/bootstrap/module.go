// Package bootstrap wires the core batch modules into one Fx option set.
package bootstrap

import (
	"go.uber.org/fx"

	"github.com/forlulz/spring-batch/pkg/batch/core/config"
	"github.com/forlulz/spring-batch/pkg/batch/core/job/runner"
	"github.com/forlulz/spring-batch/pkg/batch/core/listener"
	"github.com/forlulz/spring-batch/pkg/batch/core/scope"
	"github.com/forlulz/spring-batch/pkg/batch/core/support/expression"
)

// Module provides configuration, the synchronization manager, the listener
// registry, the expression resolver and the job runner. A MetricRecorder and a
// Tracer must be supplied by a metrics module.
var Module = fx.Options(
	config.Module,
	fx.Invoke(ApplyLoggingConfigHook),
	fx.Invoke(ApplyTimezoneHook),

	scope.Module,
	listener.Module,
	expression.Module,
	runner.Module,

	fx.Invoke(ScopeLeakCheckHook),
)
