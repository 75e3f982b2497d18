package scope

import (
	"go.uber.org/fx"

	"github.com/forlulz/spring-batch/pkg/batch/core/config"
	"github.com/forlulz/spring-batch/pkg/batch/core/metrics"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

// ManagerParams are the dependencies of the fx-provided manager.
type ManagerParams struct {
	fx.In
	ScopeConfig    *config.ScopeConfig
	MetricRecorder metrics.MetricRecorder
}

// NewManagerProvider builds the manager from configuration.
func NewManagerProvider(p ManagerParams) *JobSynchronizationManager {
	policy := config.UnbalancedClosePolicyError
	if p.ScopeConfig != nil && p.ScopeConfig.UnbalancedClosePolicy != "" {
		policy = p.ScopeConfig.UnbalancedClosePolicy
	}
	logger.Debugf("JobSynchronizationManager created (unbalanced close policy: %s).", policy)
	return NewJobSynchronizationManager(
		WithUnbalancedClosePolicy(policy),
		WithMetricRecorder(p.MetricRecorder),
	)
}

// Module provides the JobSynchronizationManager.
var Module = fx.Options(
	fx.Provide(NewManagerProvider),
)
