package bootstrap

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/forlulz/spring-batch/pkg/batch/core/config"
	"github.com/forlulz/spring-batch/pkg/batch/core/scope"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

// ApplyLoggingConfigHook applies the logging level based on the configuration.
func ApplyLoggingConfigHook(cfg *config.LoggingConfig) {
	if cfg.Level != "" {
		logger.SetLogLevel(cfg.Level)
		logger.Infof("Log level set to: %s", cfg.Level)
	}
}

// ApplyTimezoneHook sets time.Local to the configured timezone.
func ApplyTimezoneHook(cfg *config.Config) error {
	tz := cfg.Surfin.System.Timezone
	if tz == "" {
		return nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return err
	}
	time.Local = loc
	logger.Debugf("Timezone set to: %s", tz)
	return nil
}

// ScopeLeakCheckHook registers an OnStop hook that reports job registrations still
// open at shutdown and releases them.
func ScopeLeakCheckHook(lc fx.Lifecycle, manager *scope.JobSynchronizationManager) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return releaseLeakedScopes(manager)
		},
	})
}

func releaseLeakedScopes(manager *scope.JobSynchronizationManager) error {
	tasks, contexts := manager.ActiveTasks(), manager.ActiveContexts()
	if tasks == 0 && contexts == 0 {
		return nil
	}
	logger.Warnf("%d task(s) still hold registrations of %d job execution(s) at shutdown; releasing them.", tasks, contexts)
	return manager.ReleaseAll()
}
