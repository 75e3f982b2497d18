package usecase

import (
	"context"

	"go.uber.org/fx"
)

// NewJobLauncherProvider provides the launcher and stops its executions on application stop.
func NewJobLauncherProvider(lc fx.Lifecycle, launcher *SimpleJobLauncher) JobLauncher {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return launcher.Shutdown(ctx)
		},
	})
	return launcher
}

// Module is the Fx module for JobLauncher, JobOperator, and JobExplorer.
var Module = fx.Options(
	fx.Provide(NewSimpleJobLauncher),
	fx.Provide(NewJobLauncherProvider),
	fx.Provide(fx.Annotate(
		NewDefaultJobOperator,
		fx.As(new(JobOperator)),
	)),
	fx.Provide(fx.Annotate(
		NewSimpleJobExplorer,
		fx.As(new(JobExplorer)),
	)),
)
