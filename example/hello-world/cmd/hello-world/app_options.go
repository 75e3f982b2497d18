package main

import (
	"context"
	"sync/atomic"

	"go.uber.org/fx"

	"github.com/forlulz/spring-batch/example/hello-world/internal/app/audit"
	"github.com/forlulz/spring-batch/example/hello-world/internal/app/job"
	storage "github.com/forlulz/spring-batch/pkg/batch/adapter/storage"
	"github.com/forlulz/spring-batch/pkg/batch/adapter/storage/gcs"
	"github.com/forlulz/spring-batch/pkg/batch/adapter/storage/local"
	"github.com/forlulz/spring-batch/pkg/batch/core/application/usecase"
	config "github.com/forlulz/spring-batch/pkg/batch/core/config"
	"github.com/forlulz/spring-batch/pkg/batch/core/config/bootstrap"
	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	corelistener "github.com/forlulz/spring-batch/pkg/batch/core/listener"
	"github.com/forlulz/spring-batch/pkg/batch/infrastructure/metrics"
	"github.com/forlulz/spring-batch/pkg/batch/infrastructure/repository"
	batchlistener "github.com/forlulz/spring-batch/pkg/batch/listener"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

const signalerName = "jobCompletionSignaler"

var exitCode atomic.Int32

type jobDone chan struct{}

// GetApplicationOptions assembles the Fx options of the application. Listener
// registrations come before job registration, which builds the runner.
func GetApplicationOptions(appCtx context.Context, embeddedConfig config.EmbeddedConfig, envFilePath string) []fx.Option {
	return []fx.Option{
		fx.Supply(
			embeddedConfig,
			fx.Annotated{Name: "envFilePath", Target: envFilePath},
		),
		logger.Module,
		bootstrap.Module,
		metrics.Module,
		repository.Module,
		storage.Module,
		local.Module,
		gcs.Module,
		batchlistener.Module,

		fx.Provide(audit.NewAuditListener),
		fx.Provide(func() jobDone { return make(jobDone) }),
		fx.Invoke(audit.Register),
		fx.Invoke(registerSignaler),

		usecase.Module,
		job.Module,
		fx.Invoke(func(lc fx.Lifecycle, shutdowner fx.Shutdowner, launcher *usecase.SimpleJobLauncher, explorer usecase.JobExplorer, done jobDone) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go runJob(appCtx, shutdowner, launcher, explorer, done)
					return nil
				},
			})
		}),
	}
}

func registerSignaler(registry *corelistener.Registry, done jobDone) error {
	return registry.RegisterTarget(signalerName, batchlistener.NewJobCompletionSignaler(done))
}

func runJob(ctx context.Context, shutdowner fx.Shutdowner, launcher *usecase.SimpleJobLauncher, explorer usecase.JobExplorer, done jobDone) {
	fail := func() {
		exitCode.Store(1)
		if err := shutdowner.Shutdown(fx.ExitCode(1)); err != nil {
			logger.Errorf("Failed to shut down: %v", err)
		}
	}

	params := model.NewJobParameters()
	params.Put("greeting", "Hello")
	execution, err := launcher.Launch(ctx, job.JobName, params)
	if err != nil {
		logger.Errorf("Failed to launch job '%s': %v", job.JobName, err)
		fail()
		return
	}

	select {
	case <-done:
	case <-ctx.Done():
		logger.Warnf("Interrupted while job '%s' (ID: %d) was running.", job.JobName, execution.ID)
	}
	if err := launcher.Wait(context.WithoutCancel(ctx), execution.ID); err != nil {
		logger.Errorf("Job '%s' (ID: %d) failed: %v", job.JobName, execution.ID, err)
	}

	stored, err := explorer.GetJobExecution(context.WithoutCancel(ctx), execution.ID)
	if err != nil {
		logger.Errorf("Failed to load JobExecution (ID: %d): %v", execution.ID, err)
		fail()
		return
	}
	logger.Infof("Job '%s' (ID: %d) finished with status %s.", stored.JobName, stored.ID, stored.GetStatus())
	if stored.GetStatus() != model.BatchStatusCompleted {
		fail()
		return
	}
	if err := shutdowner.Shutdown(); err != nil {
		logger.Errorf("Failed to shut down: %v", err)
	}
}
