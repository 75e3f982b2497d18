package job

import (
	"go.uber.org/fx"

	"github.com/forlulz/spring-batch/pkg/batch/core/application/usecase"
	"github.com/forlulz/spring-batch/pkg/batch/core/job/runner"
	"github.com/forlulz/spring-batch/pkg/batch/core/scope"
	"github.com/forlulz/spring-batch/pkg/batch/core/support/incrementer"
)

var defaultNames = []string{"world", "gopher", "batch"}

// RegisterHelloWorldJob registers the job with a run id incrementer, so every launch is a new instance.
func RegisterHelloWorldJob(launcher *usecase.SimpleJobLauncher, jobRunner *runner.SimpleJobRunner, manager *scope.JobSynchronizationManager) error {
	return launcher.RegisterJob(
		NewHelloWorldJob(jobRunner, manager, defaultNames),
		incrementer.NewRunIDIncrementer(""),
	)
}

// Module registers the hello world job.
var Module = fx.Options(
	fx.Invoke(RegisterHelloWorldJob),
)
