package job

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	"github.com/forlulz/spring-batch/pkg/batch/core/job/runner"
	"github.com/forlulz/spring-batch/pkg/batch/core/listener"
	"github.com/forlulz/spring-batch/pkg/batch/core/metrics"
	"github.com/forlulz/spring-batch/pkg/batch/core/scope"
)

func TestHelloWorldJobSharesGreeterAcrossPartitions(t *testing.T) {
	manager := scope.NewJobSynchronizationManager()
	listeners, err := listener.NewCompositeJobListener()
	require.NoError(t, err)
	jobRunner := runner.NewSimpleJobRunner(manager, listeners, metrics.NewNoOpMetricRecorder(), metrics.NewNoOpTracer())

	params := model.NewJobParameters()
	params.Put("greeting", "Hi")
	execution := model.NewJobExecution(model.NextExecutionID(), JobName, params)

	job := NewHelloWorldJob(jobRunner, manager, []string{"a", "b", "c"})
	require.NoError(t, jobRunner.Run(context.Background(), job, execution))

	assert.Equal(t, model.BatchStatusCompleted, execution.GetStatus())
	greeted, ok := execution.ExecutionContext.GetInt("greeted")
	require.True(t, ok)
	assert.Equal(t, 3, greeted)
}

func TestGreeterWithoutRegistration(t *testing.T) {
	greeter := NewGreeter(scope.NewJobSynchronizationManager())
	_, err := greeter.Get(context.Background())
	assert.Error(t, err)
}
