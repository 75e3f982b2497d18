package logging

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corelistener "github.com/forlulz/spring-batch/pkg/batch/core/listener"
	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	logger "github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })
	return &buf
}

func TestLoggingJobListener_IsMarkerListener(t *testing.T) {
	l := NewLoggingJobListener(LoggingProperties{})

	assert.True(t, corelistener.IsListener(l))
	_, err := corelistener.GetListener(l)
	require.NoError(t, err)
}

func TestLoggingJobListener_Builder(t *testing.T) {
	buf := captureLog(t)
	builder := NewLoggingJobListenerBuilder()

	target, err := builder(nil, map[string]interface{}{
		"include_parameters": "true",
		"include_context":    true,
	})
	require.NoError(t, err)
	adapter, err := corelistener.GetListener(target)
	require.NoError(t, err)

	params := model.NewJobParameters()
	params.Put("input", "orders.csv")
	je := model.NewJobExecution(3, "importJob", params)
	je.ExecutionContext.Put("read", 10)

	adapter.BeforeJob(context.Background(), je)
	je.MarkAsStarted()
	je.MarkAsCompleted()
	adapter.AfterJob(context.Background(), je)

	out := buf.String()
	assert.Contains(t, out, "BeforeJob - JobName: importJob, ID: 3, Params:")
	assert.Contains(t, out, "orders.csv")
	assert.Contains(t, out, "Status: COMPLETED")
	assert.Contains(t, out, "ExecutionContext: {read=10}")
}

func TestLoggingJobListener_BuilderRejectsBadProperties(t *testing.T) {
	_, err := NewLoggingJobListenerBuilder()(nil, map[string]interface{}{
		"include_parameters": "sometimes",
	})
	assert.Error(t, err)
}
