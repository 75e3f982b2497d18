package listener

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corelistener "github.com/forlulz/spring-batch/pkg/batch/core/listener"
	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
)

func TestJobCompletionSignaler(t *testing.T) {
	done := make(chan struct{})
	signaler := NewJobCompletionSignaler(done)

	adapter, err := corelistener.GetListener(signaler)
	require.NoError(t, err)

	je := model.NewJobExecution(1, "job", model.NewJobParameters())
	adapter.BeforeJob(context.Background(), je)
	select {
	case <-done:
		t.Fatal("closed before the job ended")
	default:
	}

	adapter.AfterJob(context.Background(), je)
	assert.NotPanics(t, func() { adapter.AfterJob(context.Background(), je) })
	_, open := <-done
	assert.False(t, open)
}
