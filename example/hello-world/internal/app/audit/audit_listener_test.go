package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	"github.com/forlulz/spring-batch/pkg/batch/core/listener"
)

func TestAuditListenerIsAdaptedThroughMarkers(t *testing.T) {
	a := NewAuditListener()
	require.True(t, listener.IsListener(a))

	adapter, err := listener.GetListener(a)
	require.NoError(t, err)
	again, err := listener.GetListener(a)
	require.NoError(t, err)
	assert.Equal(t, adapter, again)

	je := model.NewJobExecution(42, "auditedJob", model.NewJobParameters())
	adapter.BeforeJob(context.Background(), je)
	je.MarkAsCompleted()
	adapter.AfterJob(context.Background(), je)

	trail := a.Trail()
	require.Len(t, trail, 1)
	assert.Equal(t, int64(42), trail[0].ExecutionID)
	assert.Equal(t, model.BatchStatusCompleted, trail[0].Status)
}

func TestRegister(t *testing.T) {
	registry := listener.NewRegistry()
	require.NoError(t, Register(registry, NewAuditListener()))
	assert.Equal(t, []string{ListenerName}, registry.Names())
}
