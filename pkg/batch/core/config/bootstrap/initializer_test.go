package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forlulz/spring-batch/pkg/batch/core/config"
	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	"github.com/forlulz/spring-batch/pkg/batch/core/scope"
)

func TestReleaseLeakedScopes(t *testing.T) {
	m := scope.NewJobSynchronizationManager()
	require.NoError(t, releaseLeakedScopes(m))

	_, _, err := m.Register(context.Background(), model.NewJobExecution(1, "leaky", model.NewJobParameters()))
	require.NoError(t, err)
	require.Equal(t, 1, m.ActiveTasks())

	require.NoError(t, releaseLeakedScopes(m))
	assert.Equal(t, 0, m.ActiveTasks())
	assert.Equal(t, 0, m.ActiveContexts())
}

func TestApplyTimezoneHook(t *testing.T) {
	original := time.Local
	t.Cleanup(func() { time.Local = original })

	cfg := config.NewConfig()
	cfg.Surfin.System.Timezone = "UTC"
	require.NoError(t, ApplyTimezoneHook(cfg))
	assert.Equal(t, "UTC", time.Local.String())

	cfg.Surfin.System.Timezone = "Not/AZone"
	assert.Error(t, ApplyTimezoneHook(cfg))
}
