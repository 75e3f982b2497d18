package storage_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/forlulz/spring-batch/pkg/batch/adapter/storage"
	"github.com/forlulz/spring-batch/pkg/batch/adapter/storage/gcs"
	"github.com/forlulz/spring-batch/pkg/batch/adapter/storage/local"
	config "github.com/forlulz/spring-batch/pkg/batch/core/config"
)

func TestConnectionResolver(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Surfin.AdapterConfigs["storage"] = map[string]interface{}{
		"archive": map[string]interface{}{"type": "local", "base_dir": t.TempDir()},
		"remote":  map[string]interface{}{"type": "s3"},
	}

	var resolver *storage.ConnectionResolver
	app := fxtest.New(t,
		fx.Supply(cfg),
		storage.Module,
		local.Module,
		gcs.Module,
		fx.Populate(&resolver),
	)
	app.RequireStart()

	ctx := context.Background()
	conn, err := resolver.ResolveStorageConnection(ctx, "archive")
	require.NoError(t, err)
	assert.Equal(t, local.ProviderType, conn.Type())
	require.NoError(t, conn.Upload(ctx, "", "x.txt", strings.NewReader("x"), "text/plain"))

	again, err := resolver.ResolveStorageConnection(ctx, "archive")
	require.NoError(t, err)
	assert.Same(t, conn, again)

	_, err = resolver.ResolveStorageConnection(ctx, "remote")
	assert.ErrorContains(t, err, "no storage provider found for type 's3'")
	_, err = resolver.ResolveStorageConnection(ctx, "missing")
	assert.ErrorContains(t, err, "not found")

	app.RequireStop()
}
