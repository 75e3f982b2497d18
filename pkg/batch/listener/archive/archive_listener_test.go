package archive

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	parquetlocal "github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	storageAdapter "github.com/forlulz/spring-batch/pkg/batch/adapter/storage"
	storageConfig "github.com/forlulz/spring-batch/pkg/batch/adapter/storage/config"
	"github.com/forlulz/spring-batch/pkg/batch/adapter/storage/local"
	config "github.com/forlulz/spring-batch/pkg/batch/core/config"
	corelistener "github.com/forlulz/spring-batch/pkg/batch/core/listener"
	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	"github.com/forlulz/spring-batch/pkg/batch/core/scope"
	"github.com/forlulz/spring-batch/pkg/batch/core/support/expression"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/exception"
)

func finishedExecution() *model.JobExecution {
	params := model.NewJobParameters()
	params.Put("input", "orders.csv")
	params.Put("password", "hunter2")
	je := model.NewJobExecution(model.NextExecutionID(), "import", params)
	je.MarkAsStarted()
	je.MarkAsFailed(errors.New("disk full"))
	return je
}

func TestExecutionArchiveListener_WritesParquet(t *testing.T) {
	base := t.TempDir()
	conn, err := local.NewLocalAdapter(storageConfig.StorageConfig{BaseDir: base}, "archive")
	require.NoError(t, err)

	l, err := NewExecutionArchiveListener(conn, ArchiveProperties{Prefix: "/runs/", Compression: "gzip"})
	require.NoError(t, err)
	l.now = func() time.Time { return time.Date(2026, 10, 19, 23, 0, 0, 0, time.UTC) }

	je := finishedExecution()
	objectName, err := l.Archive(context.Background(), je)
	require.NoError(t, err)
	assert.Equal(t, "runs/dt=2026-10-19/import_"+itoa(je.ID)+".parquet", objectName)

	pf, err := parquetlocal.NewLocalFileReader(filepath.Join(base, filepath.FromSlash(objectName)))
	require.NoError(t, err)
	defer pf.Close()
	pr, err := reader.NewParquetReader(pf, new(ExecutionRecord), 1)
	require.NoError(t, err)
	defer pr.ReadStop()

	require.EqualValues(t, 1, pr.GetNumRows())
	rows := make([]ExecutionRecord, 1)
	require.NoError(t, pr.Read(&rows))

	rec := rows[0]
	assert.Equal(t, je.ID, rec.ExecutionID)
	assert.Equal(t, "import", rec.JobName)
	assert.Equal(t, "FAILED", rec.Status)
	assert.Equal(t, "FAILED", rec.ExitStatus)
	assert.Equal(t, "disk full", rec.Failures)
	assert.Equal(t, je.EndTime.UnixMilli(), rec.EndTime)
	assert.Contains(t, rec.Parameters, "orders.csv")
	assert.NotContains(t, rec.Parameters, "hunter2")
}

func TestExecutionArchiveListener_AfterJobSurvivesCancelledContext(t *testing.T) {
	base := t.TempDir()
	conn, err := local.NewLocalAdapter(storageConfig.StorageConfig{BaseDir: base}, "archive")
	require.NoError(t, err)
	l, err := NewExecutionArchiveListener(conn, ArchiveProperties{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l.AfterJob(ctx, finishedExecution())

	var names []string
	require.NoError(t, conn.ListObjects(context.Background(), "", defaultPrefix+"/", func(name string) error {
		names = append(names, name)
		return nil
	}))
	require.Len(t, names, 1)

	f, err := os.Open(filepath.Join(base, filepath.FromSlash(names[0])))
	require.NoError(t, err)
	defer f.Close()
	magic := make([]byte, 4)
	_, err = io.ReadFull(f, magic)
	require.NoError(t, err)
	assert.Equal(t, "PAR1", string(magic))
}

func TestNewExecutionArchiveListener_Validation(t *testing.T) {
	_, err := NewExecutionArchiveListener(nil, ArchiveProperties{})
	assert.ErrorIs(t, err, exception.ErrInvalidArgument)

	conn, err := local.NewLocalAdapter(storageConfig.StorageConfig{BaseDir: t.TempDir()}, "archive")
	require.NoError(t, err)
	_, err = NewExecutionArchiveListener(conn, ArchiveProperties{Compression: "lz4"})
	assert.ErrorIs(t, err, exception.ErrConfiguration)
}

func TestExecutionArchiveListener_ResolvesPrefixExpressions(t *testing.T) {
	conn, err := local.NewLocalAdapter(storageConfig.StorageConfig{BaseDir: t.TempDir()}, "archive")
	require.NoError(t, err)
	l, err := NewExecutionArchiveListener(conn, ArchiveProperties{Prefix: "runs/#{jobName}/#{jobParameters['input']}"})
	require.NoError(t, err)
	l.WithExpressionResolver(expression.NewDefaultExpressionResolver(scope.NewJobSynchronizationManager()))
	l.now = func() time.Time { return time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC) }

	je := finishedExecution()
	objectName, err := l.Archive(context.Background(), je)
	require.NoError(t, err)
	assert.Equal(t, "runs/import/orders.csv/dt=2026-10-19/import_"+itoa(je.ID)+".parquet", objectName)
}

func TestExecutionArchiveListenerBuilder(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Surfin.AdapterConfigs["storage"] = map[string]interface{}{
		"archive": map[string]interface{}{"type": "local", "base_dir": t.TempDir()},
	}
	cfg.Surfin.ListenerProperties[ListenerName] = map[string]interface{}{"storage": "archive"}
	resolver := storageAdapter.NewConnectionResolver(cfg, local.NewProvider())
	defer resolver.CloseAll()

	registry := corelistener.NewRegistry()
	registry.RegisterBuilder(ListenerName, NewExecutionArchiveListenerBuilder(resolver, nil))

	composite, err := registry.Build(cfg, []string{ListenerName})
	require.NoError(t, err)
	assert.Equal(t, 1, composite.Len())

	delete(cfg.Surfin.ListenerProperties, ListenerName)
	_, err = registry.Build(cfg, []string{ListenerName})
	assert.ErrorIs(t, err, exception.ErrConfiguration)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
