package sql

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	config "github.com/forlulz/spring-batch/pkg/batch/core/config"
	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	"github.com/forlulz/spring-batch/pkg/batch/core/domain/repository"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Surfin.Repository.Type = config.RepositoryTypeSQL
	cfg.Surfin.AdapterConfigs["database"] = map[string]interface{}{
		"metadata": map[string]interface{}{
			"type":     "sqlite",
			"database": filepath.Join(t.TempDir(), "metadata.db"),
			"pool":     map[string]interface{}{"max_open_conns": 1},
		},
	}
	return cfg
}

func TestGormJobRepository_SQLite(t *testing.T) {
	ctx := context.Background()
	repo, err := OpenJobRepository(ctx, sqliteConfig(t))
	require.NoError(t, err)
	defer repo.Close()

	params := model.NewJobParameters()
	params.Put("input", "s3://bucket/in.csv")
	params.Put("password", "hunter2")

	first := model.NewJobExecution(model.NextExecutionID(), "import", params)
	first.CreateTime = time.Now().Add(-time.Minute)
	second := model.NewJobExecution(model.NextExecutionID(), "import", model.NewJobParameters())
	other := model.NewJobExecution(model.NextExecutionID(), "export", model.NewJobParameters())
	for _, je := range []*model.JobExecution{first, second, other} {
		require.NoError(t, repo.SaveJobExecution(ctx, je))
	}
	assert.ErrorIs(t, repo.SaveJobExecution(ctx, first), repository.ErrJobExecutionExists)

	first.MarkAsStarted()
	first.ExecutionContext.Put("read.count", 42)
	first.MarkAsFailed(errors.New("disk full"))
	require.NoError(t, repo.UpdateJobExecution(ctx, first))

	found, err := repo.FindJobExecutionByID(ctx, first.ID)
	require.NoError(t, err)
	assert.NotSame(t, first, found)
	assert.Equal(t, "import", found.JobName)
	assert.Equal(t, model.BatchStatusFailed, found.Status)
	assert.Equal(t, model.ExitStatusFailed, found.ExitStatus)
	assert.Equal(t, model.FailureList{"disk full"}, found.Failures)
	require.NotNil(t, found.EndTime)
	assert.WithinDuration(t, *first.EndTime, *found.EndTime, time.Millisecond)
	pw, _ := found.Parameters.GetString("password")
	assert.Equal(t, "hunter2", pw)
	count, ok := found.ExecutionContext.GetInt("read.count")
	require.True(t, ok)
	assert.Equal(t, 42, count)

	_, err = repo.FindJobExecutionByID(ctx, -1)
	assert.ErrorIs(t, err, repository.ErrJobExecutionNotFound)

	byName, err := repo.FindJobExecutionsByJobName(ctx, "import")
	require.NoError(t, err)
	require.Len(t, byName, 2)
	assert.Equal(t, second.ID, byName[0].ID)
	assert.Equal(t, first.ID, byName[1].ID)

	running, err := repo.FindRunningJobExecutions(ctx)
	require.NoError(t, err)
	ids := make([]int64, 0, len(running))
	for _, je := range running {
		ids = append(ids, je.ID)
	}
	assert.ElementsMatch(t, []int64{second.ID, other.ID}, ids)

	unknown := model.NewJobExecution(model.NextExecutionID(), "import", model.NewJobParameters())
	assert.ErrorIs(t, repo.UpdateJobExecution(ctx, unknown), repository.ErrJobExecutionNotFound)
}

func TestOpenJobRepository_ReopenKeepsRowsAndAdvancesIDs(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t)

	repo, err := OpenJobRepository(ctx, cfg)
	require.NoError(t, err)
	stored := model.NewJobExecution(model.NextExecutionID()+1000, "import", model.NewJobParameters())
	require.NoError(t, repo.SaveJobExecution(ctx, stored))
	require.NoError(t, repo.Close())

	reopened, err := OpenJobRepository(ctx, cfg)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Greater(t, model.NextExecutionID(), stored.ID)
	found, err := reopened.FindJobExecutionByID(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusStarting, found.Status)
}

func TestOpenJobRepository_UnknownDatabaseRef(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Surfin.Repository.DatabaseRef = "missing"

	_, err := OpenJobRepository(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func newMockRepository(t *testing.T) (*GormJobRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(gormmysql.New(gormmysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)
	return NewGormJobRepository(db), mock
}

func TestGormJobRepository_FindPropagatesDriverErrors(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery("SELECT \\* FROM `batch_job_execution` WHERE id = \\?").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.FindJobExecutionByID(context.Background(), 7)
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrJobExecutionNotFound)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormJobRepository_FindMissingRow(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery("SELECT \\* FROM `batch_job_execution` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id", "job_name"}))

	_, err := repo.FindJobExecutionByID(context.Background(), 8)
	assert.ErrorIs(t, err, repository.ErrJobExecutionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormJobRepository_UpdateMissingRow(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `batch_job_execution` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	je := model.NewJobExecution(9, "import", model.NewJobParameters())
	err := repo.UpdateJobExecution(context.Background(), je)
	assert.ErrorIs(t, err, repository.ErrJobExecutionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
