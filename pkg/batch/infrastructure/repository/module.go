// Package repository selects the job execution store configured under surfin.repository.
package repository

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	config "github.com/forlulz/spring-batch/pkg/batch/core/config"
	repository "github.com/forlulz/spring-batch/pkg/batch/core/domain/repository"
	"github.com/forlulz/spring-batch/pkg/batch/infrastructure/repository/inmemory"
	sqlrepo "github.com/forlulz/spring-batch/pkg/batch/infrastructure/repository/sql"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/exception"
)

// NewJobExecutionRepository builds the configured repository and closes it on application stop.
func NewJobExecutionRepository(lc fx.Lifecycle, cfg *config.Config) (repository.JobExecutionRepository, error) {
	var repo repository.JobExecutionRepository
	switch cfg.Surfin.Repository.Type {
	case "", config.RepositoryTypeInMemory:
		repo = inmemory.NewInMemoryJobRepository()
	case config.RepositoryTypeSQL:
		sqlRepo, err := sqlrepo.OpenJobRepository(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		repo = sqlRepo
	default:
		return nil, exception.NewConfigurationError("repository",
			fmt.Sprintf("unknown repository.type '%s'", cfg.Surfin.Repository.Type))
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return repo.Close()
		},
	})
	return repo, nil
}

// Module provides the configured repository.JobExecutionRepository.
var Module = fx.Options(
	fx.Provide(NewJobExecutionRepository),
)
