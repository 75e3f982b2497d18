package sql

import (
	"context"

	dbconfig "github.com/forlulz/spring-batch/pkg/batch/adapter/database/config"
	gormadapter "github.com/forlulz/spring-batch/pkg/batch/adapter/database/gorm"
	// Dialects selectable through adapter.database.<name>.type.
	_ "github.com/forlulz/spring-batch/pkg/batch/adapter/database/gorm/mysql"
	_ "github.com/forlulz/spring-batch/pkg/batch/adapter/database/gorm/postgres"
	_ "github.com/forlulz/spring-batch/pkg/batch/adapter/database/gorm/sqlite"
	config "github.com/forlulz/spring-batch/pkg/batch/core/config"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/exception"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

// OpenJobRepository connects to the database named by repository.database_ref,
// applies the schema unless migrations are skipped, and advances the execution id sequence.
// The returned repository owns its connection.
func OpenJobRepository(ctx context.Context, cfg *config.Config) (*GormJobRepository, error) {
	ref := cfg.Surfin.Repository.DatabaseRef
	dbCfg, err := dbconfig.Lookup(cfg, ref)
	if err != nil {
		return nil, exception.NewConfigurationErrorWithCause(moduleName, "invalid job repository database", err)
	}

	if !cfg.Surfin.Repository.SkipMigrations {
		migrationDB, err := gormadapter.Open(dbCfg)
		if err != nil {
			return nil, exception.NewBatchError(moduleName, "failed to open migration connection", err, true, false)
		}
		err = Migrate(migrationDB, dbCfg.Type)
		gormadapter.Close(migrationDB)
		if err != nil {
			return nil, exception.NewBatchError(moduleName, "failed to migrate job repository schema", err, false, false)
		}
	}

	db, err := gormadapter.Open(dbCfg)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to open job repository connection", err, true, false)
	}
	repo := &GormJobRepository{db: db, closeDB: true}
	if err := repo.AdvanceIDSequence(ctx); err != nil {
		repo.Close()
		return nil, err
	}
	logger.Infof("Job repository uses database '%s' (%s).", ref, dbCfg.Type)
	return repo, nil
}
