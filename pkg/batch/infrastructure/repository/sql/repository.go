// Package sql stores job executions in a relational database through GORM.
package sql

import (
	"context"
	dbsql "database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	repository "github.com/forlulz/spring-batch/pkg/batch/core/domain/repository"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/exception"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

const moduleName = "sql_repository"

// GormJobRepository implements repository.JobExecutionRepository on a GORM connection.
// Each find returns a fresh copy; later changes to the stored row are not reflected in it.
type GormJobRepository struct {
	db      *gorm.DB
	closeDB bool
}

// NewGormJobRepository wraps db. The repository does not close db.
func NewGormJobRepository(db *gorm.DB) *GormJobRepository {
	return &GormJobRepository{db: db}
}

// AdvanceIDSequence moves the process execution id sequence past the largest stored id.
func (r *GormJobRepository) AdvanceIDSequence(ctx context.Context) error {
	var maxID dbsql.NullInt64
	row := r.db.WithContext(ctx).Model(&JobExecutionEntity{}).Select("MAX(id)").Row()
	if err := row.Scan(&maxID); err != nil {
		return exception.NewBatchError(moduleName, "failed to read the largest execution id", err, true, false)
	}
	if maxID.Valid {
		model.AdvanceExecutionID(maxID.Int64)
		logger.Debugf("Execution id sequence advanced past %d.", maxID.Int64)
	}
	return nil
}

func (r *GormJobRepository) SaveJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	const op = "GormJobRepository.SaveJobExecution"
	if jobExecution == nil {
		return exception.NewInvalidArgumentError(moduleName, "jobExecution must not be nil")
	}
	entity, err := fromDomainJobExecution(jobExecution)
	if err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to map JobExecution (ID: %d)", jobExecution.ID), err, false, false)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&JobExecutionEntity{}).Where("id = ?", entity.ID).Count(&count).Error; err != nil {
			return exception.NewBatchError(op, fmt.Sprintf("failed to check JobExecution (ID: %d)", entity.ID), err, true, false)
		}
		if count > 0 {
			return fmt.Errorf("%w: id %d", repository.ErrJobExecutionExists, entity.ID)
		}
		if err := tx.Create(entity).Error; err != nil {
			return exception.NewBatchError(op, fmt.Sprintf("failed to save JobExecution (ID: %d)", entity.ID), err, true, false)
		}
		return nil
	})
}

func (r *GormJobRepository) UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	const op = "GormJobRepository.UpdateJobExecution"
	if jobExecution == nil {
		return exception.NewInvalidArgumentError(moduleName, "jobExecution must not be nil")
	}
	entity, err := fromDomainJobExecution(jobExecution)
	if err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to map JobExecution (ID: %d)", jobExecution.ID), err, false, false)
	}

	result := r.db.WithContext(ctx).Model(&JobExecutionEntity{}).
		Where("id = ?", entity.ID).
		Updates(map[string]interface{}{
			"job_name":          entity.JobName,
			"parameters":        entity.Parameters,
			"start_time":        entity.StartTime,
			"end_time":          entity.EndTime,
			"status":            entity.Status,
			"exit_status":       entity.ExitStatus,
			"failures":          entity.Failures,
			"execution_context": entity.ExecutionContext,
			"last_updated":      time.Now().UTC(),
			"version":           gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to update JobExecution (ID: %d)", entity.ID), result.Error, true, false)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d", repository.ErrJobExecutionNotFound, entity.ID)
	}
	return nil
}

func (r *GormJobRepository) FindJobExecutionByID(ctx context.Context, executionID int64) (*model.JobExecution, error) {
	const op = "GormJobRepository.FindJobExecutionByID"
	var entity JobExecutionEntity
	err := r.db.WithContext(ctx).Where("id = ?", executionID).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", repository.ErrJobExecutionNotFound, executionID)
	}
	if err != nil {
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to find JobExecution by ID: %d", executionID), err, true, false)
	}
	return toDomainJobExecution(&entity)
}

func (r *GormJobRepository) FindJobExecutionsByJobName(ctx context.Context, jobName string) ([]*model.JobExecution, error) {
	const op = "GormJobRepository.FindJobExecutionsByJobName"
	var entities []JobExecutionEntity
	err := r.db.WithContext(ctx).
		Where("job_name = ?", jobName).
		Order("create_time DESC").Order("id DESC").
		Find(&entities).Error
	if err != nil {
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to find JobExecutions of '%s'", jobName), err, true, false)
	}
	return toDomainJobExecutions(entities)
}

func (r *GormJobRepository) FindRunningJobExecutions(ctx context.Context) ([]*model.JobExecution, error) {
	const op = "GormJobRepository.FindRunningJobExecutions"
	finished := []string{
		string(model.BatchStatusCompleted),
		string(model.BatchStatusFailed),
		string(model.BatchStatusStopped),
		string(model.BatchStatusAbandoned),
	}
	var entities []JobExecutionEntity
	err := r.db.WithContext(ctx).
		Where("status NOT IN ?", finished).
		Order("create_time DESC").Order("id DESC").
		Find(&entities).Error
	if err != nil {
		return nil, exception.NewBatchError(op, "failed to find running JobExecutions", err, true, false)
	}
	return toDomainJobExecutions(entities)
}

func toDomainJobExecutions(entities []JobExecutionEntity) ([]*model.JobExecution, error) {
	out := make([]*model.JobExecution, 0, len(entities))
	for i := range entities {
		je, err := toDomainJobExecution(&entities[i])
		if err != nil {
			return nil, err
		}
		out = append(out, je)
	}
	return out, nil
}

// Close closes the connection pool when the repository opened it.
func (r *GormJobRepository) Close() error {
	if !r.closeDB {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	logger.Infof("Closing job repository database connection.")
	return sqlDB.Close()
}

var _ repository.JobExecutionRepository = (*GormJobRepository)(nil)
