package sql

import "time"

// JobExecutionEntity is the row form of a JobExecution.
// Parameters, failures and the execution context are stored as JSON text.
type JobExecutionEntity struct {
	ID               int64      `gorm:"column:id;primaryKey;autoIncrement:false"`
	JobName          string     `gorm:"column:job_name"`
	Parameters       string     `gorm:"column:parameters"`
	StartTime        time.Time  `gorm:"column:start_time"`
	EndTime          *time.Time `gorm:"column:end_time"`
	Status           string     `gorm:"column:status"`
	ExitStatus       string     `gorm:"column:exit_status"`
	Failures         string     `gorm:"column:failures"`
	ExecutionContext string     `gorm:"column:execution_context"`
	CreateTime       time.Time  `gorm:"column:create_time"`
	LastUpdated      time.Time  `gorm:"column:last_updated"`
	Version          int        `gorm:"column:version"`
}

func (JobExecutionEntity) TableName() string {
	return "batch_job_execution"
}
