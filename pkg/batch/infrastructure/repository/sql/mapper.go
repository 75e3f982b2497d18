package sql

import (
	"encoding/json"
	"fmt"
	"time"

	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
)

func fromDomainJobExecution(je *model.JobExecution) (*JobExecutionEntity, error) {
	// Raw values are stored so that a restart from the stored row sees the real parameters.
	params, err := json.Marshal(je.Parameters.Params)
	if err != nil {
		return nil, fmt.Errorf("encode parameters: %w", err)
	}
	failures, err := json.Marshal(je.GetFailures())
	if err != nil {
		return nil, fmt.Errorf("encode failures: %w", err)
	}
	ec := je.ExecutionContext
	if ec == nil {
		ec = model.NewExecutionContext()
	}
	ecJSON, err := ec.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode execution context: %w", err)
	}

	return &JobExecutionEntity{
		ID:               je.ID,
		JobName:          je.JobName,
		Parameters:       string(params),
		StartTime:        je.StartTime.UTC(),
		EndTime:          utcPtr(je.EndTime),
		Status:           string(je.GetStatus()),
		ExitStatus:       string(je.GetExitStatus()),
		Failures:         string(failures),
		ExecutionContext: string(ecJSON),
		CreateTime:       je.CreateTime.UTC(),
		LastUpdated:      je.LastUpdated.UTC(),
	}, nil
}

func toDomainJobExecution(entity *JobExecutionEntity) (*model.JobExecution, error) {
	params := model.NewJobParameters()
	if entity.Parameters != "" {
		if err := json.Unmarshal([]byte(entity.Parameters), &params.Params); err != nil {
			return nil, fmt.Errorf("decode parameters of execution %d: %w", entity.ID, err)
		}
		if params.Params == nil {
			params = model.NewJobParameters()
		}
	}
	failures := make(model.FailureList, 0)
	if entity.Failures != "" {
		if err := json.Unmarshal([]byte(entity.Failures), &failures); err != nil {
			return nil, fmt.Errorf("decode failures of execution %d: %w", entity.ID, err)
		}
	}
	ec := model.NewExecutionContext()
	if entity.ExecutionContext != "" {
		if err := ec.UnmarshalJSON([]byte(entity.ExecutionContext)); err != nil {
			return nil, fmt.Errorf("decode execution context of execution %d: %w", entity.ID, err)
		}
	}

	return &model.JobExecution{
		ID:               entity.ID,
		JobName:          entity.JobName,
		Parameters:       params,
		StartTime:        entity.StartTime,
		EndTime:          entity.EndTime,
		Status:           model.JobStatus(entity.Status),
		ExitStatus:       model.ExitStatus(entity.ExitStatus),
		Failures:         failures,
		CreateTime:       entity.CreateTime,
		LastUpdated:      entity.LastUpdated,
		ExecutionContext: ec,
	}, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
