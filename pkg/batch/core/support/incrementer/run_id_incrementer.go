// Package incrementer provides JobParametersIncrementer implementations applied by
// the launcher before each launch of a job.
package incrementer

import (
	"fmt"

	port "github.com/forlulz/spring-batch/pkg/batch/core/application/port"
	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	logger "github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

// DefaultRunIDKey is the parameter RunIDIncrementer maintains when no key is given.
const DefaultRunIDKey = "run.id"

// RunIDIncrementer sets its key to 1 when absent and increments it otherwise.
type RunIDIncrementer struct {
	key string
}

// NewRunIDIncrementer creates a RunIDIncrementer for key. An empty key selects DefaultRunIDKey.
func NewRunIDIncrementer(key string) *RunIDIncrementer {
	if key == "" {
		key = DefaultRunIDKey
	}
	return &RunIDIncrementer{key: key}
}

// GetNext returns a copy of params with the run id advanced.
func (i *RunIDIncrementer) GetNext(params model.JobParameters) model.JobParameters {
	next := copyParameters(params)
	current, ok := params.GetInt(i.key)
	if !ok {
		next.Put(i.key, 1)
		logger.Debugf("RunIDIncrementer: '%s' not found, setting to 1.", i.key)
		return next
	}
	next.Put(i.key, current+1)
	logger.Debugf("RunIDIncrementer: incrementing '%s' from %d to %d.", i.key, current, current+1)
	return next
}

func (i *RunIDIncrementer) String() string {
	return fmt.Sprintf("RunIDIncrementer[key=%s]", i.key)
}

var _ port.JobParametersIncrementer = (*RunIDIncrementer)(nil)

func copyParameters(params model.JobParameters) model.JobParameters {
	next := model.NewJobParameters()
	for k, v := range params.Params {
		next.Put(k, v)
	}
	return next
}
