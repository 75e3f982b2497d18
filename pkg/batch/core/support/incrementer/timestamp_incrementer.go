package incrementer

import (
	"fmt"
	"strconv"
	"time"

	port "github.com/forlulz/spring-batch/pkg/batch/core/application/port"
	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
)

// DefaultTimestampKey is the parameter TimestampIncrementer sets when no key is given.
const DefaultTimestampKey = "timestamp"

// TimestampIncrementer stamps each launch with the current Unix time in milliseconds.
type TimestampIncrementer struct {
	key string
	now func() time.Time
}

// NewTimestampIncrementer creates a TimestampIncrementer for key. An empty key selects DefaultTimestampKey.
func NewTimestampIncrementer(key string) *TimestampIncrementer {
	if key == "" {
		key = DefaultTimestampKey
	}
	return &TimestampIncrementer{key: key, now: time.Now}
}

// GetNext returns a copy of params with the timestamp set, as a decimal string.
func (i *TimestampIncrementer) GetNext(params model.JobParameters) model.JobParameters {
	next := copyParameters(params)
	next.Put(i.key, strconv.FormatInt(i.now().UnixMilli(), 10))
	return next
}

func (i *TimestampIncrementer) String() string {
	return fmt.Sprintf("TimestampIncrementer[key=%s]", i.key)
}

var _ port.JobParametersIncrementer = (*TimestampIncrementer)(nil)
