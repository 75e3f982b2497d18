// Package model defines the job execution domain types shared by listeners,
// the synchronization manager and the runner.
package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/forlulz/spring-batch/pkg/batch/support/util/exception"
	logger "github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/serialization"

	"github.com/google/uuid"
)

// JobStatus represents the state of a job execution.
type JobStatus string

const (
	BatchStatusStarting  JobStatus = "STARTING"
	BatchStatusStarted   JobStatus = "STARTED"
	BatchStatusStopping  JobStatus = "STOPPING"
	BatchStatusStopped   JobStatus = "STOPPED"
	BatchStatusCompleted JobStatus = "COMPLETED"
	BatchStatusFailed    JobStatus = "FAILED"
	BatchStatusAbandoned JobStatus = "ABANDONED"
	BatchStatusUnknown   JobStatus = "UNKNOWN"
)

// String returns the string representation of the JobStatus.
func (s JobStatus) String() string {
	return string(s)
}

// IsFinished checks if the JobStatus represents a finished state.
func (s JobStatus) IsFinished() bool {
	switch s {
	case BatchStatusCompleted, BatchStatusFailed, BatchStatusStopped, BatchStatusAbandoned:
		return true
	default:
		return false
	}
}

// ToExitStatus converts the JobStatus to its corresponding ExitStatus.
func (s JobStatus) ToExitStatus() ExitStatus {
	switch s {
	case BatchStatusCompleted:
		return ExitStatusCompleted
	case BatchStatusFailed:
		return ExitStatusFailed
	case BatchStatusStopped:
		return ExitStatusStopped
	case BatchStatusAbandoned:
		return ExitStatusAbandoned
	default:
		return ExitStatusUnknown
	}
}

// ExitStatus represents the detailed status upon job completion.
type ExitStatus string

const (
	ExitStatusUnknown   ExitStatus = "UNKNOWN"
	ExitStatusCompleted ExitStatus = "COMPLETED"
	ExitStatusFailed    ExitStatus = "FAILED"
	ExitStatusStopped   ExitStatus = "STOPPED"
	ExitStatusAbandoned ExitStatus = "ABANDONED"
	ExitStatusNoOp      ExitStatus = "NO_OP"
)

// String returns the ExitStatus as a string.
func (s ExitStatus) String() string {
	return string(s)
}

// FailureList holds the distinct failure messages of an execution.
type FailureList []string

// JobParameters is a structure holding parameters for job execution.
type JobParameters struct {
	Params map[string]interface{}
}

// JobExecution is one attempt to run a job.
// Status fields are written by the engine and may be read by listeners on other
// goroutines; use the accessor methods rather than the fields in that case.
type JobExecution struct {
	ID               int64
	JobName          string
	Parameters       JobParameters
	StartTime        time.Time
	EndTime          *time.Time
	Status           JobStatus
	ExitStatus       ExitStatus
	Failures         FailureList
	CreateTime       time.Time
	LastUpdated      time.Time
	ExecutionContext *ExecutionContext
	CancelFunc       context.CancelFunc

	mu sync.RWMutex
}

var executionIDSeq atomic.Int64

// NextExecutionID returns a process-unique, increasing execution id.
func NextExecutionID() int64 {
	return executionIDSeq.Add(1)
}

// AdvanceExecutionID makes NextExecutionID return values above floor, so ids
// stored by an earlier process are not handed out again.
func AdvanceExecutionID(floor int64) {
	for {
		current := executionIDSeq.Load()
		if current >= floor || executionIDSeq.CompareAndSwap(current, floor) {
			return
		}
	}
}

// NewID generates a new UUID string.
func NewID() string {
	return uuid.New().String()
}

// NewJobParameters creates a new instance of JobParameters.
func NewJobParameters() JobParameters {
	return JobParameters{
		Params: make(map[string]interface{}),
	}
}

// Put sets a value in JobParameters with the specified key and value.
func (jp JobParameters) Put(key string, value interface{}) {
	jp.Params[key] = value
}

// Get retrieves the value for the specified key. Returns nil if the value does not exist.
func (jp JobParameters) Get(key string) interface{} {
	return jp.Params[key]
}

// GetString retrieves the value for the specified key as a string.
func (jp JobParameters) GetString(key string) (string, bool) {
	val, ok := jp.Params[key]
	if !ok {
		return "", false
	}
	str, ok := val.(string)
	return str, ok
}

// GetInt retrieves the value for the specified key as an int.
func (jp JobParameters) GetInt(key string) (int, bool) {
	val, ok := jp.Params[key]
	if !ok {
		return 0, false
	}
	// Numbers decoded from JSON arrive as float64.
	if i, ok := val.(int); ok {
		return i, true
	}
	if f, ok := val.(float64); ok {
		return int(f), true
	}
	return 0, false
}

// GetBool retrieves the value for the specified key as a bool.
func (jp JobParameters) GetBool(key string) (bool, bool) {
	val, ok := jp.Params[key]
	if !ok {
		return false, false
	}
	b, ok := val.(bool)
	return b, ok
}

// GetFloat64 retrieves the value for the specified key as a float64.
func (jp JobParameters) GetFloat64(key string) (float64, bool) {
	val, ok := jp.Params[key]
	if !ok {
		return 0.0, false
	}
	f, ok := val.(float64)
	return f, ok
}

// Contains reports whether jp holds every key of partialParams with an equal value.
// Numeric values compare by magnitude regardless of their Go type.
func (jp JobParameters) Contains(partialParams JobParameters) bool {
	for key, partialValue := range partialParams.Params {
		actualValue, ok := jp.Params[key]
		if !ok {
			return false
		}
		if !deepEqualWithNumericTolerance(actualValue, partialValue) {
			return false
		}
	}
	return true
}

func deepEqualWithNumericTolerance(a, b interface{}) bool {
	af, aok := toFloat64(a)
	bf, bok := toFloat64(b)
	if aok && bok {
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// Hash returns a hex SHA-256 of the parameters' canonical JSON form, independent of map order.
func (jp JobParameters) Hash() (string, error) {
	normalizedJSON, err := jp.toCanonicalJSON()
	if err != nil {
		return "", exception.NewBatchError("job_parameters", "Failed to marshal JobParameters to canonical JSON for hash calculation", err, false, false)
	}

	hasher := sha256.New()
	hasher.Write([]byte(normalizedJSON))
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// toCanonicalJSON converts JobParameters to a JSON string with recursively sorted keys.
func (jp JobParameters) toCanonicalJSON() (string, error) {
	var marshalCanonical func(interface{}) ([]byte, error)
	marshalCanonical = func(val interface{}) ([]byte, error) {
		m, ok := val.(map[string]interface{})
		if !ok {
			return json.Marshal(val)
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var sb strings.Builder
		sb.WriteString("{")
		for i, k := range keys {
			keyBytes, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			valBytes, err := marshalCanonical(m[k])
			if err != nil {
				return nil, err
			}
			if i > 0 {
				sb.WriteString(",")
			}
			sb.Write(keyBytes)
			sb.WriteString(":")
			sb.Write(valBytes)
		}
		sb.WriteString("}")
		return []byte(sb.String()), nil
	}

	jsonBytes, err := marshalCanonical(jp.Params)
	if err != nil {
		return "", err
	}
	return string(jsonBytes), nil
}

// String returns the JSON form of JobParameters with sensitive values masked.
func (jp JobParameters) String() string {
	data, err := serialization.MarshalJobParameters(jp.Params)
	if err != nil {
		return fmt.Sprintf("{[ERROR: Failed to marshal masked parameters: %v]}", err)
	}
	return string(data)
}

// NewJobExecution creates a JobExecution in STARTING state with an empty ExecutionContext.
func NewJobExecution(id int64, jobName string, params JobParameters) *JobExecution {
	if params.Params == nil {
		params = NewJobParameters()
	}
	now := time.Now()
	return &JobExecution{
		ID:               id,
		JobName:          jobName,
		Parameters:       params,
		StartTime:        now,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusUnknown,
		CreateTime:       now,
		LastUpdated:      now,
		Failures:         make(FailureList, 0),
		ExecutionContext: NewExecutionContext(),
	}
}

// NewJobExecutionWithID creates an anonymous JobExecution with no parameters.
func NewJobExecutionWithID(id int64) *JobExecution {
	return NewJobExecution(id, "", NewJobParameters())
}

// String identifies the execution in log messages.
func (je *JobExecution) String() string {
	return fmt.Sprintf("JobExecution{id=%d, job=%s, status=%s}", je.ID, je.JobName, je.GetStatus())
}

// GetStatus returns the current status.
func (je *JobExecution) GetStatus() JobStatus {
	je.mu.RLock()
	defer je.mu.RUnlock()
	return je.Status
}

// GetExitStatus returns the current exit status.
func (je *JobExecution) GetExitStatus() ExitStatus {
	je.mu.RLock()
	defer je.mu.RUnlock()
	return je.ExitStatus
}

// GetFailures returns a copy of the recorded failure messages.
func (je *JobExecution) GetFailures() []string {
	je.mu.RLock()
	defer je.mu.RUnlock()
	out := make([]string, len(je.Failures))
	copy(out, je.Failures)
	return out
}

// isValidJobTransition checks if the state transition for JobExecution is valid.
func isValidJobTransition(current, next JobStatus) bool {
	switch current {
	case BatchStatusStarting:
		return next == BatchStatusStarted || next == BatchStatusFailed || next == BatchStatusStopped || next == BatchStatusAbandoned
	case BatchStatusStarted:
		return next == BatchStatusStopping || next == BatchStatusCompleted || next == BatchStatusFailed || next == BatchStatusAbandoned
	case BatchStatusStopping:
		return next == BatchStatusStopped || next == BatchStatusFailed || next == BatchStatusAbandoned
	case BatchStatusFailed, BatchStatusStopped:
		return next == BatchStatusAbandoned
	default:
		return false
	}
}

// TransitionTo changes the status if the transition is valid.
func (je *JobExecution) TransitionTo(newStatus JobStatus) error {
	je.mu.Lock()
	defer je.mu.Unlock()
	return je.transitionLocked(newStatus)
}

func (je *JobExecution) transitionLocked(newStatus JobStatus) error {
	if !isValidJobTransition(je.Status, newStatus) {
		return fmt.Errorf("JobExecution (ID: %d): Invalid state transition: %s -> %s", je.ID, je.Status, newStatus)
	}
	je.Status = newStatus
	je.LastUpdated = time.Now()
	return nil
}

// mark forces newStatus even when the transition is invalid, logging a warning.
// A zero exit status leaves ExitStatus unchanged.
func (je *JobExecution) mark(newStatus JobStatus, exit ExitStatus, final bool) {
	je.mu.Lock()
	defer je.mu.Unlock()
	if err := je.transitionLocked(newStatus); err != nil {
		logger.Warnf("Could not update JobExecution (ID: %d) status to %s: %v", je.ID, newStatus, err)
		je.Status = newStatus
	}
	if exit != "" {
		je.ExitStatus = exit
	}
	now := time.Now()
	if final {
		je.EndTime = &now
	}
	je.LastUpdated = now
}

// MarkAsStarted updates the JobExecution status to STARTED.
func (je *JobExecution) MarkAsStarted() {
	je.mark(BatchStatusStarted, "", false)
}

// MarkAsCompleted updates the JobExecution status to COMPLETED.
func (je *JobExecution) MarkAsCompleted() {
	je.mark(BatchStatusCompleted, ExitStatusCompleted, true)
}

// MarkAsFailed updates the JobExecution status to FAILED and records err.
func (je *JobExecution) MarkAsFailed(err error) {
	je.mark(BatchStatusFailed, ExitStatusFailed, true)
	je.AddFailureException(err)
}

// MarkAsStopped updates the JobExecution status to STOPPED.
func (je *JobExecution) MarkAsStopped() {
	je.mark(BatchStatusStopped, ExitStatusStopped, true)
}

// MarkAsAbandoned updates the JobExecution status to ABANDONED.
func (je *JobExecution) MarkAsAbandoned() {
	je.mark(BatchStatusAbandoned, ExitStatusAbandoned, true)
}

// AddFailureException records err's message unless the same message is already recorded.
func (je *JobExecution) AddFailureException(err error) {
	if err == nil {
		return
	}
	errMsg := exception.ExtractErrorMessage(err)

	je.mu.Lock()
	defer je.mu.Unlock()
	for _, existing := range je.Failures {
		if existing == errMsg {
			logger.Debugf("Skipped adding duplicate error '%s' to JobExecution (ID: %d).", errMsg, je.ID)
			return
		}
	}
	je.Failures = append(je.Failures, errMsg)
	je.LastUpdated = time.Now()
}
