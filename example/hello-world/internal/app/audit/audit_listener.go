// Package audit holds a listener declared with markers instead of the listener interface.
package audit

import (
	"sync"
	"time"

	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	"github.com/forlulz/spring-batch/pkg/batch/core/listener"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

// ListenerName is the name referenced from surfin.batch.listeners.
const ListenerName = "auditJobListener"

// Entry is one audited execution.
type Entry struct {
	ExecutionID int64
	JobName     string
	Status      model.JobStatus
	Elapsed     time.Duration
}

// AuditListener keeps a trail of finished executions.
type AuditListener struct {
	listener.BeforeJob `listener:"Open"`
	listener.AfterJob  `listener:"Record"`

	mu      sync.Mutex
	started time.Time
	trail   []Entry
}

// NewAuditListener creates an empty AuditListener.
func NewAuditListener() *AuditListener {
	return &AuditListener{}
}

func (a *AuditListener) Open() {
	a.mu.Lock()
	a.started = time.Now()
	a.mu.Unlock()
}

func (a *AuditListener) Record(je *model.JobExecution) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e := Entry{ExecutionID: je.ID, JobName: je.JobName, Status: je.GetStatus()}
	if !a.started.IsZero() {
		e.Elapsed = time.Since(a.started)
	}
	a.trail = append(a.trail, e)
	logger.Infof("Audit: job '%s' (ID: %d) ended %s after %s.", e.JobName, e.ExecutionID, e.Status, e.Elapsed)
}

// Trail returns a copy of the recorded entries.
func (a *AuditListener) Trail() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Entry(nil), a.trail...)
}

// Register adds the listener to the registry under ListenerName.
func Register(registry *listener.Registry, audit *AuditListener) error {
	return registry.RegisterTarget(ListenerName, audit)
}
