// Package notification reports finished job executions to a port.Notifier.
package notification

import (
	"context"
	"fmt"

	port "github.com/forlulz/spring-batch/pkg/batch/core/application/port"
	corelistener "github.com/forlulz/spring-batch/pkg/batch/core/listener"
	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

// LoggingNotifier is a Notifier that writes notifications to the framework log.
type LoggingNotifier struct{}

// NewLoggingNotifier creates a new instance of LoggingNotifier.
func NewLoggingNotifier() port.Notifier {
	return &LoggingNotifier{}
}

// NotifyJobCompletion logs a summary of execution.
func (n *LoggingNotifier) NotifyJobCompletion(ctx context.Context, execution *model.JobExecution) {
	message := Summary(execution)
	if execution.GetStatus() == model.BatchStatusCompleted {
		logger.Infof("%s", message)
	} else {
		logger.Warnf("%s", message)
	}
}

var _ port.Notifier = (*LoggingNotifier)(nil)

// Summary renders the one-line notification text for execution.
func Summary(execution *model.JobExecution) string {
	var duration string
	if execution.EndTime != nil {
		duration = execution.EndTime.Sub(execution.StartTime).String()
	} else {
		duration = "n/a"
	}
	return fmt.Sprintf(
		"Job Notification: Job '%s' (ID: %d) finished with Status: %s, ExitStatus: %s. Duration: %s, Failures: %d",
		execution.JobName,
		execution.ID,
		execution.GetStatus(),
		execution.GetExitStatus(),
		duration,
		len(execution.GetFailures()),
	)
}

// NotificationListener forwards finished executions to a Notifier. Only the
// after-job hook is declared; the adapter treats the missing before-job hook as a no-op.
type NotificationListener struct {
	corelistener.AfterJob `listener:"OnJobCompletion"`

	notifier  port.Notifier
	onlyFails bool
}

// NotificationProperties are bound from surfin.listener_properties.notificationJobListener.
type NotificationProperties struct {
	// OnlyFailures suppresses notifications of COMPLETED executions.
	OnlyFailures bool `yaml:"only_failures"`
}

// NewNotificationListener creates a listener notifying notifier.
func NewNotificationListener(notifier port.Notifier, props NotificationProperties) *NotificationListener {
	return &NotificationListener{notifier: notifier, onlyFails: props.OnlyFailures}
}

// OnJobCompletion sends a notification for jobExecution.
func (l *NotificationListener) OnJobCompletion(jobExecution *model.JobExecution) {
	if l.onlyFails && jobExecution.GetStatus() == model.BatchStatusCompleted {
		return
	}
	l.notifier.NotifyJobCompletion(context.Background(), jobExecution)
}
