package notification

import (
	"go.uber.org/fx"

	port "github.com/forlulz/spring-batch/pkg/batch/core/application/port"
	config "github.com/forlulz/spring-batch/pkg/batch/core/config"
	corelistener "github.com/forlulz/spring-batch/pkg/batch/core/listener"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/configbinder"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

// ListenerName is the name under which the notification listener is registered.
const ListenerName = "notificationJobListener"

// NewNotificationJobListenerBuilder creates the builder for NotificationListener.
func NewNotificationJobListenerBuilder(notifier port.Notifier) corelistener.JobExecutionListenerBuilder {
	return func(
		_ *config.Config,
		properties map[string]interface{},
	) (any, error) {
		var props NotificationProperties
		if err := configbinder.BindProperties(properties, &props); err != nil {
			return nil, err
		}
		return NewNotificationListener(notifier, props), nil
	}
}

// NotificationListenerParams are the dependencies of RegisterNotificationListener.
type NotificationListenerParams struct {
	fx.In
	Registry *corelistener.Registry
	Builder  corelistener.JobExecutionListenerBuilder `name:"notificationJobListener"`
}

// RegisterNotificationListener registers the notification listener builder.
func RegisterNotificationListener(p NotificationListenerParams) {
	p.Registry.RegisterBuilder(ListenerName, p.Builder)
	logger.Debugf("Notification listener registered.")
}

// Module provides notification-related components.
var Module = fx.Options(
	fx.Provide(NewLoggingNotifier),
	fx.Provide(fx.Annotate(NewNotificationJobListenerBuilder, fx.ResultTags(`name:"notificationJobListener"`))),
	fx.Invoke(RegisterNotificationListener),
)
