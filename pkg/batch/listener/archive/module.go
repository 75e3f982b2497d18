package archive

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	storageAdapter "github.com/forlulz/spring-batch/pkg/batch/adapter/storage"
	port "github.com/forlulz/spring-batch/pkg/batch/core/application/port"
	config "github.com/forlulz/spring-batch/pkg/batch/core/config"
	corelistener "github.com/forlulz/spring-batch/pkg/batch/core/listener"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/configbinder"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/exception"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

// ListenerName is the name under which the archive listener is registered.
const ListenerName = "executionArchiveListener"

// NewExecutionArchiveListenerBuilder creates the builder for ExecutionArchiveListener.
// The storage connection is resolved when the listener is built. expressions may
// be nil, in which case the prefix is used as written.
func NewExecutionArchiveListenerBuilder(resolver *storageAdapter.ConnectionResolver, expressions port.ExpressionResolver) corelistener.JobExecutionListenerBuilder {
	return func(_ *config.Config, properties map[string]interface{}) (any, error) {
		var props ArchiveProperties
		if err := configbinder.BindProperties(properties, &props); err != nil {
			return nil, err
		}
		if props.Storage == "" {
			return nil, exception.NewConfigurationError(moduleName,
				fmt.Sprintf("listener_properties.%s.storage is required", ListenerName))
		}
		conn, err := resolver.ResolveStorageConnection(context.Background(), props.Storage)
		if err != nil {
			return nil, err
		}
		l, err := NewExecutionArchiveListener(conn, props)
		if err != nil {
			return nil, err
		}
		return l.WithExpressionResolver(expressions), nil
	}
}

// ArchiveListenerParams are the dependencies of RegisterArchiveListener.
type ArchiveListenerParams struct {
	fx.In
	Registry *corelistener.Registry
	Builder  corelistener.JobExecutionListenerBuilder `name:"executionArchiveListener"`
}

// RegisterArchiveListener registers the archive listener builder.
func RegisterArchiveListener(p ArchiveListenerParams) {
	p.Registry.RegisterBuilder(ListenerName, p.Builder)
	logger.Debugf("Execution archive listener registered.")
}

// Module provides the archive listener. It needs a *storage.ConnectionResolver
// and a port.ExpressionResolver.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewExecutionArchiveListenerBuilder, fx.ResultTags(`name:"executionArchiveListener"`))),
	fx.Invoke(RegisterArchiveListener),
)
