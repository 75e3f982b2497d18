package listener

import (
	"go.uber.org/fx"

	"github.com/forlulz/spring-batch/pkg/batch/listener/archive"
	"github.com/forlulz/spring-batch/pkg/batch/listener/logging"
	"github.com/forlulz/spring-batch/pkg/batch/listener/metrics"
	"github.com/forlulz/spring-batch/pkg/batch/listener/notification"
	"github.com/forlulz/spring-batch/pkg/batch/listener/tracing"
)

// Module aggregates the stock listener modules. The archive listener needs a
// storage.ConnectionResolver in the graph.
var Module = fx.Options(
	logging.Module,
	metrics.Module,
	tracing.Module,
	notification.Module,
	archive.Module,
)
