package expression

import (
	"go.uber.org/fx"
)

// Module provides DefaultExpressionResolver as port.ExpressionResolver.
var Module = fx.Options(
	fx.Provide(NewDefaultExpressionResolver),
)
