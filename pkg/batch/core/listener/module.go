package listener

import "go.uber.org/fx"

// Module provides the shared listener Registry.
var Module = fx.Options(
	fx.Provide(NewRegistry),
)
