// Package config provides core configuration structures and utilities for the batch framework.
package config

import "go.uber.org/fx"

// NewLoggingConfigProvider extracts *LoggingConfig from *Config.
func NewLoggingConfigProvider(cfg *Config) *LoggingConfig {
	return &cfg.Surfin.System.Logging
}

// NewScopeConfigProvider extracts *ScopeConfig from *Config so the scope manager
// does not depend on the whole configuration tree.
func NewScopeConfigProvider(cfg *Config) *ScopeConfig {
	return &cfg.Surfin.Batch.Scope
}

// NewObservabilityConfigProvider extracts *ObservabilityConfig from *Config.
func NewObservabilityConfigProvider(cfg *Config) *ObservabilityConfig {
	return &cfg.Surfin.Observability
}

// NewRepositoryConfigProvider extracts *RepositoryConfig from *Config.
func NewRepositoryConfigProvider(cfg *Config) *RepositoryConfig {
	return &cfg.Surfin.Repository
}

// Module provides configuration-related components to Fx.
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
	fx.Provide(NewLoggingConfigProvider),
	fx.Provide(NewScopeConfigProvider),
	fx.Provide(NewObservabilityConfigProvider),
	fx.Provide(NewRepositoryConfigProvider),
	fx.Provide(func() EnvironmentExpander {
		return NewOsEnvironmentExpander()
	}),
)
