package config

// Package config provides structures and utilities for managing application configuration.

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
type LogLevel string

const (
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelSilent LogLevel = "SILENT"
)

// Policies applied when a task closes more scopes than it registered.
const (
	// UnbalancedClosePolicyError makes Close return an UnbalancedCloseError.
	UnbalancedClosePolicyError = "error"
	// UnbalancedClosePolicyIgnore makes Close log a warning and return nil.
	UnbalancedClosePolicyIgnore = "ignore"
)

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// MaskedParameterKeys is a list of keys in JobParameters whose values should be masked in logs.
	MaskedParameterKeys []string `yaml:"masked_parameter_keys"`
}

// ScopeConfig holds settings of the job synchronization manager.
type ScopeConfig struct {
	// UnbalancedClosePolicy is "error" (default) or "ignore".
	UnbalancedClosePolicy string `yaml:"unbalanced_close_policy"`
}

// BatchConfig holds configuration specific to the batch processing engine.
type BatchConfig struct {
	// JobName is the default job name if not specified elsewhere.
	JobName string `yaml:"job_name"`
	// MetricsAsyncBufferSize is the buffer size for asynchronous metric recording.
	MetricsAsyncBufferSize int `yaml:"metrics_async_buffer_size"`
	// Scope configures job-execution scoping.
	Scope ScopeConfig `yaml:"scope"`
	// Listeners lists listener references (by registered name) attached to the default job.
	Listeners []string `yaml:"listeners"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC", "Asia/Tokyo").
	Timezone string `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
}

// Metrics backends.
const (
	MetricsBackendPrometheus = "prometheus"
	MetricsBackendOTel       = "otel"
	MetricsBackendNone       = "none"
)

// OTLP exporters for traces and OTel metrics.
const (
	ExporterNone     = "none"
	ExporterOTLPGRPC = "otlp-grpc"
	ExporterOTLPHTTP = "otlp-http"
)

// MetricsConfig selects where job and scope metrics go.
type MetricsConfig struct {
	// Backend is "prometheus" (default), "otel" or "none".
	Backend string `yaml:"backend"`
	// Exporter is used by the otel backend: "none", "otlp-grpc" or "otlp-http".
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
	// IntervalSeconds is the export interval of the otel backend.
	IntervalSeconds int `yaml:"interval_seconds"`
}

// TracingConfig selects where job spans are exported.
type TracingConfig struct {
	// Exporter is "none" (default), "otlp-grpc" or "otlp-http".
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// ObservabilityConfig configures the infrastructure metrics module.
type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name"`
	Metrics     MetricsConfig `yaml:"metrics"`
	Tracing     TracingConfig `yaml:"tracing"`
}

// Job execution repository types.
const (
	RepositoryTypeInMemory = "inmemory"
	RepositoryTypeSQL      = "sql"
)

// RepositoryConfig selects where launched job executions are stored.
type RepositoryConfig struct {
	// Type is "inmemory" (default) or "sql".
	Type string `yaml:"type"`
	// DatabaseRef names the adapter.database entry used by the sql repository.
	DatabaseRef string `yaml:"database_ref"`
	// SkipMigrations disables applying the schema migrations on startup.
	SkipMigrations bool `yaml:"skip_migrations"`
}

// SurfinConfig holds all configuration under the "surfin" top-level key.
type SurfinConfig struct {
	Batch         BatchConfig         `yaml:"batch"`
	System        SystemConfig        `yaml:"system"`
	Security      SecurityConfig      `yaml:"security"`
	Observability ObservabilityConfig `yaml:"observability"`
	Repository    RepositoryConfig    `yaml:"repository"`
	// AdapterConfigs holds named connection settings per adapter kind, e.g.
	// adapter.database.metadata or adapter.storage.archive. Each adapter decodes its own entries.
	AdapterConfigs map[string]map[string]interface{} `yaml:"adapter"`
	// ListenerProperties holds free-form properties per listener name, bound with configbinder.
	ListenerProperties map[string]map[string]interface{} `yaml:"listener_properties"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	Surfin SurfinConfig `yaml:"surfin"`
	// EmbeddedConfig holds configuration loaded from an embedded source, not from YAML.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// GlobalConfig is a pointer to the configuration instance shared across the application.
// It is set by NewConfigProvider.
var GlobalConfig *Config

// GetMaskedParameterKeys retrieves the list of keys to be masked from the global configuration.
func GetMaskedParameterKeys() []string {
	if GlobalConfig == nil {
		return []string{"password", "api_key", "secret"}
	}
	return GlobalConfig.Surfin.Security.MaskedParameterKeys
}

// NewConfig returns a new instance of Config with default values.
func NewConfig() *Config {
	return &Config{
		Surfin: SurfinConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Batch: BatchConfig{
				MetricsAsyncBufferSize: 100,
				Scope: ScopeConfig{
					UnbalancedClosePolicy: UnbalancedClosePolicyError,
				},
			},
			Security: SecurityConfig{
				MaskedParameterKeys: []string{"password", "api_key", "secret"},
			},
			Observability: ObservabilityConfig{
				ServiceName: "spring-batch",
				Metrics: MetricsConfig{
					Backend:         MetricsBackendPrometheus,
					Exporter:        ExporterNone,
					IntervalSeconds: 60,
				},
				Tracing: TracingConfig{
					Exporter: ExporterNone,
				},
			},
			Repository: RepositoryConfig{
				Type:        RepositoryTypeInMemory,
				DatabaseRef: "metadata",
			},
			AdapterConfigs:     map[string]map[string]interface{}{},
			ListenerProperties: map[string]map[string]interface{}{},
		},
	}
}
