package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"github.com/forlulz/spring-batch/pkg/batch/support/util/exception"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	EnvFilePath    string `name:"envFilePath" optional:"true"`
}

// loadConfig builds a Config from defaults, the embedded YAML and environment variables,
// in that order of precedence (later wins).
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	expanded, err := NewOsEnvironmentExpander().Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to expand environment placeholders", err, false, false)
	}

	var yamlConfig Config
	if err := yaml.Unmarshal(expanded, &yamlConfig); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to unmarshal embedded config", err, false, false)
	}
	mergeConfig(cfg, &yamlConfig)

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to load config from environment variables", err, false, false)
	}
	cfg.EmbeddedConfig = embeddedConfig
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads and provides *Config.
// It also publishes the result as GlobalConfig.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	GlobalConfig = cfg
	return cfg, nil
}

// LoadConfig loads configuration from the embedded YAML and environment variables.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	cfg, err := loadConfig(envFilePath, embeddedConfig)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the framework cannot honor. The close policy is
// normalized to lower case in place.
func Validate(cfg *Config) error {
	policy := strings.ToLower(strings.TrimSpace(cfg.Surfin.Batch.Scope.UnbalancedClosePolicy))
	switch policy {
	case UnbalancedClosePolicyError, UnbalancedClosePolicyIgnore:
		cfg.Surfin.Batch.Scope.UnbalancedClosePolicy = policy
	default:
		return exception.NewConfigurationError(moduleName,
			fmt.Sprintf("unknown unbalanced_close_policy '%s' (expected '%s' or '%s')",
				cfg.Surfin.Batch.Scope.UnbalancedClosePolicy, UnbalancedClosePolicyError, UnbalancedClosePolicyIgnore))
	}
	obs := cfg.Surfin.Observability
	switch obs.Metrics.Backend {
	case MetricsBackendPrometheus, MetricsBackendOTel, MetricsBackendNone:
	default:
		return exception.NewConfigurationError(moduleName,
			fmt.Sprintf("unknown observability.metrics.backend '%s'", obs.Metrics.Backend))
	}
	for key, exporter := range map[string]string{"metrics": obs.Metrics.Exporter, "tracing": obs.Tracing.Exporter} {
		switch exporter {
		case ExporterNone, ExporterOTLPGRPC, ExporterOTLPHTTP:
		default:
			return exception.NewConfigurationError(moduleName,
				fmt.Sprintf("unknown observability.%s.exporter '%s'", key, exporter))
		}
	}
	if obs.Metrics.IntervalSeconds <= 0 {
		return exception.NewConfigurationError(moduleName,
			fmt.Sprintf("observability.metrics.interval_seconds must be positive, got %d", obs.Metrics.IntervalSeconds))
	}
	switch cfg.Surfin.Repository.Type {
	case RepositoryTypeInMemory:
	case RepositoryTypeSQL:
		if cfg.Surfin.Repository.DatabaseRef == "" {
			return exception.NewConfigurationError(moduleName, "repository.database_ref is required for the sql repository")
		}
	default:
		return exception.NewConfigurationError(moduleName,
			fmt.Sprintf("unknown repository.type '%s'", cfg.Surfin.Repository.Type))
	}
	if cfg.Surfin.Batch.MetricsAsyncBufferSize < 0 {
		return exception.NewConfigurationError(moduleName,
			fmt.Sprintf("metrics_async_buffer_size must not be negative, got %d", cfg.Surfin.Batch.MetricsAsyncBufferSize))
	}
	return nil
}

// mergeConfig copies every non-zero value of source into dest.
func mergeConfig(dest, source *Config) {
	mergeSurfinConfig(&dest.Surfin, &source.Surfin)
}

func mergeSurfinConfig(dest, source *SurfinConfig) {
	if source.Batch.JobName != "" {
		dest.Batch.JobName = source.Batch.JobName
	}
	if source.Batch.MetricsAsyncBufferSize != 0 {
		dest.Batch.MetricsAsyncBufferSize = source.Batch.MetricsAsyncBufferSize
	}
	if source.Batch.Scope.UnbalancedClosePolicy != "" {
		dest.Batch.Scope.UnbalancedClosePolicy = source.Batch.Scope.UnbalancedClosePolicy
	}
	if source.Batch.Listeners != nil {
		dest.Batch.Listeners = source.Batch.Listeners
	}

	mergeSystemConfig(&dest.System, &source.System)
	mergeObservabilityConfig(&dest.Observability, &source.Observability)

	if source.Repository.Type != "" {
		dest.Repository.Type = source.Repository.Type
	}
	if source.Repository.DatabaseRef != "" {
		dest.Repository.DatabaseRef = source.Repository.DatabaseRef
	}
	if source.Repository.SkipMigrations {
		dest.Repository.SkipMigrations = true
	}
	if source.AdapterConfigs != nil {
		if dest.AdapterConfigs == nil {
			dest.AdapterConfigs = make(map[string]map[string]interface{})
		}
		for kind, entries := range source.AdapterConfigs {
			dest.AdapterConfigs[kind] = entries
		}
	}

	if source.Security.MaskedParameterKeys != nil {
		dest.Security.MaskedParameterKeys = source.Security.MaskedParameterKeys
	}

	if source.ListenerProperties != nil {
		if dest.ListenerProperties == nil {
			dest.ListenerProperties = make(map[string]map[string]interface{})
		}
		for name, props := range source.ListenerProperties {
			dest.ListenerProperties[name] = props
		}
	}
}

func mergeSystemConfig(dest, source *SystemConfig) {
	if source.Timezone != "" {
		dest.Timezone = source.Timezone
	}
	if source.Logging.Level != "" {
		dest.Logging.Level = source.Logging.Level
	}
}

func mergeObservabilityConfig(dest, source *ObservabilityConfig) {
	if source.ServiceName != "" {
		dest.ServiceName = source.ServiceName
	}
	if source.Metrics.Backend != "" {
		dest.Metrics.Backend = source.Metrics.Backend
	}
	if source.Metrics.Exporter != "" {
		dest.Metrics.Exporter = source.Metrics.Exporter
	}
	if source.Metrics.Endpoint != "" {
		dest.Metrics.Endpoint = source.Metrics.Endpoint
	}
	if source.Metrics.Insecure {
		dest.Metrics.Insecure = true
	}
	if source.Metrics.IntervalSeconds != 0 {
		dest.Metrics.IntervalSeconds = source.Metrics.IntervalSeconds
	}
	if source.Tracing.Exporter != "" {
		dest.Tracing.Exporter = source.Tracing.Exporter
	}
	if source.Tracing.Endpoint != "" {
		dest.Tracing.Endpoint = source.Tracing.Endpoint
	}
	if source.Tracing.Insecure {
		dest.Tracing.Insecure = true
	}
}

// loadStructFromEnv recursively loads values into a struct from environment variables.
// The variable name is the upper-cased path of "yaml" tags joined by "_",
// e.g. SURFIN_BATCH_SCOPE_UNBALANCED_CLOSE_POLICY.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// setField converts value to the field's kind. Slices of strings are comma-separated.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		parts := strings.Split(value, ",")
		out := reflect.MakeSlice(field.Type(), 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = reflect.Append(out, reflect.ValueOf(p))
			}
		}
		field.Set(out)
	}
	return nil
}
