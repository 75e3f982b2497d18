// Package config holds the connection settings of the database adapter.
package config

import (
	"fmt"

	coreConfig "github.com/forlulz/spring-batch/pkg/batch/core/config"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/configbinder"
)

// AdapterKind is the key of the database entries under surfin.adapter.
const AdapterKind = "database"

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Type     string     `yaml:"type"`     // "postgres", "mysql" or "sqlite".
	Host     string     `yaml:"host"`     // Database host address.
	Port     int        `yaml:"port"`     // Database port number.
	Database string     `yaml:"database"` // Database name, or the file path for sqlite.
	User     string     `yaml:"user"`
	Password string     `yaml:"password"`
	Sslmode  string     `yaml:"sslmode"` // PostgreSQL only.
	LogLevel string     `yaml:"log_level"`
	Pool     PoolConfig `yaml:"pool"`
}

// Lookup decodes the surfin.adapter.database entry registered under name.
func Lookup(cfg *coreConfig.Config, name string) (DatabaseConfig, error) {
	var dbCfg DatabaseConfig
	entries, ok := cfg.Surfin.AdapterConfigs[AdapterKind]
	if !ok {
		return dbCfg, fmt.Errorf("no '%s' section under adapter configuration", AdapterKind)
	}
	raw, ok := entries[name]
	if !ok {
		return dbCfg, fmt.Errorf("database configuration '%s' not found in adapter.database configs", name)
	}
	props, ok := raw.(map[string]interface{})
	if !ok {
		return dbCfg, fmt.Errorf("database configuration '%s' must be a mapping", name)
	}
	if err := configbinder.BindProperties(props, &dbCfg); err != nil {
		return dbCfg, fmt.Errorf("failed to decode database config for '%s': %w", name, err)
	}
	if dbCfg.Type == "" {
		return dbCfg, fmt.Errorf("database config '%s' has no type", name)
	}
	return dbCfg, nil
}
