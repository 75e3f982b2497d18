// Package config holds the connection settings of the storage adapters.
package config

import (
	"fmt"

	coreConfig "github.com/forlulz/spring-batch/pkg/batch/core/config"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/configbinder"
)

// AdapterKind is the key of the storage entries under surfin.adapter.
const AdapterKind = "storage"

// StorageConfig holds configuration for a single storage connection.
type StorageConfig struct {
	Type            string `yaml:"type"`             // "local" or "gcs".
	BucketName      string `yaml:"bucket_name"`      // Default bucket for operations that pass none.
	CredentialsFile string `yaml:"credentials_file"` // Service account key for GCS.
	Endpoint        string `yaml:"endpoint"`         // Overrides the GCS endpoint, e.g. for an emulator.
	WithoutAuth     bool   `yaml:"without_auth"`     // Disables GCS authentication.
	BaseDir         string `yaml:"base_dir"`         // Root directory of the local adapter.
}

// Lookup decodes the surfin.adapter.storage entry registered under name.
func Lookup(cfg *coreConfig.Config, name string) (StorageConfig, error) {
	var storageCfg StorageConfig
	raw, ok := cfg.Surfin.AdapterConfigs[AdapterKind][name]
	if !ok {
		return storageCfg, fmt.Errorf("storage configuration for name '%s' not found", name)
	}
	props, ok := raw.(map[string]interface{})
	if !ok {
		return storageCfg, fmt.Errorf("storage configuration '%s' must be a mapping", name)
	}
	if err := configbinder.BindProperties(props, &storageCfg); err != nil {
		return storageCfg, fmt.Errorf("failed to decode storage config for '%s': %w", name, err)
	}
	return storageCfg, nil
}
