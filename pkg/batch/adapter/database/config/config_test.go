package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreConfig "github.com/forlulz/spring-batch/pkg/batch/core/config"
)

func TestLookup(t *testing.T) {
	cfg := coreConfig.NewConfig()
	cfg.Surfin.AdapterConfigs[AdapterKind] = map[string]interface{}{
		"metadata": map[string]interface{}{
			"type":     "postgres",
			"host":     "localhost",
			"port":     "5432",
			"database": "batch",
			"pool": map[string]interface{}{
				"max_open_conns": 4,
			},
		},
		"broken": map[string]interface{}{
			"host": "localhost",
		},
	}

	dbCfg, err := Lookup(cfg, "metadata")
	require.NoError(t, err)
	assert.Equal(t, "postgres", dbCfg.Type)
	assert.Equal(t, 5432, dbCfg.Port)
	assert.Equal(t, 4, dbCfg.Pool.MaxOpenConns)

	_, err = Lookup(cfg, "missing")
	assert.ErrorContains(t, err, "not found")

	_, err = Lookup(cfg, "broken")
	assert.ErrorContains(t, err, "has no type")

	_, err = Lookup(coreConfig.NewConfig(), "metadata")
	assert.ErrorContains(t, err, "no 'database' section")
}
