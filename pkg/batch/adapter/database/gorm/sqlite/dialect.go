// Package sqlite registers the SQLite dialector. The database setting is the file path.
package sqlite

import (
	"errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbconfig "github.com/forlulz/spring-batch/pkg/batch/adapter/database/config"
	gormadapter "github.com/forlulz/spring-batch/pkg/batch/adapter/database/gorm"
)

// Type is the database type this package registers.
const Type = "sqlite"

func init() {
	gormadapter.RegisterDialector(Type, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, errors.New("SQLite database path cannot be empty")
		}
		return sqlite.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString returns the DSN for c. Foreign keys are enforced and writers wait on locks.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	return c.Database + "?_foreign_keys=on&_busy_timeout=5000"
}
