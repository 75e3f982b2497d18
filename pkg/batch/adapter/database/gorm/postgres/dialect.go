// Package postgres registers the PostgreSQL dialector.
package postgres

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	dbconfig "github.com/forlulz/spring-batch/pkg/batch/adapter/database/config"
	gormadapter "github.com/forlulz/spring-batch/pkg/batch/adapter/database/gorm"
)

// Type is the database type this package registers.
const Type = "postgres"

func init() {
	gormadapter.RegisterDialector(Type, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return postgres.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString returns the DSN for c. An empty sslmode selects "disable".
func ConnectionString(c dbconfig.DatabaseConfig) string {
	sslmode := c.Sslmode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslmode)
}
