// Package mysql registers the MySQL dialector.
package mysql

import (
	"fmt"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	dbconfig "github.com/forlulz/spring-batch/pkg/batch/adapter/database/config"
	gormadapter "github.com/forlulz/spring-batch/pkg/batch/adapter/database/gorm"
)

// Type is the database type this package registers.
const Type = "mysql"

func init() {
	gormadapter.RegisterDialector(Type, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return gormmysql.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString returns the DSN for c. Times are parsed into time.Time in UTC.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	dsn := gomysql.NewConfig()
	dsn.User = c.User
	dsn.Passwd = c.Password
	dsn.Net = "tcp"
	dsn.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	dsn.DBName = c.Database
	dsn.ParseTime = true
	dsn.Loc = time.UTC
	return dsn.FormatDSN()
}
