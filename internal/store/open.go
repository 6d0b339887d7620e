package store

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// OpenDatabase opens the database selected by driver. The PostgreSQL schema is managed
// by db/init_pg_db.sql, the SQLite schema is applied on open.
func OpenDatabase(driver, dsn, sqlitePath string, config *gorm.Config) (*gorm.DB, error) {
	if config == nil {
		config = &gorm.Config{}
	}

	switch driver {
	case DriverPostgres, "":
		db, err := gorm.Open(postgres.Open(dsn), config)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return db, nil
	case DriverSQLite:
		return OpenSQLite(sqlitePath, config)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
