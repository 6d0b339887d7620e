package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// sqliteSchema mirrors db/init_pg_db.sql for the single-host backend
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS mint_assets (
    id               TEXT PRIMARY KEY,
    reference_id     TEXT NOT NULL,
    contract_address TEXT NOT NULL,
    owner_address    TEXT NOT NULL,
    metadata         TEXT NOT NULL DEFAULT '{}',
    token_id         TEXT,
    amount           TEXT,
    minting_status   TEXT NOT NULL DEFAULT 'unset',
    tried_count      INTEGER NOT NULL DEFAULT 0,
    metadata_id      TEXT,
    last_event_id    TEXT,
    last_event_key   TEXT,
    error            TEXT,
    created_at       DATETIME NOT NULL,
    updated_at       DATETIME NOT NULL,
    CONSTRAINT idx_mint_assets_reference_contract UNIQUE (reference_id, contract_address)
);

CREATE INDEX IF NOT EXISTS idx_mint_assets_unset
    ON mint_assets (created_at)
    WHERE minting_status = 'unset';

CREATE INDEX IF NOT EXISTS idx_mint_assets_submitting
    ON mint_assets (updated_at)
    WHERE minting_status = 'submitting';
`

// OpenSQLite opens (or creates) a SQLite database at path and applies the schema.
//
// SQLite allows a single writer, so the pool is limited to one connection. Every
// process sharing the file is serialised by the file lock and waits up to the busy
// timeout for it.
func OpenSQLite(path string, config *gorm.Config) (*gorm.DB, error) {
	// Fail early if the parent directory does not exist
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("invalid sqlite path: %w", err)
		}
	}

	if config == nil {
		config = &gorm.Config{}
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), config)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := MigrateSQLite(db); err != nil {
		return nil, err
	}

	return db, nil
}

// MigrateSQLite applies the schema to a SQLite database
func MigrateSQLite(db *gorm.DB) error {
	if err := db.Exec(sqliteSchema).Error; err != nil {
		return fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}
	return nil
}

func sqliteDSN(path string) string {
	pragmas := "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	if strings.Contains(path, "?") {
		return path + "&" + pragmas
	}
	return path + "?" + pragmas
}
