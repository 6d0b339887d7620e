package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openSQLiteTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mint.db")
	db, err := OpenSQLite(path, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// initSQLiteTestDB creates a fresh database file for each test
func initSQLiteTestDB(t *testing.T) Store {
	return NewPGStore(openSQLiteTestDB(t))
}

func cleanupSQLiteTestDB(t *testing.T) {
	// Cleanup is handled by t.TempDir
}

// TestSQLiteStore runs all store tests against SQLite
func TestSQLiteStore(t *testing.T) {
	RunStoreTests(t, initSQLiteTestDB, cleanupSQLiteTestDB)
}

func TestSQLiteConcurrentClaims(t *testing.T) {
	RunConcurrentClaimTests(t, initSQLiteTestDB(t))
}

func TestOpenSQLite_ErrorOnBadPath(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "missing", "mint.db"), nil)
	assert.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "a.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", sqliteDSN("a.db"))
	assert.Contains(t, sqliteDSN("file:a.db?cache=shared"), "cache=shared&_pragma=busy_timeout(5000)")
}

func TestOpenDatabase(t *testing.T) {
	db, err := OpenDatabase(DriverSQLite, "", filepath.Join(t.TempDir(), "mint.db"), nil)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", db.Dialector.Name())

	_, err = OpenDatabase("mysql", "", "", nil)
	require.Error(t, err)
}
