// Package databasetest opens migrated in-memory SQLite databases for tests.
package databasetest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Wirlhawk/skillswap-sub000/config"
	"github.com/Wirlhawk/skillswap-sub000/internal/database"
	"github.com/Wirlhawk/skillswap-sub000/internal/models"
)

// New returns a fresh migrated database private to the test. A single connection
// keeps the in-memory database alive and serializes transactions.
func New(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=off"
	db, err := database.Open(sqlite.Open(dsn), config.DatabaseConfig{
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	require.NoError(t, err)

	require.NoError(t, models.SetupModels(db))

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

// Databases wraps New as a write and read pair sharing one connection
func Databases(t *testing.T) *database.Databases {
	db := New(t)
	return &database.Databases{Write: db, Read: db}
}
