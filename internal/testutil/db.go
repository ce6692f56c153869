// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/mermaid-studio/engine/internal/migrations"
	"github.com/mermaid-studio/engine/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB opens a migrated sqlite database private to t. The global logger
// must already be set.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{Logger: gormlogger.Discard, TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, migrations.Run(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts a user with the given roles.
func CreateUser(t *testing.T, db *gorm.DB, email string, admin bool, roles ...string) *models.User {
	t.Helper()
	u := &models.User{Email: email, Name: email, PasswordHash: "x", IsAdmin: admin, Roles: roles}
	require.NoError(t, db.Create(u).Error)
	return u
}
