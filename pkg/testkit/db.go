// Package testkit holds helpers shared by package tests: an in-memory
// database and JSON request round trips against an http.Handler.
package testkit

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/phonedeals/pkg/database"
)

// DB opens a fresh in-memory sqlite database and migrates models into it.
// The connection is closed when the test ends.
func DB(t testing.TB, models ...any) *gorm.DB {
	t.Helper()
	db, err := database.Open("sqlite", "file::memory:")
	require.NoError(t, err)
	if len(models) > 0 {
		require.NoError(t, db.AutoMigrate(models...))
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}
