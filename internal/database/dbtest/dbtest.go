// Package dbtest provides migrated in-memory databases for tests.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"skincheck-back/internal/config"
	"skincheck-back/internal/database"

	"gorm.io/gorm"
)

var seq atomic.Int64

// New returns an isolated, migrated SQLite database that is closed when t ends.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:skincheck_test_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)&_time_format=sqlite", seq.Add(1))

	db, err := database.InitDB(config.DatabaseConfig{Driver: "sqlite", DSN: dsn}, nil)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.MigrateDB(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
