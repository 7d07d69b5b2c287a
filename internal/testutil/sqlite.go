// Package testutil opens throwaway databases for package tests.
package testutil

import (
	"io"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/academybot/internal/config"
	"github.com/Kerhoff/academybot/migrations"
)

// Logger returns a logger that writes nowhere
func Logger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// NewSQLite opens an in-memory SQLite database with the full schema applied.
// The database lives as long as the test.
func NewSQLite(t testing.TB) *sqlx.DB {
	t.Helper()

	db, err := config.NewDatabase(config.DriverSQLite, ":memory:", Logger())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(migrations.FS); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db.DB
}
