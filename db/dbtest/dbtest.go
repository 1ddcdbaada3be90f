// Package dbtest opens throwaway SQLite databases with the full schema
// applied, so tests exercise the same SQL and migrations as production.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/Skryldev/tippspiel/db"
	"github.com/Skryldev/tippspiel/migrations"
)

// Open returns a migrated database in t's temp dir. It is closed on cleanup.
func Open(t testing.TB, hooks ...db.Hook) *db.DB {
	t.Helper()

	opts := db.DriverOptions{Database: filepath.Join(t.TempDir(), "tippspiel.db")}
	dsn, err := db.SQLiteDriver{}.DSN(opts)
	if err != nil {
		t.Fatalf("dbtest: dsn: %v", err)
	}
	url, err := migrations.URL("sqlite3", dsn)
	if err != nil {
		t.Fatalf("dbtest: migrate url: %v", err)
	}
	if err := migrations.Up("sqlite3", url, nil); err != nil {
		t.Fatalf("dbtest: migrate: %v", err)
	}

	// One connection keeps SQLite write transactions strictly serialized.
	d, err := db.OpenWithDriver("sqlite3", opts, db.Config{
		MaxOpenConns: 1,
		Hooks:        append([]db.Hook{db.NewLogHook(db.LogHookConfig{LogArgs: true})}, hooks...),
	})
	if err != nil {
		t.Fatalf("dbtest: open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}
