// Package migrations embeds the schema for each supported dialect and runs
// it through golang-migrate.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed postgres/*.sql sqlite3/*.sql
var files embed.FS

// Source returns the embedded migration source for driverName
// ("postgres" or "sqlite3").
func Source(driverName string) (source.Driver, error) {
	switch driverName {
	case "postgres", "sqlite3":
	default:
		return nil, fmt.Errorf("migrations: no schema for driver %q", driverName)
	}
	return iofs.New(files, driverName)
}

// URL turns a database/sql DSN into the URL golang-migrate expects.
// Postgres DSNs must already be URLs (postgres://...); SQLite paths get the
// sqlite3:// scheme prepended.
func URL(driverName, dsn string) (string, error) {
	switch driverName {
	case "postgres":
		if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
			return "", fmt.Errorf("migrations: postgres DSN must be a URL to migrate, got key=value form")
		}
		return dsn, nil
	case "sqlite3":
		if strings.HasPrefix(dsn, "sqlite3://") {
			return dsn, nil
		}
		return "sqlite3://" + dsn, nil
	}
	return "", fmt.Errorf("migrations: unsupported driver %q", driverName)
}

// New builds a migrator over the embedded source. The caller closes it.
func New(driverName, databaseURL string, logger *slog.Logger) (*migrate.Migrate, error) {
	src, err := Source(driverName)
	if err != nil {
		return nil, err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("migrations: init: %w", err)
	}
	m.Log = NewLogger(logger, false)
	return m, nil
}

// Up applies every pending migration. An already current schema is not an
// error.
func Up(driverName, databaseURL string, logger *slog.Logger) error {
	m, err := New(driverName, databaseURL, logger)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations: up: %w", err)
	}
	return nil
}

// Logger adapts slog to migrate.Logger.
type Logger struct {
	logger  *slog.Logger
	verbose bool
}

// NewLogger returns a migrate.Logger writing through logger, or through
// slog.Default() when logger is nil.
func NewLogger(logger *slog.Logger, verbose bool) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger, verbose: verbose}
}

func (l *Logger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}

func (l *Logger) Verbose() bool { return l.verbose }

var _ migrate.Logger = (*Logger)(nil)
