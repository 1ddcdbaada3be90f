// Package config reads the server's settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/Skryldev/tippspiel/db"
)

// Config is the full runtime configuration of the server binary.
type Config struct {
	// DBDriver is "postgres" or "sqlite3".
	DBDriver string

	// DatabaseURL, when set, is used instead of the structured DB options.
	// For sqlite3 it is the database file path.
	DatabaseURL string
	DB          db.DriverOptions

	MaxOpenConns int

	Port     int
	LogLevel slog.Level

	Regulation      time.Duration
	AddedTime       time.Duration
	AdvanceInterval time.Duration

	SessionTTL    time.Duration
	SecureCookies bool
	AllowedOrigin string

	MigrateOnStart     bool
	StaticDir          string
	SlowQueryThreshold time.Duration
}

// Load reads the process environment.
func Load() (*Config, error) { return LoadFrom(os.Getenv) }

// LoadFrom reads settings through getenv. Every malformed value is
// reported; none is silently replaced by its default.
func LoadFrom(getenv func(string) string) (*Config, error) {
	e := &env{get: getenv}

	c := &Config{
		DBDriver:    e.str("DB_DRIVER", "postgres"),
		DatabaseURL: e.str("DATABASE_URL", ""),
		DB: db.DriverOptions{
			Host:     e.str("DB_HOST", "localhost"),
			Port:     e.int("DB_PORT", 5432),
			User:     e.str("DB_USER", "postgres"),
			Password: e.str("DB_PASSWORD", ""),
			Database: e.str("DB_NAME", "tippspiel"),
			SSLMode:  e.str("DB_SSLMODE", "disable"),
		},
		MaxOpenConns: e.int("DB_MAX_OPEN_CONNS", 10),

		Port:     e.int("PORT", 8080),
		LogLevel: e.level("LOG_LEVEL", slog.LevelInfo),

		Regulation:      time.Duration(e.int("REGULATION_MINUTES", 90)) * time.Minute,
		AddedTime:       time.Duration(e.int("ADDED_TIME_MINUTES", 30)) * time.Minute,
		AdvanceInterval: e.duration("ADVANCE_INTERVAL", time.Minute),

		SessionTTL:    e.duration("SESSION_TTL", 24*time.Hour),
		SecureCookies: e.bool("SECURE_COOKIES", false),
		AllowedOrigin: e.str("ALLOWED_ORIGIN", ""),

		MigrateOnStart:     e.bool("MIGRATE_ON_START", true),
		StaticDir:          e.str("STATIC_DIR", "public"),
		SlowQueryThreshold: e.duration("SLOW_QUERY_THRESHOLD", 200*time.Millisecond),
	}

	switch c.DBDriver {
	case "postgres":
	case "sqlite3":
		if getenv("DB_NAME") == "" {
			c.DB.Database = "tippspiel.db"
		}
	default:
		e.fail("DB_DRIVER", c.DBDriver, "must be postgres or sqlite3")
	}
	if c.Port < 1 || c.Port > 65535 {
		e.fail("PORT", strconv.Itoa(c.Port), "out of range")
	}
	if c.MaxOpenConns < 1 {
		e.fail("DB_MAX_OPEN_CONNS", strconv.Itoa(c.MaxOpenConns), "must be positive")
	}
	if c.Regulation <= 0 {
		e.fail("REGULATION_MINUTES", c.Regulation.String(), "must be positive")
	}
	if c.AddedTime < 0 {
		e.fail("ADDED_TIME_MINUTES", c.AddedTime.String(), "must not be negative")
	}
	if c.AdvanceInterval <= 0 {
		e.fail("ADVANCE_INTERVAL", c.AdvanceInterval.String(), "must be positive")
	}
	if c.SessionTTL <= 0 {
		e.fail("SESSION_TTL", c.SessionTTL.String(), "must be positive")
	}

	if err := errors.Join(e.errs...); err != nil {
		return nil, err
	}
	return c, nil
}

// Addr is the listen address.
func (c *Config) Addr() string { return net.JoinHostPort("", strconv.Itoa(c.Port)) }

// DriverOptions returns the structured options for db.OpenWithDriver. For
// sqlite3 a DATABASE_URL is taken as the file path so the driver's pragmas
// still apply.
func (c *Config) DriverOptions() db.DriverOptions {
	o := c.DB
	if c.DBDriver == "sqlite3" && c.DatabaseURL != "" {
		o.Database = c.DatabaseURL
	}
	return o
}

// MigrateURL returns the URL golang-migrate connects with.
func (c *Config) MigrateURL() (string, error) {
	if c.DBDriver == "sqlite3" {
		drv, err := db.LookupDriver(c.DBDriver)
		if err != nil {
			return "", err
		}
		dsn, err := drv.DSN(c.DriverOptions())
		if err != nil {
			return "", err
		}
		return "sqlite3://" + dsn, nil
	}
	if c.DatabaseURL != "" {
		return c.DatabaseURL, nil
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DB.User, c.DB.Password),
		Host:     net.JoinHostPort(c.DB.Host, strconv.Itoa(c.DB.Port)),
		Path:     "/" + c.DB.Database,
		RawQuery: url.Values{"sslmode": {c.DB.SSLMode}}.Encode(),
	}
	return u.String(), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Parsing
// ─────────────────────────────────────────────────────────────────────────────

type env struct {
	get  func(string) string
	errs []error
}

func (e *env) fail(key, value, reason string) {
	e.errs = append(e.errs, fmt.Errorf("config: %s=%q: %s", key, value, reason))
}

func (e *env) str(key, fallback string) string {
	if v := e.get(key); v != "" {
		return v
	}
	return fallback
}

func (e *env) int(key string, fallback int) int {
	v := e.get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, "not an integer")
		return fallback
	}
	return n
}

func (e *env) bool(key string, fallback bool) bool {
	v := e.get(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, "not a boolean")
		return fallback
	}
	return b
}

func (e *env) duration(key string, fallback time.Duration) time.Duration {
	v := e.get(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, "not a duration")
		return fallback
	}
	return d
}

func (e *env) level(key string, fallback slog.Level) slog.Level {
	v := e.get(key)
	if v == "" {
		return fallback
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		e.fail(key, v, "not a log level")
		return fallback
	}
	return l
}
