package config

import (
	"fmt"
	"time"

	"github.com/Skryldev/tippspiel/db"

	// Blank-import both drivers so they self-register with database/sql.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// OpenDB opens the configured database with the pool settings shared by
// every binary. hooks run around each statement.
func (c *Config) OpenDB(hooks ...db.Hook) (*db.DB, error) {
	cfg := db.Config{
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxOpenConns / 2,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		DefaultTimeout:  10 * time.Second,
		Hooks:           hooks,
	}
	if c.DBDriver == "sqlite3" {
		// SQLite serializes writers anyway; one connection avoids busy errors.
		cfg.MaxOpenConns, cfg.MaxIdleConns = 1, 1
	}

	if c.DBDriver == "postgres" && c.DatabaseURL != "" {
		drv, err := db.LookupDriver(c.DBDriver)
		if err != nil {
			return nil, err
		}
		cfg.DriverName = drv.Name()
		cfg.DSN = c.DatabaseURL
		d, err := db.Open(cfg)
		if err != nil {
			return nil, err
		}
		d.SetErrorMapper(db.ChainMapper(drv.ErrorMapper(), db.DefaultErrorMapper()))
		return d, nil
	}

	d, err := db.OpenWithDriver(c.DBDriver, c.DriverOptions(), cfg)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", c.DBDriver, err)
	}
	return d, nil
}

// LifecycleAddedTime converts AddedTime to the advancer's convention,
// where zero means the default and a negative value means none.
func (c *Config) LifecycleAddedTime() time.Duration {
	if c.AddedTime == 0 {
		return -1
	}
	return c.AddedTime
}
