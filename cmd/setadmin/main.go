// Command setadmin creates an admin account, or resets the password of an
// existing user and promotes it to admin.
//
//	setadmin <username> <password>
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Skryldev/tippspiel/config"
	"github.com/Skryldev/tippspiel/game"
	"github.com/Skryldev/tippspiel/migrations"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "Usage: setadmin <username> <password>")
		os.Exit(1)
	}
	name, password := os.Args[1], os.Args[2]

	cfg, err := config.Load()
	if err != nil {
		fatalf("%v", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	if cfg.MigrateOnStart {
		url, err := cfg.MigrateURL()
		if err != nil {
			fatalf("migrate url: %v", err)
		}
		if err := migrations.Up(cfg.DBDriver, url, nil); err != nil {
			fatalf("migrate: %v", err)
		}
	}

	database, err := cfg.OpenDB()
	if err != nil {
		fatalf("open database: %v", err)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	u, err := game.New(database, game.Options{}).SetAdmin(ctx, name, password)
	if err != nil {
		fatalf("set admin: %v", err)
	}
	fmt.Printf("admin %q ready (id %d)\n", u.Name, u.ID)
}

func fatalf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
