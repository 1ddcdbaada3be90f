// Command tippspiel serves the football prediction game: the JSON API, the
// websocket status feed, and the static frontend. A background advancer
// moves matches from scheduled to live to finished as kickoff passes.
//
// Configuration comes from the environment; see package config.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Skryldev/tippspiel/api"
	"github.com/Skryldev/tippspiel/config"
	"github.com/Skryldev/tippspiel/db"
	"github.com/Skryldev/tippspiel/game"
	"github.com/Skryldev/tippspiel/lifecycle"
	"github.com/Skryldev/tippspiel/migrations"
	"github.com/Skryldev/tippspiel/repo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// ── Structured logger ────────────────────────────────────────────────
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Schema ───────────────────────────────────────────────────────────
	if cfg.MigrateOnStart {
		url, err := cfg.MigrateURL()
		if err != nil {
			fatalf("migrate url: %v", err)
		}
		if err := migrations.Up(cfg.DBDriver, url, logger); err != nil {
			fatalf("migrate: %v", err)
		}
		slog.Info("schema up to date", "driver", cfg.DBDriver)
	}

	// ── Database ─────────────────────────────────────────────────────────
	stats := db.NewQueryStats(cfg.SlowQueryThreshold)
	database, err := cfg.OpenDB(
		db.NewLogHook(db.LogHookConfig{
			Logger:             logger,
			SlowQueryThreshold: cfg.SlowQueryThreshold,
		}),
		stats,
	)
	if err != nil {
		fatalf("open database: %v", err)
	}
	defer database.Close()
	slog.Info("database connected", "driver", database.DriverName(), "stats", database.Stats())

	// ── Game, event feed, advancer ───────────────────────────────────────
	svc := game.New(database, game.Options{
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	})
	hub := api.NewHub(logger, api.CheckOrigin(cfg.AllowedOrigin))

	advancer := lifecycle.New(repo.NewMatchRepo(database), lifecycle.Config{
		Regulation: cfg.Regulation,
		AddedTime:  cfg.LifecycleAddedTime(),
		Interval:   cfg.AdvanceInterval,
		Logger:     logger,
		Notifier:   hub,
	})
	if err := advancer.Start(ctx); err != nil {
		fatalf("start advancer: %v", err)
	}
	slog.Info("advancer started",
		"interval", cfg.AdvanceInterval, "finished_after", advancer.FinishedAfter())

	// ── HTTP ─────────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: api.New(api.Options{
			Service:       svc,
			DB:            database,
			QueryStats:    stats,
			Hub:           hub,
			StaticDir:     cfg.StaticDir,
			AllowedOrigin: cfg.AllowedOrigin,
			SessionTTL:    cfg.SessionTTL,
			SecureCookies: cfg.SecureCookies,
			Logger:        logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", srv.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			advancer.Stop()
			hub.Close()
			fatalf("serve: %v", err)
		}
	case <-ctx.Done():
		slog.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown", "error", err)
	}
	advancer.Stop()
	hub.Close()
	slog.Info("stopped")
}

func fatalf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
