package db

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Hook interface
// ─────────────────────────────────────────────────────────────────────────────

// Hook is called before and after every statement execution.
// Implementations must be goroutine-safe and should not block. Panics are
// recovered by the hook chain and logged.
type Hook interface {
	BeforeQuery(ctx context.Context, query string, args []any)

	// AfterQuery receives the wall-clock time spent in the driver and the
	// already mapped error, nil on success.
	AfterQuery(ctx context.Context, query string, args []any, duration time.Duration, err error)
}

type hookChain struct {
	hooks []Hook
}

func newHookChain(hooks []Hook) hookChain {
	filtered := make([]Hook, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			filtered = append(filtered, h)
		}
	}
	return hookChain{hooks: filtered}
}

func (c hookChain) Before(ctx context.Context, query string, args []any) {
	for _, h := range c.hooks {
		safeBeforeQuery(h, ctx, query, args)
	}
}

func (c hookChain) After(ctx context.Context, query string, args []any, d time.Duration, err error) {
	for _, h := range c.hooks {
		safeAfterQuery(h, ctx, query, args, d, err)
	}
}

func safeBeforeQuery(h Hook, ctx context.Context, query string, args []any) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("tippspiel/db: hook panic in BeforeQuery", "panic", r)
		}
	}()
	h.BeforeQuery(ctx, query, args)
}

func safeAfterQuery(h Hook, ctx context.Context, query string, args []any, d time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("tippspiel/db: hook panic in AfterQuery", "panic", r)
		}
	}()
	h.AfterQuery(ctx, query, args, d, err)
}

// ── Logging hook ─────────────────────────────────────────────────────────────

// LogHookConfig configures the structured logging hook.
type LogHookConfig struct {
	// Logger defaults to slog.Default() if nil.
	Logger *slog.Logger
	// SlowQueryThreshold logs a warning when exceeded. Zero disables it.
	SlowQueryThreshold time.Duration
	// LogArgs includes bound parameters. Password hashes are bound
	// parameters, so keep this off outside tests.
	LogArgs bool
}

// NewLogHook returns a Hook that emits structured log entries via slog.
func NewLogHook(cfg LogHookConfig) Hook {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &logHook{cfg: cfg, logger: logger}
}

type logHook struct {
	cfg    LogHookConfig
	logger *slog.Logger
}

func (h *logHook) BeforeQuery(_ context.Context, _ string, _ []any) {}

func (h *logHook) AfterQuery(ctx context.Context, query string, args []any, d time.Duration, err error) {
	attrs := []any{
		slog.String("query", trimQuery(query)),
		slog.Duration("duration", d),
	}
	if h.cfg.LogArgs && len(args) > 0 {
		attrs = append(attrs, slog.Any("args", args))
	}

	if err != nil {
		// Not-found is an ordinary outcome for lookups.
		if IsNotFound(err) {
			h.logger.DebugContext(ctx, "tippspiel/db: no rows", attrs...)
			return
		}
		h.logger.ErrorContext(ctx, "tippspiel/db: query error", append(attrs, slog.Any("error", err))...)
		return
	}

	if h.cfg.SlowQueryThreshold > 0 && d > h.cfg.SlowQueryThreshold {
		h.logger.WarnContext(ctx, "tippspiel/db: slow query", attrs...)
		return
	}

	h.logger.DebugContext(ctx, "tippspiel/db: query", attrs...)
}

func trimQuery(q string) string {
	if len(q) > 500 {
		return q[:500] + "…"
	}
	return q
}

// ── Query statistics hook ────────────────────────────────────────────────────

// QueryStats counts statements and failures. It is a Hook; the health
// endpoint reports its Snapshot next to the pool stats.
type QueryStats struct {
	total    atomic.Int64
	failed   atomic.Int64
	slow     atomic.Int64
	slowOver time.Duration
}

// NewQueryStats returns a counter hook. Statements slower than slowOver are
// counted as slow; zero disables that counter.
func NewQueryStats(slowOver time.Duration) *QueryStats {
	return &QueryStats{slowOver: slowOver}
}

func (s *QueryStats) BeforeQuery(_ context.Context, _ string, _ []any) {}

func (s *QueryStats) AfterQuery(_ context.Context, _ string, _ []any, d time.Duration, err error) {
	s.total.Add(1)
	if err != nil && !IsNotFound(err) {
		s.failed.Add(1)
	}
	if s.slowOver > 0 && d > s.slowOver {
		s.slow.Add(1)
	}
}

// QueryStatsSnapshot is a point-in-time copy of the counters.
type QueryStatsSnapshot struct {
	Total  int64 `json:"total"`
	Failed int64 `json:"failed"`
	Slow   int64 `json:"slow"`
}

// Snapshot reads the counters.
func (s *QueryStats) Snapshot() QueryStatsSnapshot {
	return QueryStatsSnapshot{
		Total:  s.total.Load(),
		Failed: s.failed.Load(),
		Slow:   s.slow.Load(),
	}
}
