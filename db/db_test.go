// db/db_test.go exercises the storage layer against a migrated SQLite file;
// no external services required.
//
// Run:  go test ./db/... -v -race
package db_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Skryldev/tippspiel/db"
	"github.com/Skryldev/tippspiel/db/dbtest"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test helpers
// ─────────────────────────────────────────────────────────────────────────────

const insertTeam = `INSERT INTO teams (name) VALUES (?)`

func countTeams(t *testing.T, d *db.DB, name string) int {
	t.Helper()
	var n int
	if err := d.QueryRow(context.Background(), `SELECT COUNT(*) FROM teams WHERE name = ?`, name).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

// ─────────────────────────────────────────────────────────────────────────────
// Open / Ping
// ─────────────────────────────────────────────────────────────────────────────

func TestOpen(t *testing.T) {
	d := dbtest.Open(t)
	if err := d.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
	if d.DriverName() != "sqlite3" {
		t.Fatalf("unexpected driver %q", d.DriverName())
	}
}

func TestOpen_InvalidConfig(t *testing.T) {
	if _, err := db.Open(db.Config{DSN: "", DriverName: "sqlite3"}); err == nil {
		t.Fatal("expected error for empty DSN")
	}
	if _, err := db.Open(db.Config{DSN: "x.db", DriverName: ""}); err == nil {
		t.Fatal("expected error for empty driver name")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Exec / QueryRow / Query
// ─────────────────────────────────────────────────────────────────────────────

func TestExec_Insert(t *testing.T) {
	d := dbtest.Open(t)
	res, err := d.Exec(context.Background(), insertTeam, "Werder Bremen")
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		t.Fatalf("expected 1 row affected, got %d", n)
	}
}

func TestQueryRow_Scan(t *testing.T) {
	d := dbtest.Open(t)
	ctx := context.Background()
	if _, err := d.Exec(ctx, insertTeam, "Hamburger SV"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	var id int64
	var name string
	if err := d.QueryRow(ctx, `SELECT id, name FROM teams WHERE name = ?`, "Hamburger SV").Scan(&id, &name); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if id == 0 || name != "Hamburger SV" {
		t.Fatalf("unexpected values: id=%d name=%q", id, name)
	}
}

func TestQueryRow_NotFound(t *testing.T) {
	d := dbtest.Open(t)
	var name string
	err := d.QueryRow(context.Background(), `SELECT name FROM teams WHERE id = ?`, 99999).Scan(&name)
	if !db.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQuery_MultipleRows(t *testing.T) {
	d := dbtest.Open(t)
	ctx := context.Background()
	for _, name := range []string{"Union", "Hertha", "Bochum"} {
		if _, err := d.Exec(ctx, insertTeam, name); err != nil {
			t.Fatalf("insert %s: %v", name, err)
		}
	}

	rows, err := d.Query(ctx, `SELECT name FROM teams ORDER BY name`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			t.Fatalf("scan: %v", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows.Err: %v", err)
	}
	if strings.Join(names, ",") != "Bochum,Hertha,Union" {
		t.Fatalf("unexpected order: %v", names)
	}
}

func TestContextCancellation(t *testing.T) {
	d := dbtest.Open(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Exec(ctx, insertTeam, "Cancelled")
	if !db.IsTimeout(err) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// ExecTx
// ─────────────────────────────────────────────────────────────────────────────

func TestExecTx_Commit(t *testing.T) {
	d := dbtest.Open(t)
	ctx := context.Background()

	err := d.ExecTx(ctx, func(tx *db.Tx) error {
		_, err := tx.Exec(ctx, insertTeam, "Mainz")
		return err
	})
	if err != nil {
		t.Fatalf("tx commit: %v", err)
	}
	if n := countTeams(t, d, "Mainz"); n != 1 {
		t.Fatalf("expected 1 committed row, got %d", n)
	}
}

func TestExecTx_RollbackOnError(t *testing.T) {
	d := dbtest.Open(t)
	ctx := context.Background()
	sentinelErr := errors.New("intentional failure")

	err := d.ExecTx(ctx, func(tx *db.Tx) error {
		if _, err := tx.Exec(ctx, insertTeam, "Kiel"); err != nil {
			return err
		}
		return sentinelErr
	})
	if !errors.Is(err, sentinelErr) {
		t.Fatalf("expected sentinelErr, got %v", err)
	}
	if n := countTeams(t, d, "Kiel"); n != 0 {
		t.Fatalf("expected 0 rows after rollback, got %d", n)
	}
}

func TestExecTx_RollbackOnConstraintError(t *testing.T) {
	d := dbtest.Open(t)
	ctx := context.Background()
	if _, err := d.Exec(ctx, insertTeam, "Köln"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	err := d.ExecTx(ctx, func(tx *db.Tx) error {
		if _, err := tx.Exec(ctx, insertTeam, "Augsburg"); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, insertTeam, "Köln")
		return err
	})
	if !db.IsDuplicateKey(err) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	if n := countTeams(t, d, "Augsburg"); n != 0 {
		t.Fatalf("expected rollback, got %d rows", n)
	}
}

func TestExecTx_RollbackOnPanic(t *testing.T) {
	d := dbtest.Open(t)
	ctx := context.Background()

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = d.ExecTx(ctx, func(tx *db.Tx) error {
			if _, err := tx.Exec(ctx, insertTeam, "Fürth"); err != nil {
				return err
			}
			panic("test panic")
		})
	}()

	if n := countTeams(t, d, "Fürth"); n != 0 {
		t.Fatalf("expected rollback after panic, got %d rows", n)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Prepared statements
// ─────────────────────────────────────────────────────────────────────────────

func TestPrepare(t *testing.T) {
	d := dbtest.Open(t)
	ctx := context.Background()

	stmt, err := d.Prepare(ctx, `INSERT INTO kickoff_slots (label) VALUES (?)`)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	defer stmt.Close()

	for _, label := range []string{"15:30", "18:30", "20:30"} {
		if _, err := stmt.Exec(ctx, label); err != nil {
			t.Fatalf("exec prepared: %v", err)
		}
	}
	if _, err := stmt.Exec(ctx, "15:30"); !db.IsDuplicateKey(err) {
		t.Fatalf("expected ErrDuplicateKey from prepared statement, got %v", err)
	}

	var n int
	_ = d.QueryRow(ctx, `SELECT COUNT(*) FROM kickoff_slots`).Scan(&n)
	if n != 3 {
		t.Fatalf("expected 3 rows, got %d", n)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Error mapping
// ─────────────────────────────────────────────────────────────────────────────

func TestErrorMapper_SQLiteConstraints(t *testing.T) {
	d := dbtest.Open(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := d.Exec(ctx, insertTeam, "Bayern"); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	cases := []struct {
		name  string
		query string
		args  []any
		is    func(error) bool
	}{
		{"unique", insertTeam, []any{"Bayern"}, db.IsDuplicateKey},
		{"check", `INSERT INTO users (name, password_hash, role, created_at) VALUES (?, ?, ?, ?)`,
			[]any{"x", "h", "coach", now}, db.IsCheckViolation},
		{"foreign key", `INSERT INTO predictions (user_id, match_id, home_goals, away_goals, updated_at) VALUES (?, ?, ?, ?, ?)`,
			[]any{999, 999, 1, 0, now}, db.IsForeignKeyViolation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.Exec(ctx, tc.query, tc.args...)
			if !tc.is(err) {
				t.Fatalf("unexpected mapping: %v", err)
			}
			var dbe *db.DBError
			if !errors.As(err, &dbe) || dbe.Unwrap() == nil {
				t.Fatalf("expected a DBError carrying the driver cause, got %T", err)
			}
		})
	}
}

func TestDefaultErrorMapper_Fallbacks(t *testing.T) {
	m := db.DefaultErrorMapper()
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"sqlstate suffix unique", errors.New(`pq: duplicate key value (SQLSTATE 23505)`), db.ErrDuplicateKey},
		{"sqlstate suffix deadlock", errors.New(`proxy: aborted (SQLSTATE 40P01)`), db.ErrDeadlock},
		{"sqlstate suffix connection", errors.New(`pool: gone (SQLSTATE 08006)`), db.ErrConnectionFailed},
		{"sqlite check text", errors.New("CHECK constraint failed: role"), db.ErrCheckViolation},
		{"sqlite locked text", errors.New("database is locked"), db.ErrDeadlock},
		{"deadline", context.DeadlineExceeded, db.ErrTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := m.Map(tc.err); !errors.Is(got, tc.want) {
				t.Fatalf("Map(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}

	plain := errors.New("something else")
	if got := m.Map(plain); got != plain {
		t.Fatalf("unrecognised errors must pass through, got %v", got)
	}
	if m.Map(nil) != nil {
		t.Fatal("nil must map to nil")
	}
}

func TestChainMapper_FirstChangeWins(t *testing.T) {
	custom := errors.New("custom")
	var calls atomic.Int32
	first := db.ErrorMapperFunc(func(err error) error {
		calls.Add(1)
		if err.Error() == "special" {
			return custom
		}
		return err
	})
	m := db.ChainMapper(first, db.DefaultErrorMapper())

	if got := m.Map(errors.New("special")); got != custom {
		t.Fatalf("expected custom mapping, got %v", got)
	}
	if got := m.Map(errors.New("UNIQUE constraint failed: teams.name")); !db.IsDuplicateKey(got) {
		t.Fatalf("expected fallthrough to default mapper, got %v", got)
	}
	if calls.Load() != 2 {
		t.Fatalf("first mapper should run on every error, ran %d times", calls.Load())
	}
}

func TestDBError_IsAndUnwrap(t *testing.T) {
	cause := errors.New("driver said no")
	err := error(&db.DBError{Sentinel: db.ErrNotFound, Cause: cause, Message: "match 7"})
	if !db.IsNotFound(err) || db.IsDuplicateKey(err) {
		t.Fatal("sentinel matching is wrong")
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause must be reachable through Unwrap")
	}
	if !strings.Contains(err.Error(), "match 7") {
		t.Fatalf("message missing from %q", err.Error())
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Drivers
// ─────────────────────────────────────────────────────────────────────────────

func TestPostgresDriver_DSN(t *testing.T) {
	dsn, err := db.PostgresDriver{}.DSN(db.DriverOptions{
		Host: "db", User: "tipp", Password: "secret", Database: "tippspiel",
		Extra: map[string]string{"connect_timeout": "5", "application_name": "tippspiel"},
	})
	if err != nil {
		t.Fatalf("dsn: %v", err)
	}
	want := "host=db port=5432 user=tipp password=secret dbname=tippspiel sslmode=disable application_name=tippspiel connect_timeout=5"
	if dsn != want {
		t.Fatalf("got  %q\nwant %q", dsn, want)
	}

	if _, err := (db.PostgresDriver{}).DSN(db.DriverOptions{Database: "x"}); err == nil {
		t.Fatal("expected error without host")
	}
}

func TestSQLiteDriver_DSN(t *testing.T) {
	dsn, err := db.SQLiteDriver{}.DSN(db.DriverOptions{
		Database: "tipp.db",
		Extra:    map[string]string{"_busy_timeout": "100", "_journal_mode": "WAL"},
	})
	if err != nil {
		t.Fatalf("dsn: %v", err)
	}
	if dsn != "tipp.db?_busy_timeout=100&_foreign_keys=on&_journal_mode=WAL" {
		t.Fatalf("unexpected dsn %q", dsn)
	}
	if _, err := (db.SQLiteDriver{}).DSN(db.DriverOptions{}); err == nil {
		t.Fatal("expected error without a file path")
	}
}

type renamedDriver struct{ db.SQLiteDriver }

func (renamedDriver) Name() string { return "sqlite3-test-alias" }

func TestDriverRegistry(t *testing.T) {
	if _, err := db.LookupDriver("mysql"); err == nil {
		t.Fatal("mysql must not be registered")
	}
	for _, name := range []string{"postgres", "sqlite3"} {
		if _, err := db.LookupDriver(name); err != nil {
			t.Fatalf("lookup %s: %v", name, err)
		}
	}

	db.RegisterDriver(renamedDriver{})
	d, err := db.LookupDriver("sqlite3-test-alias")
	if err != nil {
		t.Fatalf("lookup registered driver: %v", err)
	}
	if _, err := d.DSN(db.DriverOptions{Database: "a.db"}); err != nil {
		t.Fatalf("embedded DSN: %v", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// WithRetry
// ─────────────────────────────────────────────────────────────────────────────

func TestWithRetry_SucceedsOnSecondAttempt(t *testing.T) {
	attempts := 0
	transient := errors.New("transient")

	err := db.WithRetry(context.Background(), db.RetryConfig{
		MaxAttempts: 3,
		Delay:       time.Millisecond,
		RetryOn:     func(err error) bool { return errors.Is(err, transient) },
	}, func() error {
		attempts++
		if attempts < 2 {
			return transient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := db.WithRetry(context.Background(), db.RetryConfig{MaxAttempts: 3, Delay: time.Millisecond}, func() error {
		attempts++
		return &db.DBError{Sentinel: db.ErrDeadlock, Cause: errors.New("40P01")}
	})
	if !db.IsDeadlock(err) {
		t.Fatalf("expected the last deadlock to be wrapped, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("default RetryOn should retry deadlocks; got %d attempts", attempts)
	}
}

func TestWithRetry_StopsOnPermanentError(t *testing.T) {
	attempts := 0
	err := db.WithRetry(context.Background(), db.RetryConfig{MaxAttempts: 5, Delay: time.Millisecond}, func() error {
		attempts++
		return &db.DBError{Sentinel: db.ErrDuplicateKey, Cause: errors.New("23505")}
	})
	if !db.IsDuplicateKey(err) || attempts != 1 {
		t.Fatalf("expected one attempt and the original error, got %d attempts, %v", attempts, err)
	}
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := db.WithRetry(ctx, db.RetryConfig{MaxAttempts: 3, Delay: time.Hour}, func() error {
		attempts++
		cancel()
		return &db.DBError{Sentinel: db.ErrTimeout, Cause: context.DeadlineExceeded}
	})
	if !errors.Is(err, context.Canceled) || attempts != 1 {
		t.Fatalf("expected cancellation after one attempt, got %d attempts, %v", attempts, err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Hooks
// ─────────────────────────────────────────────────────────────────────────────

type countingHook struct {
	before int
	after  int
	errs   int
}

func (h *countingHook) BeforeQuery(_ context.Context, _ string, _ []any) { h.before++ }
func (h *countingHook) AfterQuery(_ context.Context, _ string, _ []any, _ time.Duration, err error) {
	h.after++
	if err != nil {
		h.errs++
	}
}

type panickingHook struct{}

func (panickingHook) BeforeQuery(context.Context, string, []any) { panic("before") }
func (panickingHook) AfterQuery(context.Context, string, []any, time.Duration, error) {
	panic("after")
}

func TestHooks_CalledOnExec(t *testing.T) {
	hook := &countingHook{}
	d := dbtest.Open(t, hook, panickingHook{}, nil)
	ctx := context.Background()

	if _, err := d.Exec(ctx, insertTeam, "St. Pauli"); err != nil {
		t.Fatalf("exec: %v", err)
	}
	_, _ = d.Exec(ctx, insertTeam, "St. Pauli")
	_ = d.ExecTx(ctx, func(tx *db.Tx) error {
		_, err := tx.Exec(ctx, insertTeam, "Hoffenheim")
		return err
	})

	if hook.before != 3 || hook.after != 3 {
		t.Fatalf("hook not called: before=%d after=%d", hook.before, hook.after)
	}
	if hook.errs != 1 {
		t.Fatalf("expected the duplicate insert to reach AfterQuery as an error, got %d", hook.errs)
	}
}

func TestQueryStats(t *testing.T) {
	stats := db.NewQueryStats(time.Nanosecond)
	d := dbtest.Open(t, stats)
	ctx := context.Background()

	if _, err := d.Exec(ctx, insertTeam, "Gladbach"); err != nil {
		t.Fatalf("exec: %v", err)
	}
	_, _ = d.Exec(ctx, insertTeam, "Gladbach")

	snap := stats.Snapshot()
	if snap.Total != 2 || snap.Failed != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Slow != 2 {
		t.Fatalf("every statement exceeds 1ns; got slow=%d", snap.Slow)
	}
}
