package lifecycle_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Skryldev/tippspiel/db/dbtest"
	"github.com/Skryldev/tippspiel/lifecycle"
	"github.com/Skryldev/tippspiel/models"
	"github.com/Skryldev/tippspiel/repo"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeMatch struct {
	kickoff time.Time
	status  models.Status
}

type fakeStore struct {
	mu      sync.Mutex
	matches map[int64]*fakeMatch
	liveErr error
}

func (s *fakeStore) AdvanceToLive(_ context.Context, now time.Time) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.liveErr != nil {
		return nil, s.liveErr
	}
	var ids []int64
	for id, m := range s.matches {
		if m.status == models.StatusScheduled && !m.kickoff.After(now) {
			m.status = models.StatusLive
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *fakeStore) AdvanceToFinished(_ context.Context, cutoff, _ time.Time) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for id, m := range s.matches {
		if m.status == models.StatusLive && !m.kickoff.After(cutoff) {
			m.status = models.StatusFinished
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *fakeStore) status(id int64) models.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matches[id].status
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
	ch     chan struct{}
}

func (n *recordingNotifier) MatchStatusChanged(_ context.Context, id int64, st models.Status) {
	n.mu.Lock()
	n.events = append(n.events, string(st))
	n.mu.Unlock()
	if n.ch != nil {
		select {
		case n.ch <- struct{}{}:
		default:
		}
	}
}

var kickoff = time.Date(2026, 3, 14, 15, 30, 0, 0, time.UTC)

func newFake(status models.Status) *fakeStore {
	return &fakeStore{matches: map[int64]*fakeMatch{1: {kickoff: kickoff, status: status}}}
}

// ─────────────────────────────────────────────────────────────────────────────
// Advance
// ─────────────────────────────────────────────────────────────────────────────

func TestAdvance_Transitions(t *testing.T) {
	cases := []struct {
		name  string
		start models.Status
		now   time.Time
		want  models.Status
	}{
		{"before kickoff stays scheduled", models.StatusScheduled, kickoff.Add(-time.Second), models.StatusScheduled},
		{"at kickoff goes live", models.StatusScheduled, kickoff, models.StatusLive},
		{"within window stays live", models.StatusLive, kickoff.Add(119 * time.Minute), models.StatusLive},
		{"window elapsed finishes", models.StatusLive, kickoff.Add(120 * time.Minute), models.StatusFinished},
		{"missed window finishes in one call", models.StatusScheduled, kickoff.Add(5 * time.Hour), models.StatusFinished},
		{"scored is never touched", models.StatusScored, kickoff.Add(5 * time.Hour), models.StatusScored},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFake(tc.start)
			a := lifecycle.New(store, lifecycle.Config{})
			if _, err := a.Advance(context.Background(), tc.now); err != nil {
				t.Fatalf("advance: %v", err)
			}
			if got := store.status(1); got != tc.want {
				t.Fatalf("status = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestAdvance_Idempotent(t *testing.T) {
	store := newFake(models.StatusScheduled)
	a := lifecycle.New(store, lifecycle.Config{})
	now := kickoff.Add(10 * time.Minute)

	first, err := a.Advance(context.Background(), now)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if len(first.Live) != 1 {
		t.Fatalf("expected one live transition, got %+v", first)
	}
	second, err := a.Advance(context.Background(), now)
	if err != nil {
		t.Fatalf("advance again: %v", err)
	}
	if !second.Empty() {
		t.Fatalf("second call should be a no-op, got %+v", second)
	}
}

func TestAdvance_CustomWindow(t *testing.T) {
	store := newFake(models.StatusLive)
	a := lifecycle.New(store, lifecycle.Config{Regulation: 45 * time.Minute, AddedTime: 15 * time.Minute})
	if a.FinishedAfter() != time.Hour {
		t.Fatalf("FinishedAfter = %s", a.FinishedAfter())
	}
	if _, err := a.Advance(context.Background(), kickoff.Add(time.Hour)); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if got := store.status(1); got != models.StatusFinished {
		t.Fatalf("status = %s, want finished", got)
	}
}

func TestAdvance_NotifiesInOrder(t *testing.T) {
	store := newFake(models.StatusScheduled)
	n := &recordingNotifier{}
	a := lifecycle.New(store, lifecycle.Config{Notifier: n})

	if _, err := a.Advance(context.Background(), kickoff.Add(3*time.Hour)); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if len(n.events) != 2 || n.events[0] != "live" || n.events[1] != "finished" {
		t.Fatalf("unexpected events: %v", n.events)
	}
}

func TestAdvance_ErrorStillRunsFinishedStep(t *testing.T) {
	boom := errors.New("boom")
	store := newFake(models.StatusLive)
	store.liveErr = boom
	a := lifecycle.New(store, lifecycle.Config{})

	tr, err := a.Advance(context.Background(), kickoff.Add(3*time.Hour))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
	if len(tr.Finished) != 1 {
		t.Fatalf("finished step should still run, got %+v", tr)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Start / Stop
// ─────────────────────────────────────────────────────────────────────────────

func TestStartStop_Restartable(t *testing.T) {
	store := newFake(models.StatusScheduled)
	n := &recordingNotifier{ch: make(chan struct{}, 1)}

	var mu sync.Mutex
	now := kickoff.Add(-time.Minute)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	a := lifecycle.New(store, lifecycle.Config{Interval: 5 * time.Millisecond, Clock: clock, Notifier: n})
	ctx := context.Background()

	if err := a.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := a.Start(ctx); !errors.Is(err, lifecycle.ErrRunning) {
		t.Fatalf("second start: expected ErrRunning, got %v", err)
	}
	a.Stop()
	if a.Running() {
		t.Fatal("expected stopped")
	}
	if got := store.status(1); got != models.StatusScheduled {
		t.Fatalf("status = %s before kickoff", got)
	}

	mu.Lock()
	now = kickoff.Add(time.Minute)
	mu.Unlock()

	if err := a.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer a.Stop()

	select {
	case <-n.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("advancer did not tick after restart")
	}
	if got := store.status(1); got != models.StatusLive {
		t.Fatalf("status = %s, want live", got)
	}
}

func TestStop_WhenNotRunning(t *testing.T) {
	a := lifecycle.New(newFake(models.StatusScheduled), lifecycle.Config{})
	a.Stop()
	a.Stop()
}

// ─────────────────────────────────────────────────────────────────────────────
// Against the real store
// ─────────────────────────────────────────────────────────────────────────────

func TestAdvance_SQLite(t *testing.T) {
	d := dbtest.Open(t)
	ctx := context.Background()
	matches := repo.NewMatchRepo(d)

	early, err := matches.Insert(ctx, models.CreateMatchParams{Kickoff: kickoff, HomeTeam: "Bayern", AwayTeam: "Dortmund"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	late, err := matches.Insert(ctx, models.CreateMatchParams{Kickoff: kickoff.Add(3 * time.Hour), HomeTeam: "Mainz", AwayTeam: "Bochum"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	a := lifecycle.New(matches, lifecycle.Config{})
	tr, err := a.Advance(ctx, kickoff.Add(150*time.Minute))
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if len(tr.Live) != 1 || tr.Live[0] != early.ID || len(tr.Finished) != 1 || tr.Finished[0] != early.ID {
		t.Fatalf("unexpected transitions: %+v", tr)
	}

	got, err := matches.GetByID(ctx, early.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.StatusFinished {
		t.Fatalf("early status = %s", got.Status)
	}
	got, err = matches.GetByID(ctx, late.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.StatusScheduled {
		t.Fatalf("late status = %s", got.Status)
	}
}
