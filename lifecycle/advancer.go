// Package lifecycle moves matches along scheduled → live → finished by
// comparing wall-clock time with their kickoff.
//
// The transition is a pure function of (now, kickoff, status): running it
// late, twice, or after missed ticks converges to the same state, and it
// never moves a match backwards or touches a scored match.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Skryldev/tippspiel/models"
)

const (
	DefaultRegulation = 90 * time.Minute
	DefaultAddedTime  = 30 * time.Minute
	DefaultInterval   = time.Minute
)

// ErrRunning is returned by Start when the advancer is already running.
var ErrRunning = errors.New("lifecycle: advancer already running")

// Store applies the two conditional status updates. repo.MatchRepository
// satisfies it.
type Store interface {
	AdvanceToLive(ctx context.Context, now time.Time) ([]int64, error)
	AdvanceToFinished(ctx context.Context, cutoff, now time.Time) ([]int64, error)
}

// Notifier is told about every transition the advancer makes.
type Notifier interface {
	MatchStatusChanged(ctx context.Context, matchID int64, status models.Status)
}

// Config tunes the advancer. Zero values take the defaults.
type Config struct {
	Regulation time.Duration
	// AddedTime of zero takes the default; a negative value means none.
	AddedTime time.Duration
	Interval  time.Duration

	// Clock defaults to time.Now.
	Clock    func() time.Time
	Logger   *slog.Logger
	Notifier Notifier
}

// Transitions lists the matches one Advance call moved.
type Transitions struct {
	Live     []int64 `json:"live"`
	Finished []int64 `json:"finished"`
}

// Empty reports whether nothing moved.
func (t Transitions) Empty() bool { return len(t.Live) == 0 && len(t.Finished) == 0 }

// Advancer is a restartable periodic task. Run one per deployment; a
// second instance is harmless but writes twice.
type Advancer struct {
	store Store
	cfg   Config

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a stopped advancer.
func New(store Store, cfg Config) *Advancer {
	if cfg.Regulation <= 0 {
		cfg.Regulation = DefaultRegulation
	}
	if cfg.AddedTime < 0 {
		cfg.AddedTime = 0
	} else if cfg.AddedTime == 0 {
		cfg.AddedTime = DefaultAddedTime
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Advancer{store: store, cfg: cfg}
}

// FinishedAfter is how long after kickoff a live match counts as finished.
func (a *Advancer) FinishedAfter() time.Duration {
	return a.cfg.Regulation + a.cfg.AddedTime
}

// Advance applies both transitions as of now. The live step runs first so
// a match whose whole window passed unobserved ends finished in one call.
func (a *Advancer) Advance(ctx context.Context, now time.Time) (Transitions, error) {
	var t Transitions

	live, liveErr := a.store.AdvanceToLive(ctx, now)
	if liveErr != nil {
		liveErr = fmt.Errorf("lifecycle: scheduled→live: %w", liveErr)
	}
	t.Live = live

	finished, finErr := a.store.AdvanceToFinished(ctx, now.Add(-a.FinishedAfter()), now)
	if finErr != nil {
		finErr = fmt.Errorf("lifecycle: live→finished: %w", finErr)
	}
	t.Finished = finished

	if n := a.cfg.Notifier; n != nil {
		for _, id := range t.Live {
			n.MatchStatusChanged(ctx, id, models.StatusLive)
		}
		for _, id := range t.Finished {
			n.MatchStatusChanged(ctx, id, models.StatusFinished)
		}
	}
	return t, errors.Join(liveErr, finErr)
}

// Tick runs Advance at the configured clock's now and logs the outcome.
// Failures are logged and left for the next tick.
func (a *Advancer) Tick(ctx context.Context) {
	now := a.cfg.Clock()
	t, err := a.Advance(ctx, now)
	if err != nil {
		a.cfg.Logger.ErrorContext(ctx, "lifecycle: advance failed, retrying next tick", "error", err)
	}
	if !t.Empty() {
		a.cfg.Logger.InfoContext(ctx, "lifecycle: match status advanced",
			"live", t.Live, "finished", t.Finished, "at", now.UTC())
	}
}

// Start ticks once immediately, then every Interval, until ctx is done or
// Stop is called.
func (a *Advancer) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	a.cancel, a.done = cancel, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(a.cfg.Interval)
		defer ticker.Stop()

		a.Tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.Tick(ctx)
			}
		}
	}()

	a.cfg.Logger.Info("lifecycle: advancer started",
		"interval", a.cfg.Interval, "finished_after", a.FinishedAfter())
	return nil
}

// Stop cancels the loop and waits for the in-flight tick. The advancer can
// be started again afterwards.
func (a *Advancer) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	a.cfg.Logger.Info("lifecycle: advancer stopped")
}

// Running reports whether the loop is active.
func (a *Advancer) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancel != nil
}
