// Package game implements the prediction game's operations: every entry
// point checks the caller's role, validates input, and runs its reads and
// writes through the repo layer, inside a transaction where the operation
// must see a consistent snapshot.
package game

import (
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Skryldev/tippspiel/db"
	"github.com/Skryldev/tippspiel/models"
	"github.com/Skryldev/tippspiel/repo"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultSessionTTL = 24 * time.Hour
	// MaxGoals bounds a single side's score in predictions and results.
	MaxGoals = 99
	// MaxNameLength bounds user, team and slot names.
	MaxNameLength = 64
)

// Options configures a Service. Zero values take the defaults.
type Options struct {
	// Clock defaults to time.Now. The prediction window is judged against it.
	Clock      func() time.Time
	SessionTTL time.Duration
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	// Retry wraps the scoring transaction; defaults to three attempts on
	// deadlock or timeout.
	Retry  db.RetryConfig
	Logger *slog.Logger
}

// Service is safe for concurrent use.
type Service struct {
	db *db.DB

	users       repo.UserRepository
	matches     repo.MatchRepository
	predictions repo.PredictionRepository
	sessions    repo.SessionRepository
	teams       repo.TeamRepository
	slots       repo.SlotRepository

	now        func() time.Time
	sessionTTL time.Duration
	bcryptCost int
	retry      db.RetryConfig
	log        *slog.Logger
}

// New wires a Service over d.
func New(d *db.DB, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = db.RetryConfig{MaxAttempts: 3, Delay: 50 * time.Millisecond}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		db:          d,
		users:       repo.NewUserRepo(d),
		matches:     repo.NewMatchRepo(d),
		predictions: repo.NewPredictionRepo(d),
		sessions:    repo.NewSessionRepo(d),
		teams:       repo.NewTeamRepo(d),
		slots:       repo.NewSlotRepo(d),
		now:         opts.Clock,
		sessionTTL:  opts.SessionTTL,
		bcryptCost:  opts.BcryptCost,
		retry:       opts.Retry,
		log:         opts.Logger,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Role checks
// ─────────────────────────────────────────────────────────────────────────────

func requireLogin(actor *models.User) error {
	if actor == nil {
		return newError(ErrNotAuthenticated, "login required")
	}
	return nil
}

func requireAdmin(actor *models.User) error {
	if err := requireLogin(actor); err != nil {
		return err
	}
	if actor.Role != models.RoleAdmin {
		return newError(ErrNotAuthorized, "admin only")
	}
	return nil
}

func requirePlayer(actor *models.User) error {
	if err := requireLogin(actor); err != nil {
		return err
	}
	if actor.Role != models.RolePlayer {
		return newError(ErrNotAuthorized, "players only")
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

func validateGoals(home, away int) error {
	if home < 0 || away < 0 || home > MaxGoals || away > MaxGoals {
		return newError(ErrValidation, "goals must be between 0 and %d", MaxGoals)
	}
	return nil
}

func cleanName(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", newError(ErrValidation, "%s is required", field)
	}
	if utf8.RuneCountInString(s) > MaxNameLength {
		return "", newError(ErrValidation, "%s is longer than %d characters", field, MaxNameLength)
	}
	return s, nil
}
