package game

import (
	"errors"
	"fmt"

	"github.com/Skryldev/tippspiel/db"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sentinel errors
// ─────────────────────────────────────────────────────────────────────────────

var (
	ErrNotAuthenticated = errors.New("game: not authenticated")
	ErrNotAuthorized    = errors.New("game: not authorized")
	ErrNotFound         = errors.New("game: not found")
	// ErrNotOpen means the match has left the scheduled state.
	ErrNotOpen = errors.New("game: match not open for predictions")
	// ErrPastKickoff means the match is still scheduled but kickoff has
	// passed and the advancer has not caught up yet.
	ErrPastKickoff = errors.New("game: kickoff has passed")
	ErrValidation  = errors.New("game: validation failed")
	ErrConflict    = errors.New("game: conflict")
)

func IsNotAuthenticated(err error) bool { return errors.Is(err, ErrNotAuthenticated) }
func IsNotAuthorized(err error) bool    { return errors.Is(err, ErrNotAuthorized) }
func IsNotFound(err error) bool         { return errors.Is(err, ErrNotFound) }
func IsValidation(err error) bool       { return errors.Is(err, ErrValidation) }
func IsConflict(err error) bool         { return errors.Is(err, ErrConflict) }

// ─────────────────────────────────────────────────────────────────────────────
// Error
// ─────────────────────────────────────────────────────────────────────────────

// Error carries a kind sentinel, a message fit for the client, and the
// underlying cause, which is for logs only.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Is(target error) bool { return errors.Is(e.Kind, target) }
func (e *Error) Unwrap() error        { return e.Cause }

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// classify turns a store error into a game error when it has a client-facing
// meaning; anything else is returned wrapped as is.
func classify(err error, what string) error {
	var gerr *Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &gerr):
		return err
	case db.IsNotFound(err):
		return &Error{Kind: ErrNotFound, Message: what + " not found", Cause: err}
	case db.IsDuplicateKey(err):
		return &Error{Kind: ErrConflict, Message: what + " already exists", Cause: err}
	case db.IsCheckViolation(err):
		return &Error{Kind: ErrValidation, Message: "invalid " + what, Cause: err}
	case db.IsForeignKeyViolation(err):
		return &Error{Kind: ErrNotFound, Message: what + " references a missing row", Cause: err}
	}
	return fmt.Errorf("game: %s: %w", what, err)
}

// Message returns the client-safe text of err, or "" when err is not a
// game error.
func Message(err error) string {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Message
	}
	return ""
}
