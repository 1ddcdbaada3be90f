package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Skryldev/tippspiel/db"
	"github.com/Skryldev/tippspiel/models"
)

// SessionRepository stores login sessions.
type SessionRepository interface {
	Insert(ctx context.Context, s models.Session) error
	// GetUser resolves a token that has not expired at now to its user.
	GetUser(ctx context.Context, token string, now time.Time) (*models.User, error)
	Delete(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID int64) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

const (
	sqlInsertSession = `
		INSERT INTO sessions (token, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)`

	sqlGetSessionUser = `
		SELECT u.id, u.name, u.password_hash, u.role, u.created_at
		FROM   sessions s
		JOIN   users u ON u.id = s.user_id
		WHERE  s.token = $1 AND s.expires_at > $2`

	sqlDeleteSession        = `DELETE FROM sessions WHERE token = $1`
	sqlDeleteUserSessions   = `DELETE FROM sessions WHERE user_id = $1`
	sqlDeleteExpiredSession = `DELETE FROM sessions WHERE expires_at <= $1`
)

type sessionRepo struct{ q db.Querier }

// NewSessionRepo returns a SessionRepository backed by q.
func NewSessionRepo(q db.Querier) SessionRepository { return &sessionRepo{q: q} }

func (r *sessionRepo) Insert(ctx context.Context, s models.Session) error {
	_, err := r.q.Exec(ctx, sqlInsertSession, s.Token, s.UserID, s.CreatedAt.UTC(), s.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("repo/session: insert: %w", err)
	}
	return nil
}

func (r *sessionRepo) GetUser(ctx context.Context, token string, now time.Time) (*models.User, error) {
	return scanUser(r.q.QueryRow(ctx, sqlGetSessionUser, token, now.UTC()))
}

// Delete is idempotent: logging out twice is not an error.
func (r *sessionRepo) Delete(ctx context.Context, token string) error {
	if _, err := r.q.Exec(ctx, sqlDeleteSession, token); err != nil {
		return fmt.Errorf("repo/session: delete: %w", err)
	}
	return nil
}

func (r *sessionRepo) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	res, err := r.q.Exec(ctx, sqlDeleteUserSessions, userID)
	if err != nil {
		return 0, fmt.Errorf("repo/session: delete by user: %w", err)
	}
	return res.RowsAffected()
}

func (r *sessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.Exec(ctx, sqlDeleteExpiredSession, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("repo/session: delete expired: %w", err)
	}
	return res.RowsAffected()
}

var _ SessionRepository = (*sessionRepo)(nil)
