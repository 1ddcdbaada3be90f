package game

import (
	"context"
	"errors"

	"github.com/Skryldev/tippspiel/db"
	"github.com/Skryldev/tippspiel/models"
	"github.com/Skryldev/tippspiel/repo"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ─────────────────────────────────────────────────────────────────────────────
// Users
// ─────────────────────────────────────────────────────────────────────────────

// CreateUser adds an account. Names are unique; a taken name is ErrConflict.
func (s *Service) CreateUser(ctx context.Context, actor *models.User, name, password string, role models.Role) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	name, err := cleanName("name", name)
	if err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, newError(ErrValidation, "role must be %q or %q", models.RoleAdmin, models.RolePlayer)
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}

	u, err := s.users.Insert(ctx, models.CreateUserParams{Name: name, PasswordHash: hash, Role: role})
	if err != nil {
		return nil, classify(err, "user")
	}
	s.log.InfoContext(ctx, "game: user created", "user_id", u.ID, "name", u.Name, "role", u.Role, "by", actor.ID)
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context, actor *models.User) ([]*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, classify(err, "users")
	}
	return users, nil
}

// DeleteUser removes an account with its predictions and sessions. Admins
// cannot delete themselves.
func (s *Service) DeleteUser(ctx context.Context, actor *models.User, userID int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if actor.ID == userID {
		return newError(ErrValidation, "cannot delete your own account")
	}
	err := s.db.ExecTx(ctx, func(tx *db.Tx) error {
		if _, err := repo.NewPredictionRepo(tx).DeleteByUser(ctx, userID); err != nil {
			return err
		}
		if _, err := repo.NewSessionRepo(tx).DeleteByUser(ctx, userID); err != nil {
			return err
		}
		return repo.NewUserRepo(tx).Delete(ctx, userID)
	})
	if err != nil {
		return classify(err, "user")
	}
	s.log.InfoContext(ctx, "game: user deleted", "user_id", userID, "by", actor.ID)
	return nil
}

// SetAdmin creates name as an admin, or promotes an existing account and
// resets its password. It bypasses role checks and is meant for the
// bootstrap CLI only.
func (s *Service) SetAdmin(ctx context.Context, name, password string) (*models.User, error) {
	name, err := cleanName("name", name)
	if err != nil {
		return nil, err
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}
	u, err := s.users.UpsertAdmin(ctx, name, hash)
	if err != nil {
		return nil, classify(err, "user")
	}
	s.log.InfoContext(ctx, "game: admin set", "user_id", u.ID, "name", u.Name)
	return u, nil
}

// Authenticate checks a name/password pair. Unknown names and wrong
// passwords fail identically.
func (s *Service) Authenticate(ctx context.Context, name, password string) (*models.User, error) {
	u, err := s.users.GetByName(ctx, name)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, newError(ErrNotAuthenticated, "login failed")
		}
		return nil, classify(err, "user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, newError(ErrNotAuthenticated, "login failed")
		}
		return nil, &Error{Kind: ErrNotAuthenticated, Message: "login failed", Cause: err}
	}
	return u, nil
}

func (s *Service) hashPassword(password string) (string, error) {
	if password == "" {
		return "", newError(ErrValidation, "password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", newError(ErrValidation, "password is too long")
		}
		return "", err
	}
	return string(hash), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Sessions
// ─────────────────────────────────────────────────────────────────────────────

// Login authenticates and opens a session valid for the configured TTL.
// Expired sessions are swept on the way.
func (s *Service) Login(ctx context.Context, name, password string) (*models.Session, *models.User, error) {
	u, err := s.Authenticate(ctx, name, password)
	if err != nil {
		return nil, nil, err
	}

	now := s.now().UTC()
	if n, err := s.sessions.DeleteExpired(ctx, now); err != nil {
		s.log.WarnContext(ctx, "game: sweeping expired sessions failed", "error", err)
	} else if n > 0 {
		s.log.DebugContext(ctx, "game: expired sessions swept", "count", n)
	}

	sess := &models.Session{
		Token:     uuid.NewString(),
		UserID:    u.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.sessions.Insert(ctx, *sess); err != nil {
		return nil, nil, classify(err, "session")
	}
	s.log.InfoContext(ctx, "game: login", "user_id", u.ID, "name", u.Name)
	return sess, u, nil
}

// Logout ends a session. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		return classify(err, "session")
	}
	return nil
}

// SessionUser resolves a session token to its user. Missing, unknown and
// expired tokens are ErrNotAuthenticated.
func (s *Service) SessionUser(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, newError(ErrNotAuthenticated, "login required")
	}
	u, err := s.sessions.GetUser(ctx, token, s.now())
	if err != nil {
		if db.IsNotFound(err) {
			return nil, newError(ErrNotAuthenticated, "session expired")
		}
		return nil, classify(err, "session")
	}
	return u, nil
}
