package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Skryldev/tippspiel/db"
	"github.com/Skryldev/tippspiel/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// UserRepository interface
// ─────────────────────────────────────────────────────────────────────────────

// UserRepository is the persistence contract for accounts.
type UserRepository interface {
	Insert(ctx context.Context, params models.CreateUserParams) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByName(ctx context.Context, name string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	UpsertAdmin(ctx context.Context, name, passwordHash string) (*models.User, error)
	Delete(ctx context.Context, id int64) error
}

type userRepo struct {
	q db.Querier
}

// NewUserRepo returns a UserRepository backed by q (*db.DB or *db.Tx).
func NewUserRepo(q db.Querier) UserRepository {
	return &userRepo{q: q}
}

// ─────────────────────────────────────────────────────────────────────────────
// SQL
// ─────────────────────────────────────────────────────────────────────────────

const (
	userColumns = `id, name, password_hash, role, created_at`

	sqlInsertUser = `
		INSERT INTO users (name, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	sqlGetUserByID = `
		SELECT ` + userColumns + `
		FROM   users
		WHERE  id = $1`

	sqlGetUserByName = `
		SELECT ` + userColumns + `
		FROM   users
		WHERE  name = $1`

	sqlListUsers = `
		SELECT ` + userColumns + `
		FROM   users
		ORDER  BY name`

	sqlUpsertAdmin = `
		INSERT INTO users (name, password_hash, role, created_at)
		VALUES ($1, $2, 'admin', $3)
		ON CONFLICT (name) DO UPDATE
		SET    password_hash = excluded.password_hash,
		       role          = 'admin'
		RETURNING id`

	sqlDeleteUser = `
		DELETE FROM users WHERE id = $1`
)

// ─────────────────────────────────────────────────────────────────────────────
// Methods
// ─────────────────────────────────────────────────────────────────────────────

// Insert creates a user. A taken name surfaces as db.ErrDuplicateKey.
func (r *userRepo) Insert(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	var id int64
	err := r.q.QueryRow(ctx, sqlInsertUser,
		params.Name, params.PasswordHash, string(params.Role), time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("repo/user: insert: %w", err)
	}
	return r.GetByID(ctx, id)
}

// GetByID returns db.ErrNotFound when no user has id.
func (r *userRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(r.q.QueryRow(ctx, sqlGetUserByID, id))
}

// GetByName looks a user up by their unique display name.
func (r *userRepo) GetByName(ctx context.Context, name string) (*models.User, error) {
	return scanUser(r.q.QueryRow(ctx, sqlGetUserByName, name))
}

// List returns all users ordered by name.
func (r *userRepo) List(ctx context.Context) ([]*models.User, error) {
	rows, err := r.q.Query(ctx, sqlListUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u := &models.User{}
		var role string
		if err := rows.Scan(&u.ID, &u.Name, &u.PasswordHash, &role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("repo/user: scan: %w", err)
		}
		u.Role = models.Role(role)
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpsertAdmin creates name as an admin or promotes the existing user and
// resets their password.
func (r *userRepo) UpsertAdmin(ctx context.Context, name, passwordHash string) (*models.User, error) {
	var id int64
	if err := r.q.QueryRow(ctx, sqlUpsertAdmin, name, passwordHash, time.Now().UTC()).Scan(&id); err != nil {
		return nil, fmt.Errorf("repo/user: upsert admin: %w", err)
	}
	return r.GetByID(ctx, id)
}

// Delete removes a user. Returns db.ErrNotFound if no row was deleted.
func (r *userRepo) Delete(ctx context.Context, id int64) error {
	return execAffectingOne(ctx, r.q, sqlDeleteUser, id)
}

func scanUser(row *db.Row) (*models.User, error) {
	u := &models.User{}
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.PasswordHash, &role, &u.CreatedAt); err != nil {
		return nil, fmt.Errorf("repo/user: %w", err)
	}
	u.Role = models.Role(role)
	return u, nil
}

var _ UserRepository = (*userRepo)(nil)
