package models

import "time"

// Role is the single capability tag checked at every operation's entry.
type Role string

const (
	RoleAdmin  Role = "admin"
	RolePlayer Role = "player"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleAdmin || r == RolePlayer }

// User represents a row in the "users" table.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateUserParams holds the fields required to create a user. The password
// arrives already hashed; the store never sees plaintext.
type CreateUserParams struct {
	Name         string
	PasswordHash string
	Role         Role
}

// Session binds an opaque cookie token to a user until ExpiresAt.
type Session struct {
	Token     string    `json:"-"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
