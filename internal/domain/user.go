package domain

import (
	"context"
	"time"
)

// User represents a registered member
type User struct {
	ID           string // UUID
	Username     string // Unique username
	Email        string // Unique email address
	PasswordHash string // Bcrypt hashed password (not returned in API)
	CreatedAt    time.Time
}

// UserRef is the public slice of a user embedded in joined views
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Ref returns the publicly exposable fields of a user
func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Username: u.Username}
}

// UserRepository defines data access for users
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
}
