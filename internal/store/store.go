// Package store provides user persistence for the auth service.
//
// The store is deliberately narrow: the auth subsystem only ever looks
// users up and inserts a row on first federated login. Users are never
// mutated or deleted here.
package store

import (
	"context"
	"errors"
	"time"
)

// Auth provider values for User.AuthProvider.
const (
	AuthProviderLocal = "local"
	AuthProviderOIDC  = "oidc"
)

// Sentinel errors for store operations.
var (
	// ErrUserNotFound indicates that no user matched the lookup.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists indicates a uniqueness conflict on username or subject.
	ErrUserExists = errors.New("user already exists")
)

// User represents a stored user record.
type User struct {
	// ID is the unique user identifier.
	ID string `json:"id"`

	// Username is the unique login name.
	Username string `json:"username"`

	// AuthProvider is how the user authenticates ("local" or "oidc").
	AuthProvider string `json:"auth_provider"`

	// OIDCSub is the federated subject identifier. Empty for local users,
	// unique among federated users.
	OIDCSub string `json:"oidc_sub,omitempty"`

	// Email is the user's email address, when known.
	Email string `json:"email,omitempty"`

	// PasswordHash holds the local credential material. Empty for
	// federated users.
	PasswordHash string `json:"password_hash,omitempty"`

	// CreatedAt is when the record was created.
	CreatedAt time.Time `json:"created_at"`
}

// IsFederated returns true if the user authenticates through an external
// identity provider.
func (u *User) IsFederated() bool {
	return u.AuthProvider == AuthProviderOIDC
}

// UserStore is the persistence interface consumed by the resolver.
type UserStore interface {
	// FindByUsername returns the user with the given username.
	FindByUsername(ctx context.Context, username string) (*User, error)

	// FindBySubject returns the user with the given federated subject.
	FindBySubject(ctx context.Context, sub string) (*User, error)

	// Create inserts a new user. Returns ErrUserExists when the username
	// or subject is already taken.
	Create(ctx context.Context, user *User) error

	// Close releases store resources.
	Close() error
}
