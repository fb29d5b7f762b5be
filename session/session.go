// Package session implements the server-side session lifecycle for sylva:
// issuing opaque cookie-bound tokens, resolving them back to users, and
// revoking them. Durable state lives behind the narrow Store and Directory
// interfaces; the backends under store/ provide implementations.
package session

import (
	"context"
	"time"
)

// Role is the closed set of access levels in the application.
type Role string

const (
	// RoleAdmin manages users, agencies and reference data.
	RoleAdmin Role = "admin"
	// RoleSupervisor (chef de chantier) plans work sites and reviews
	// worker day reports.
	RoleSupervisor Role = "supervisor"
	// RoleWorker records time against assigned work sites.
	RoleWorker Role = "worker"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleWorker:
		return true
	}
	return false
}

// User is the identity resolved for an authenticated request. The core
// reads users from the Directory and never mutates them.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	Disabled     bool
	CreatedAt    time.Time
}

// Record is a persisted session row. Only the SHA-256 digest of the token
// is stored; the raw token exists solely in the client's cookie.
type Record struct {
	ID          string
	UserID      string
	TokenDigest string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Expired reports whether the record is logically dead at the given time.
// An expired row that still exists in the store must be treated as absent.
func (r Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// Store is the durable mapping from token digest to session record.
// Implementations must enforce uniqueness on the digest and treat deletes
// of absent rows as no-ops.
type Store interface {
	// Put inserts a session record keyed by its token digest.
	// A duplicate digest returns ErrDuplicateDigest.
	Put(ctx context.Context, rec Record) error
	// Get returns the record for a digest, or ErrNotFound. Implementations
	// return rows as stored; expiry is the Manager's concern.
	Get(ctx context.Context, tokenDigest string) (Record, error)
	// Delete removes the record for a digest. Absent rows are a no-op.
	Delete(ctx context.Context, tokenDigest string) error
	// DeleteAllForUser removes every session owned by the user.
	DeleteAllForUser(ctx context.Context, userID string) error
	// DeleteExpired removes rows with expiry at or before now and reports
	// how many were removed. Safe to run concurrently with lookups.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Directory is the read-only view of the user store needed by the
// authentication core.
type Directory interface {
	// FindByID returns the user with the given ID, or ErrNotFound.
	FindByID(ctx context.Context, id string) (User, error)
	// FindByEmail returns the user with the given email, or ErrNotFound.
	FindByEmail(ctx context.Context, email string) (User, error)
}

// UserStore extends Directory with the write operations used by
// account-management flows (the sylva user CLI). The authentication core
// itself never writes users.
type UserStore interface {
	Directory
	// SaveUser inserts or updates a user by ID. Saving a new user with an
	// email already held by another user returns ErrDuplicateEmail.
	SaveUser(ctx context.Context, u User) error
	// ListUsers returns all users ordered by email.
	ListUsers(ctx context.Context) ([]User, error)
}
