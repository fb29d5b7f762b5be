// Package bbolt provides a BBolt-backed session store and user directory.
// This is the default durable backend for single-node deployments.
package bbolt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"

	"github.com/jdelmas/sylva/session"
)

var (
	bucketSessions   = []byte("sessions")    // token digest -> sessionRow
	bucketUsers      = []byte("users")       // user ID -> userRow
	bucketUserEmails = []byte("user_emails") // email -> user ID
)

// sessionRow is the stored form of a session.Record. The digest is the
// bucket key and is not repeated in the value.
type sessionRow struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type userRow struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"password_hash"`
	Role         string    `json:"role"`
	Disabled     bool      `json:"disabled"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store implements session.Store and session.UserStore backed by a BBolt
// database.
type Store struct {
	db *bbolt.DB
}

var (
	_ session.Store     = (*Store)(nil)
	_ session.UserStore = (*Store)(nil)
)

// NewStore returns a store backed by the given BBolt database.
func NewStore(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketSessions, bucketUsers, bucketUserEmails} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreFromFile opens a BBolt database at the given path and returns a
// new Store.
func NewStoreFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewStore(db)
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Put(ctx context.Context, rec session.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		key := []byte(rec.TokenDigest)
		if b.Get(key) != nil {
			return session.ErrDuplicateDigest
		}
		data, err := json.Marshal(sessionRow{
			ID:        rec.ID,
			UserID:    rec.UserID,
			ExpiresAt: rec.ExpiresAt,
			CreatedAt: rec.CreatedAt,
		})
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

func (s *Store) Get(ctx context.Context, tokenDigest string) (session.Record, error) {
	if err := ctx.Err(); err != nil {
		return session.Record{}, err
	}
	var rec session.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSessions).Get([]byte(tokenDigest))
		if data == nil {
			return session.ErrNotFound
		}
		var row sessionRow
		if err := json.Unmarshal(data, &row); err != nil {
			return fmt.Errorf("decoding session row: %w", err)
		}
		rec = session.Record{
			ID:          row.ID,
			UserID:      row.UserID,
			TokenDigest: tokenDigest,
			ExpiresAt:   row.ExpiresAt,
			CreatedAt:   row.CreatedAt,
		}
		return nil
	})
	if err != nil {
		return session.Record{}, err
	}
	return rec, nil
}

func (s *Store) Delete(ctx context.Context, tokenDigest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSessions).Delete([]byte(tokenDigest))
	})
}

func (s *Store) DeleteAllForUser(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		c := b.Cursor()
		var doomed [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var row sessionRow
			if err := json.Unmarshal(v, &row); err != nil {
				// Corrupt entry; remove it with the rest, but leave a
				// trace since the owner is unknown.
				slog.Warn("removing undecodable session row",
					"digest", string(k), "error", err)
				doomed = append(doomed, bytes.Clone(k))
				continue
			}
			if row.UserID == userID {
				doomed = append(doomed, bytes.Clone(k))
			}
		}
		for _, k := range doomed {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		c := b.Cursor()
		var doomed [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var row sessionRow
			if err := json.Unmarshal(v, &row); err != nil {
				doomed = append(doomed, bytes.Clone(k))
				continue
			}
			if !row.ExpiresAt.After(now) {
				doomed = append(doomed, bytes.Clone(k))
			}
		}
		for _, k := range doomed {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(doomed)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (session.User, error) {
	if err := ctx.Err(); err != nil {
		return session.User{}, err
	}
	var u session.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketUsers).Get([]byte(id))
		if data == nil {
			return session.ErrNotFound
		}
		return decodeUser(data, &u)
	})
	if err != nil {
		return session.User{}, err
	}
	return u, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (session.User, error) {
	if err := ctx.Err(); err != nil {
		return session.User{}, err
	}
	var u session.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(bucketUserEmails).Get([]byte(email))
		if id == nil {
			return session.ErrNotFound
		}
		data := tx.Bucket(bucketUsers).Get(id)
		if data == nil {
			return session.ErrNotFound
		}
		return decodeUser(data, &u)
	})
	if err != nil {
		return session.User{}, err
	}
	return u, nil
}

func (s *Store) SaveUser(ctx context.Context, u session.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		users := tx.Bucket(bucketUsers)
		emails := tx.Bucket(bucketUserEmails)

		if owner := emails.Get([]byte(u.Email)); owner != nil && string(owner) != u.ID {
			return session.ErrDuplicateEmail
		}

		// Drop a stale email index entry when the address changed.
		if prev := users.Get([]byte(u.ID)); prev != nil {
			var old userRow
			if err := json.Unmarshal(prev, &old); err == nil && old.Email != u.Email {
				if err := emails.Delete([]byte(old.Email)); err != nil {
					return err
				}
			}
		}

		data, err := json.Marshal(userRow{
			ID:           u.ID,
			Email:        u.Email,
			Name:         u.Name,
			PasswordHash: u.PasswordHash,
			Role:         string(u.Role),
			Disabled:     u.Disabled,
			CreatedAt:    u.CreatedAt,
		})
		if err != nil {
			return err
		}
		if err := users.Put([]byte(u.ID), data); err != nil {
			return err
		}
		return emails.Put([]byte(u.Email), []byte(u.ID))
	})
}

func (s *Store) ListUsers(ctx context.Context) ([]session.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var users []session.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		userBucket := tx.Bucket(bucketUsers)
		// Iterate the email index so results come back ordered by email.
		c := tx.Bucket(bucketUserEmails).Cursor()
		for k, id := c.First(); k != nil; k, id = c.Next() {
			data := userBucket.Get(id)
			if data == nil {
				continue
			}
			var u session.User
			if err := decodeUser(data, &u); err != nil {
				return err
			}
			users = append(users, u)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func decodeUser(data []byte, u *session.User) error {
	var row userRow
	if err := json.Unmarshal(data, &row); err != nil {
		return fmt.Errorf("decoding user row: %w", err)
	}
	*u = session.User{
		ID:           row.ID,
		Email:        row.Email,
		Name:         row.Name,
		PasswordHash: row.PasswordHash,
		Role:         session.Role(row.Role),
		Disabled:     row.Disabled,
		CreatedAt:    row.CreatedAt,
	}
	return nil
}
