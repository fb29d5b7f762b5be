// Package memory provides an in-memory session store and user directory.
// State is lost on restart; intended for tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jdelmas/sylva/session"
)

// Store is a thread-safe in-memory implementation of session.Store and
// session.UserStore.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]session.Record // keyed by token digest
	users    map[string]session.User   // keyed by user ID
}

var (
	_ session.Store     = (*Store)(nil)
	_ session.UserStore = (*Store)(nil)
)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]session.Record),
		users:    make(map[string]session.User),
	}
}

func (s *Store) Put(ctx context.Context, rec session.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[rec.TokenDigest]; exists {
		return session.ErrDuplicateDigest
	}
	s.sessions[rec.TokenDigest] = rec
	return nil
}

func (s *Store) Get(ctx context.Context, tokenDigest string) (session.Record, error) {
	if err := ctx.Err(); err != nil {
		return session.Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[tokenDigest]
	if !ok {
		return session.Record{}, session.ErrNotFound
	}
	return rec, nil
}

func (s *Store) Delete(ctx context.Context, tokenDigest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tokenDigest)
	return nil
}

func (s *Store) DeleteAllForUser(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for digest, rec := range s.sessions {
		if rec.UserID == userID {
			delete(s.sessions, digest)
		}
	}
	return nil
}

func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for digest, rec := range s.sessions {
		if rec.Expired(now) {
			delete(s.sessions, digest)
			removed++
		}
	}
	return removed, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (session.User, error) {
	if err := ctx.Err(); err != nil {
		return session.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return session.User{}, session.ErrNotFound
	}
	return u, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (session.User, error) {
	if err := ctx.Err(); err != nil {
		return session.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return session.User{}, session.ErrNotFound
}

func (s *Store) SaveUser(ctx context.Context, u session.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.users {
		if existing.Email == u.Email && id != u.ID {
			return session.ErrDuplicateEmail
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]session.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]session.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}
