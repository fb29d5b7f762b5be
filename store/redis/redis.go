// Package redis provides a Redis-backed session store. Redis expires
// session keys natively via TTL, so the periodic sweep is a no-op here.
// Users are not stored in Redis; pair this store with a durable
// session.Directory backend.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jdelmas/sylva/session"
)

const defaultPrefix = "sylva"

// Store implements session.Store on a Redis client.
type Store struct {
	rdb    *redis.Client
	prefix string
}

var _ session.Store = (*Store)(nil)

// NewStore creates a session store on the given client. An empty prefix
// defaults to "sylva".
func NewStore(rdb *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) sessionKey(digest string) string {
	return s.prefix + ":sess:" + digest
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":user_sess:" + userID
}

type sessionRow struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) Put(ctx context.Context, rec session.Record) error {
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		// Already dead on arrival; storing it would be invisible anyway.
		ttl = time.Second
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

	ok, err := s.rdb.SetNX(ctx, s.sessionKey(rec.TokenDigest), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	if !ok {
		return session.ErrDuplicateDigest
	}

	// Index for bulk revocation. The set outlives individual session TTLs;
	// stale members are skipped on read and cleared on bulk delete.
	pipe := s.rdb.Pipeline()
	pipe.SAdd(ctx, s.userKey(rec.UserID), rec.TokenDigest)
	pipe.Expire(ctx, s.userKey(rec.UserID), ttl+time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("indexing session: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, tokenDigest string) (session.Record, error) {
	data, err := s.rdb.Get(ctx, s.sessionKey(tokenDigest)).Bytes()
	if errors.Is(err, redis.Nil) {
		return session.Record{}, session.ErrNotFound
	}
	if err != nil {
		return session.Record{}, fmt.Errorf("fetching session: %w", err)
	}
	var row sessionRow
	if err := json.Unmarshal(data, &row); err != nil {
		return session.Record{}, fmt.Errorf("decoding session row: %w", err)
	}
	return session.Record{
		ID:          row.ID,
		UserID:      row.UserID,
		TokenDigest: tokenDigest,
		ExpiresAt:   row.ExpiresAt,
		CreatedAt:   row.CreatedAt,
	}, nil
}

func (s *Store) Delete(ctx context.Context, tokenDigest string) error {
	// Look up the owner first so the index stays tidy; a vanished key is
	// still a successful (idempotent) delete.
	rec, err := s.Get(ctx, tokenDigest)
	if errors.Is(err, session.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, s.sessionKey(tokenDigest))
	pipe.SRem(ctx, s.userKey(rec.UserID), tokenDigest)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func (s *Store) DeleteAllForUser(ctx context.Context, userID string) error {
	digests, err := s.rdb.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("listing sessions for user: %w", err)
	}
	if len(digests) == 0 {
		return nil
	}
	keys := make([]string, 0, len(digests)+1)
	for _, digest := range digests {
		keys = append(keys, s.sessionKey(digest))
	}
	keys = append(keys, s.userKey(userID))
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("deleting sessions for user: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op: Redis removes expired session keys itself.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}
