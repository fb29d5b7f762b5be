// Package postgres implements the session store and user directory on
// PostgreSQL. The sessions table is keyed by token digest, mirroring the
// key space of the BBolt and in-memory backends; the primary-key
// constraint provides the digest uniqueness guarantee.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jdelmas/sylva/session"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const pgUniqueViolation = "23505"

// Store implements session.Store and session.UserStore backed by
// PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ session.Store     = (*Store)(nil)
	_ session.UserStore = (*Store)(nil)
)

// NewStore returns a store backed by the given pgx connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewStoreFromDSN creates a connection pool from a DSN string, ensures the
// schema exists, and returns a new Store.
func NewStoreFromDSN(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return NewStore(pool), nil
}

// Pool returns the underlying connection pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Put(ctx context.Context, rec session.Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (token_digest, id, user_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.TokenDigest, rec.ID, rec.UserID, rec.ExpiresAt, rec.CreatedAt)
	if isUniqueViolation(err) {
		return session.ErrDuplicateDigest
	}
	return err
}

func (s *Store) Get(ctx context.Context, tokenDigest string) (session.Record, error) {
	var rec session.Record
	rec.TokenDigest = tokenDigest
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, expires_at, created_at
		 FROM sessions WHERE token_digest = $1`,
		tokenDigest).Scan(&rec.ID, &rec.UserID, &rec.ExpiresAt, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return session.Record{}, session.ErrNotFound
	}
	if err != nil {
		return session.Record{}, err
	}
	return rec, nil
}

func (s *Store) Delete(ctx context.Context, tokenDigest string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM sessions WHERE token_digest = $1`, tokenDigest)
	return err
}

func (s *Store) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) FindByID(ctx context.Context, id string) (session.User, error) {
	return s.findUser(ctx, `WHERE id = $1`, id)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (session.User, error) {
	return s.findUser(ctx, `WHERE email = $1`, email)
}

func (s *Store) findUser(ctx context.Context, where string, arg any) (session.User, error) {
	var u session.User
	var role string
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, role, disabled, created_at FROM users `+where,
		arg).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &u.Disabled, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return session.User{}, session.ErrNotFound
	}
	if err != nil {
		return session.User{}, err
	}
	u.Role = session.Role(role)
	return u, nil
}

func (s *Store) SaveUser(ctx context.Context, u session.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, name, password_hash, role, disabled, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id)
		 DO UPDATE SET email = $2, name = $3, password_hash = $4, role = $5, disabled = $6`,
		u.ID, u.Email, u.Name, u.PasswordHash, string(u.Role), u.Disabled, u.CreatedAt)
	if isUniqueViolation(err) {
		return session.ErrDuplicateEmail
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]session.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, email, name, password_hash, role, disabled, created_at
		 FROM users ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []session.User
	for rows.Next() {
		var u session.User
		var role string
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &u.Disabled, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Role = session.Role(role)
		users = append(users, u)
	}
	return users, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
