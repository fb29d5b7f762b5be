package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jdelmas/sylva/auth"
)

const (
	// DefaultTTL is the session lifetime used when no TTL is supplied.
	DefaultTTL = 7 * 24 * time.Hour
	// defaultStoreTimeout bounds every store and directory call so a hung
	// backend cannot stall request handling. A timed-out lookup denies
	// access; it never grants it.
	defaultStoreTimeout = 5 * time.Second
	// defaultSweepInterval is how often the background sweeper removes
	// expired rows. The sweep is hygiene only — lazy deletion on lookup
	// keeps expired sessions from ever granting access.
	defaultSweepInterval = 5 * time.Minute
)

// Manager orchestrates the session lifecycle over a Store and a Directory.
// Every method round-trips to the store; there is no in-process cache, so
// the store remains the single source of truth under concurrency.
type Manager struct {
	store        Store
	dir          Directory
	hasher       *auth.Hasher
	logger       *slog.Logger
	cookieSecure bool
	storeTimeout time.Duration
	now          func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger for operational errors.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithCookieSecure controls the Secure attribute on issued cookies.
// Disable only for local development over plain HTTP.
func WithCookieSecure(secure bool) Option {
	return func(m *Manager) { m.cookieSecure = secure }
}

// WithStoreTimeout bounds individual store and directory calls.
func WithStoreTimeout(d time.Duration) Option {
	return func(m *Manager) { m.storeTimeout = d }
}

// WithClock overrides the time source. For tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a session lifecycle manager.
func NewManager(store Store, dir Directory, hasher *auth.Hasher, opts ...Option) *Manager {
	m := &Manager{
		store:        store,
		dir:          dir,
		hasher:       hasher,
		cookieSecure: true,
		storeTimeout: defaultStoreTimeout,
		now:          time.Now,
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Created is the result of a successful session creation: the raw token to
// hand to the client and a ready-to-send Set-Cookie header value.
type Created struct {
	Token     string
	Cookie    string
	ExpiresAt time.Time
}

// Authenticate verifies an email/password pair. Unknown email and wrong
// password are both ErrInvalidCredentials; ErrAccountDisabled is returned
// only once the credentials themselves checked out.
func (m *Manager) Authenticate(ctx context.Context, email, password string) (*User, error) {
	ctx, cancel := m.opCtx(ctx)
	defer cancel()

	user, err := m.dir.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user by email: %w", err)
	}
	if !m.hasher.Verify(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if user.Disabled {
		return nil, ErrAccountDisabled
	}
	return &user, nil
}

// Create issues a fresh token for the user, persists its digest with the
// given TTL, and returns the raw token plus the cookie header carrying it.
// A non-positive TTL falls back to DefaultTTL.
func (m *Manager) Create(ctx context.Context, userID string, ttl time.Duration) (Created, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	token, err := auth.IssueToken()
	if err != nil {
		return Created{}, err
	}

	now := m.now()
	rec := Record{
		ID:          uuid.NewString(),
		UserID:      userID,
		TokenDigest: auth.DigestToken(token),
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}

	ctx, cancel := m.opCtx(ctx)
	defer cancel()
	if err := m.store.Put(ctx, rec); err != nil {
		return Created{}, fmt.Errorf("persisting session: %w", err)
	}

	// Round the cookie lifetime up: truncation would turn a sub-second
	// TTL into Max-Age=0, a clearing cookie, while the session itself is
	// still valid.
	maxAge := int((ttl + time.Second - 1) / time.Second)
	cookie := auth.EncodeCookie(auth.SessionCookieName, token, auth.CookieOptions{
		Secure: m.cookieSecure,
		MaxAge: maxAge,
	})
	return Created{Token: token, Cookie: cookie, ExpiresAt: rec.ExpiresAt}, nil
}

// Resolve maps a raw cookie token to its user. It returns (nil, nil) for
// every expected miss: empty token, unknown or expired session, vanished
// or disabled owner. A non-nil error means the store or directory failed
// and the caller must fail closed.
//
// Expired rows are deleted on sight. Sessions of disabled users are kept:
// disabling is reversible, and the lookup-time check denies access either
// way.
func (m *Manager) Resolve(ctx context.Context, rawToken string) (*User, error) {
	if rawToken == "" {
		return nil, nil
	}
	digest := auth.DigestToken(rawToken)

	ctx, cancel := m.opCtx(ctx)
	defer cancel()

	rec, err := m.store.Get(ctx, digest)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session lookup: %w", err)
	}

	if rec.Expired(m.now()) {
		if err := m.store.Delete(ctx, digest); err != nil {
			// Lazy cleanup is opportunistic; the next lookup or the
			// sweeper will retry. Access is denied regardless.
			m.logger.Warn("deleting expired session failed", "error", err)
		}
		return nil, nil
	}

	user, err := m.dir.FindByID(ctx, rec.UserID)
	if errors.Is(err, ErrNotFound) {
		// Owner vanished; the row can never be honored again.
		if err := m.store.Delete(ctx, digest); err != nil {
			m.logger.Warn("deleting orphaned session failed", "error", err)
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user lookup: %w", err)
	}
	if user.Disabled {
		return nil, nil
	}
	return &user, nil
}

// Revoke deletes the session matching the raw token. Revoking an absent or
// already-revoked token is a no-op.
func (m *Manager) Revoke(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	ctx, cancel := m.opCtx(ctx)
	defer cancel()
	if err := m.store.Delete(ctx, auth.DigestToken(rawToken)); err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}
	return nil
}

// RevokeAllForUser deletes every session owned by the user. Used by
// account-management flows (disable, delete) independently of any request
// cookie.
func (m *Manager) RevokeAllForUser(ctx context.Context, userID string) error {
	ctx, cancel := m.opCtx(ctx)
	defer cancel()
	if err := m.store.DeleteAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoking sessions for user %s: %w", userID, err)
	}
	return nil
}

// ClearCookie returns a Set-Cookie header value that removes the session
// cookie from the client.
func (m *Manager) ClearCookie() string {
	return auth.ClearCookie(auth.SessionCookieName, m.cookieSecure)
}

// Sweep removes expired rows from the store. Correctness does not depend
// on it; lookups already ignore and delete expired sessions.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	ctx, cancel := m.opCtx(ctx)
	defer cancel()
	return m.store.DeleteExpired(ctx, m.now())
}

// StartSweeper launches the periodic background sweep. A non-positive
// interval uses the default. Call Close to stop it.
func (m *Manager) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				n, err := m.Sweep(context.Background())
				if err != nil {
					m.logger.Warn("session sweep failed", "error", err)
					continue
				}
				if n > 0 {
					m.logger.Debug("session sweep", "removed", n)
				}
			}
		}
	}()
}

// Close stops the background sweeper.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Manager) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.storeTimeout)
}
