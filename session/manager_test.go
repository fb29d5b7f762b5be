package session_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdelmas/sylva/auth"
	"github.com/jdelmas/sylva/session"
	"github.com/jdelmas/sylva/store/memory"
)

func testHasher(t *testing.T) *auth.Hasher {
	t.Helper()
	h, err := auth.NewHasher(auth.Argon2idParams{Time: 1, MemoryKiB: 8 * 1024, Parallelism: 1, SaltLen: 16, KeyLen: 32})
	require.NoError(t, err)
	return h
}

// fakeClock is a mutable time source shared with the manager under test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setup(t *testing.T) (*session.Manager, *memory.Store, *fakeClock, *auth.Hasher) {
	t.Helper()
	store := memory.NewStore()
	clock := newFakeClock()
	hasher := testHasher(t)
	m := session.NewManager(store, store, hasher,
		session.WithClock(clock.Now),
		session.WithCookieSecure(false),
	)
	t.Cleanup(m.Close)
	return m, store, clock, hasher
}

func addUser(t *testing.T, store *memory.Store, hasher *auth.Hasher, email, password string, role session.Role) session.User {
	t.Helper()
	hash, err := hasher.Hash(password)
	require.NoError(t, err)
	u := session.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         "Test User",
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, store.SaveUser(context.Background(), u))
	return u
}

func TestAuthenticate(t *testing.T) {
	m, store, _, hasher := setup(t)
	ctx := context.Background()
	u := addUser(t, store, hasher, "chef@example.org", "s3cret-passphrase", session.RoleSupervisor)

	t.Run("Success", func(t *testing.T) {
		got, err := m.Authenticate(ctx, "chef@example.org", "s3cret-passphrase")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, session.RoleSupervisor, got.Role)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		_, err := m.Authenticate(ctx, "chef@example.org", "wrong")
		assert.ErrorIs(t, err, session.ErrInvalidCredentials)
	})

	t.Run("UnknownEmailIndistinguishable", func(t *testing.T) {
		_, err := m.Authenticate(ctx, "nobody@example.org", "s3cret-passphrase")
		assert.ErrorIs(t, err, session.ErrInvalidCredentials)
	})

	t.Run("DisabledAccount", func(t *testing.T) {
		disabled := addUser(t, store, hasher, "gone@example.org", "valid-password", session.RoleWorker)
		disabled.Disabled = true
		require.NoError(t, store.SaveUser(ctx, disabled))

		_, err := m.Authenticate(ctx, "gone@example.org", "valid-password")
		assert.ErrorIs(t, err, session.ErrAccountDisabled)
	})
}

func TestCreateAndResolve(t *testing.T) {
	m, store, _, hasher := setup(t)
	ctx := context.Background()
	u := addUser(t, store, hasher, "worker@example.org", "bois-de-chauffage", session.RoleWorker)

	created, err := m.Create(ctx, u.ID, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, created.Token)
	assert.Contains(t, created.Cookie, "session="+created.Token)
	assert.Contains(t, created.Cookie, "HttpOnly")
	assert.Contains(t, created.Cookie, "Max-Age=3600")

	// The store must hold the digest, never the raw token.
	_, err = store.Get(ctx, created.Token)
	assert.ErrorIs(t, err, session.ErrNotFound)
	rec, err := store.Get(ctx, auth.DigestToken(created.Token))
	require.NoError(t, err)
	assert.Equal(t, u.ID, rec.UserID)

	got, err := m.Resolve(ctx, created.Token)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, session.RoleWorker, got.Role)
}

func TestResolveMisses(t *testing.T) {
	m, _, _, _ := setup(t)
	ctx := context.Background()

	t.Run("EmptyToken", func(t *testing.T) {
		got, err := m.Resolve(ctx, "")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("UnknownToken", func(t *testing.T) {
		token, err := auth.IssueToken()
		require.NoError(t, err)
		got, err := m.Resolve(ctx, token)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestResolveExpiredDeletesRow(t *testing.T) {
	m, store, clock, hasher := setup(t)
	ctx := context.Background()
	u := addUser(t, store, hasher, "worker@example.org", "p4ssword", session.RoleWorker)

	created, err := m.Create(ctx, u.ID, time.Second)
	require.NoError(t, err)

	got, err := m.Resolve(ctx, created.Token)
	require.NoError(t, err)
	require.NotNil(t, got)

	clock.Advance(2 * time.Second)

	got, err = m.Resolve(ctx, created.Token)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Lazy cleanup removed the row.
	_, err = store.Get(ctx, auth.DigestToken(created.Token))
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestResolveDisabledKeepsRow(t *testing.T) {
	m, store, _, hasher := setup(t)
	ctx := context.Background()
	u := addUser(t, store, hasher, "worker@example.org", "p4ssword", session.RoleWorker)

	created, err := m.Create(ctx, u.ID, time.Hour)
	require.NoError(t, err)

	u.Disabled = true
	require.NoError(t, store.SaveUser(ctx, u))

	got, err := m.Resolve(ctx, created.Token)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Unlike expiry, disabling does not delete the session row: the
	// account may be re-enabled without forcing a re-login.
	_, err = store.Get(ctx, auth.DigestToken(created.Token))
	require.NoError(t, err)
}

func TestRevokeIdempotent(t *testing.T) {
	m, store, _, hasher := setup(t)
	ctx := context.Background()
	u := addUser(t, store, hasher, "worker@example.org", "p4ssword", session.RoleWorker)

	created, err := m.Create(ctx, u.ID, time.Hour)
	require.NoError(t, err)

	require.NoError(t, m.Revoke(ctx, created.Token))
	got, err := m.Resolve(ctx, created.Token)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Second revocation and revocation of garbage are no-ops.
	require.NoError(t, m.Revoke(ctx, created.Token))
	require.NoError(t, m.Revoke(ctx, "never-issued"))
	require.NoError(t, m.Revoke(ctx, ""))
}

func TestRevokeAllForUser(t *testing.T) {
	m, store, _, hasher := setup(t)
	ctx := context.Background()
	u := addUser(t, store, hasher, "worker@example.org", "p4ssword", session.RoleWorker)
	other := addUser(t, store, hasher, "chef@example.org", "p4ssword", session.RoleSupervisor)

	first, err := m.Create(ctx, u.ID, time.Hour)
	require.NoError(t, err)
	second, err := m.Create(ctx, u.ID, time.Hour)
	require.NoError(t, err)
	kept, err := m.Create(ctx, other.ID, time.Hour)
	require.NoError(t, err)

	require.NoError(t, m.RevokeAllForUser(ctx, u.ID))

	for _, token := range []string{first.Token, second.Token} {
		got, err := m.Resolve(ctx, token)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
	got, err := m.Resolve(ctx, kept.Token)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, other.ID, got.ID)
}

func TestSweep(t *testing.T) {
	m, store, clock, hasher := setup(t)
	ctx := context.Background()
	u := addUser(t, store, hasher, "worker@example.org", "p4ssword", session.RoleWorker)

	shortLived, err := m.Create(ctx, u.ID, time.Minute)
	require.NoError(t, err)
	longLived, err := m.Create(ctx, u.ID, time.Hour)
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)

	removed, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Get(ctx, auth.DigestToken(shortLived.Token))
	assert.ErrorIs(t, err, session.ErrNotFound)
	_, err = store.Get(ctx, auth.DigestToken(longLived.Token))
	require.NoError(t, err)
}

// failingStore simulates an unavailable backend.
type failingStore struct{}

var errStoreDown = errors.New("store unavailable")

func (failingStore) Put(context.Context, session.Record) error { return errStoreDown }
func (failingStore) Get(context.Context, string) (session.Record, error) {
	return session.Record{}, errStoreDown
}
func (failingStore) Delete(context.Context, string) error        { return errStoreDown }
func (failingStore) DeleteAllForUser(context.Context, string) error { return errStoreDown }
func (failingStore) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, errStoreDown
}

func TestResolveFailsClosedOnStoreError(t *testing.T) {
	store := memory.NewStore()
	m := session.NewManager(failingStore{}, store, testHasher(t), session.WithCookieSecure(false))
	t.Cleanup(m.Close)

	token, err := auth.IssueToken()
	require.NoError(t, err)

	got, err := m.Resolve(context.Background(), token)
	require.Error(t, err)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Nil(t, got)
}

func TestResolveFailsClosedOnTimeout(t *testing.T) {
	store := memory.NewStore()
	clock := newFakeClock()
	m := session.NewManager(slowStore{store}, store, testHasher(t),
		session.WithClock(clock.Now),
		session.WithStoreTimeout(10*time.Millisecond),
	)
	t.Cleanup(m.Close)

	token, err := auth.IssueToken()
	require.NoError(t, err)

	got, err := m.Resolve(context.Background(), token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "deadline"),
		"timeout must surface as an error, got %v", err)
	assert.Nil(t, got)
}

// slowStore blocks until the caller's context expires.
type slowStore struct {
	inner session.Store
}

func (s slowStore) Put(ctx context.Context, rec session.Record) error {
	<-ctx.Done()
	return ctx.Err()
}

func (s slowStore) Get(ctx context.Context, digest string) (session.Record, error) {
	<-ctx.Done()
	return session.Record{}, ctx.Err()
}

func (s slowStore) Delete(ctx context.Context, digest string) error {
	return s.inner.Delete(ctx, digest)
}

func (s slowStore) DeleteAllForUser(ctx context.Context, userID string) error {
	return s.inner.DeleteAllForUser(ctx, userID)
}

func (s slowStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return s.inner.DeleteExpired(ctx, now)
}

func TestDefaultTTL(t *testing.T) {
	m, store, clock, hasher := setup(t)
	ctx := context.Background()
	u := addUser(t, store, hasher, "worker@example.org", "p4ssword", session.RoleWorker)

	created, err := m.Create(ctx, u.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(session.DefaultTTL), created.ExpiresAt)
	assert.Contains(t, created.Cookie, "Max-Age=604800")
}

func TestCreateSubSecondTTLCookie(t *testing.T) {
	m, store, _, hasher := setup(t)
	ctx := context.Background()
	u := addUser(t, store, hasher, "worker@example.org", "p4ssword", session.RoleWorker)

	// A short but positive TTL must round the cookie lifetime up, never
	// down to Max-Age=0, which clients treat as an immediate expiry.
	created, err := m.Create(ctx, u.ID, 500*time.Millisecond)
	require.NoError(t, err)
	assert.Contains(t, created.Cookie, "Max-Age=1")
	assert.NotContains(t, created.Cookie, "Max-Age=0")

	got, err := m.Resolve(ctx, created.Token)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)
}
