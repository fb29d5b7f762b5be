package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jdelmas/sylva/auth"
	"github.com/jdelmas/sylva/session"
	"github.com/jdelmas/sylva/store/storetest"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewStore(rdb, "sylvatest"), mr
}

func TestStoreConformance(t *testing.T) {
	store, _ := newTestStore(t)
	storetest.Run(t, store)
}

func TestNativeExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	token, _ := auth.IssueToken()
	rec := session.Record{
		ID:          uuid.NewString(),
		UserID:      "user-ttl",
		TokenDigest: auth.DigestToken(token),
		ExpiresAt:   time.Now().Add(2 * time.Second),
		CreatedAt:   time.Now(),
	}
	if err := store.Put(ctx, rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := store.Get(ctx, rec.TokenDigest); err != nil {
		t.Fatalf("Get before expiry failed: %v", err)
	}

	// Redis drops the key on its own; no sweep involved.
	mr.FastForward(3 * time.Second)

	if _, err := store.Get(ctx, rec.TokenDigest); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("got %v after TTL, want ErrNotFound", err)
	}
	if n, err := store.DeleteExpired(ctx, time.Now()); err != nil || n != 0 {
		t.Fatalf("DeleteExpired = %d, %v; want no-op", n, err)
	}
}

func TestDeleteAllForUserClearsIndex(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		token, _ := auth.IssueToken()
		rec := session.Record{
			ID:          uuid.NewString(),
			UserID:      "user-bulk",
			TokenDigest: auth.DigestToken(token),
			ExpiresAt:   time.Now().Add(time.Hour),
			CreatedAt:   time.Now(),
		}
		if err := store.Put(ctx, rec); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	if err := store.DeleteAllForUser(ctx, "user-bulk"); err != nil {
		t.Fatalf("DeleteAllForUser failed: %v", err)
	}
	if mr.Exists("sylvatest:user_sess:user-bulk") {
		t.Error("per-user index key survived bulk revocation")
	}
}
