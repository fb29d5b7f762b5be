package bbolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.etcd.io/bbolt"

	"github.com/jdelmas/sylva/session"
	"github.com/jdelmas/sylva/store/storetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStoreFromFile(filepath.Join(t.TempDir(), "sylva.db"), nil)
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, newTestStore(t))
}

func TestStoreSweep(t *testing.T) {
	storetest.RunSweep(t, newTestStore(t))
}

func TestUserStoreConformance(t *testing.T) {
	storetest.RunUsers(t, newTestStore(t))
}

func TestDeleteAllForUserSweepsCorruptRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mine := session.Record{
		ID: "s1", UserID: "user-a", TokenDigest: "digest-a",
		ExpiresAt: time.Now().Add(time.Hour), CreatedAt: time.Now(),
	}
	other := session.Record{
		ID: "s2", UserID: "user-b", TokenDigest: "digest-b",
		ExpiresAt: time.Now().Add(time.Hour), CreatedAt: time.Now(),
	}
	if err := s.Put(ctx, mine); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, other); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// Plant a row no decode pass can make sense of.
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSessions).Put([]byte("digest-junk"), []byte("{not json"))
	})
	if err != nil {
		t.Fatalf("planting corrupt row: %v", err)
	}

	if err := s.DeleteAllForUser(ctx, "user-a"); err != nil {
		t.Fatalf("DeleteAllForUser: %v", err)
	}

	if _, err := s.Get(ctx, "digest-a"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("user-a session should be gone, got %v", err)
	}
	if _, err := s.Get(ctx, "digest-junk"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("corrupt row should be swept, got %v", err)
	}
	if _, err := s.Get(ctx, "digest-b"); err != nil {
		t.Errorf("user-b session should survive, got %v", err)
	}
}
