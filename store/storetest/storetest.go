// Package storetest provides conformance suites run against every
// session.Store and session.UserStore backend.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jdelmas/sylva/auth"
	"github.com/jdelmas/sylva/session"
)

func record(userID string, expiresAt time.Time) session.Record {
	token, _ := auth.IssueToken()
	return session.Record{
		ID:          uuid.NewString(),
		UserID:      userID,
		TokenDigest: auth.DigestToken(token),
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now(),
	}
}

// Run exercises the session.Store contract against a fresh store.
func Run(t *testing.T, store session.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutAndGet", func(t *testing.T) {
		rec := record("user-1", time.Now().Add(time.Hour))
		if err := store.Put(ctx, rec); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := store.Get(ctx, rec.TokenDigest)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.UserID != rec.UserID {
			t.Errorf("got UserID %q, want %q", got.UserID, rec.UserID)
		}
		if got.ID != rec.ID {
			t.Errorf("got ID %q, want %q", got.ID, rec.ID)
		}
		if !got.ExpiresAt.Equal(rec.ExpiresAt) && got.ExpiresAt.Sub(rec.ExpiresAt).Abs() > time.Millisecond {
			t.Errorf("got ExpiresAt %v, want %v", got.ExpiresAt, rec.ExpiresAt)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := store.Get(ctx, auth.DigestToken("no-such-token"))
		if !errors.Is(err, session.ErrNotFound) {
			t.Fatalf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("DuplicateDigest", func(t *testing.T) {
		rec := record("user-dup", time.Now().Add(time.Hour))
		if err := store.Put(ctx, rec); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		dup := rec
		dup.ID = uuid.NewString()
		if err := store.Put(ctx, dup); !errors.Is(err, session.ErrDuplicateDigest) {
			t.Fatalf("got %v, want ErrDuplicateDigest", err)
		}
	})

	t.Run("DeleteIdempotent", func(t *testing.T) {
		rec := record("user-del", time.Now().Add(time.Hour))
		if err := store.Put(ctx, rec); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if err := store.Delete(ctx, rec.TokenDigest); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := store.Get(ctx, rec.TokenDigest); !errors.Is(err, session.ErrNotFound) {
			t.Fatalf("got %v after delete, want ErrNotFound", err)
		}
		// Second delete of the same digest is a no-op, not an error.
		if err := store.Delete(ctx, rec.TokenDigest); err != nil {
			t.Fatalf("repeated Delete failed: %v", err)
		}
		if err := store.Delete(ctx, auth.DigestToken("never-existed")); err != nil {
			t.Fatalf("Delete of absent digest failed: %v", err)
		}
	})

	t.Run("DeleteAllForUser", func(t *testing.T) {
		var mine []session.Record
		for i := 0; i < 3; i++ {
			rec := record("user-bulk", time.Now().Add(time.Hour))
			if err := store.Put(ctx, rec); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			mine = append(mine, rec)
		}
		other := record("user-other", time.Now().Add(time.Hour))
		if err := store.Put(ctx, other); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		if err := store.DeleteAllForUser(ctx, "user-bulk"); err != nil {
			t.Fatalf("DeleteAllForUser failed: %v", err)
		}
		for _, rec := range mine {
			if _, err := store.Get(ctx, rec.TokenDigest); !errors.Is(err, session.ErrNotFound) {
				t.Errorf("session %s survived bulk revocation", rec.ID)
			}
		}
		if _, err := store.Get(ctx, other.TokenDigest); err != nil {
			t.Errorf("unrelated session was removed: %v", err)
		}
	})

}

// RunSweep exercises DeleteExpired. Backends with native key expiry
// (Redis) skip this suite; their DeleteExpired is a no-op.
func RunSweep(t *testing.T, store session.Store) {
	t.Helper()
	ctx := context.Background()

	now := time.Now()
	dead := record("user-exp", now.Add(-time.Minute))
	live := record("user-exp", now.Add(time.Hour))
	if err := store.Put(ctx, dead); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, live); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	removed, err := store.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if removed < 1 {
		t.Errorf("removed %d rows, want >= 1", removed)
	}
	if _, err := store.Get(ctx, dead.TokenDigest); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("expired session survived sweep: %v", err)
	}
	if _, err := store.Get(ctx, live.TokenDigest); err != nil {
		t.Errorf("live session was swept: %v", err)
	}
}

// RunUsers exercises the session.UserStore contract against a fresh store.
func RunUsers(t *testing.T, store session.UserStore) {
	t.Helper()
	ctx := context.Background()

	user := func(email string) session.User {
		return session.User{
			ID:           uuid.NewString(),
			Email:        email,
			Name:         "Test User",
			PasswordHash: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$QUJDRA",
			Role:         session.RoleWorker,
			CreatedAt:    time.Now(),
		}
	}

	t.Run("SaveAndFind", func(t *testing.T) {
		u := user("worker@example.org")
		if err := store.SaveUser(ctx, u); err != nil {
			t.Fatalf("SaveUser failed: %v", err)
		}
		byID, err := store.FindByID(ctx, u.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if byID.Email != u.Email || byID.Role != u.Role {
			t.Errorf("FindByID returned %+v, want %+v", byID, u)
		}
		byEmail, err := store.FindByEmail(ctx, u.Email)
		if err != nil {
			t.Fatalf("FindByEmail failed: %v", err)
		}
		if byEmail.ID != u.ID {
			t.Errorf("FindByEmail returned ID %q, want %q", byEmail.ID, u.ID)
		}
	})

	t.Run("FindMissing", func(t *testing.T) {
		if _, err := store.FindByID(ctx, uuid.NewString()); !errors.Is(err, session.ErrNotFound) {
			t.Fatalf("got %v, want ErrNotFound", err)
		}
		if _, err := store.FindByEmail(ctx, "ghost@example.org"); !errors.Is(err, session.ErrNotFound) {
			t.Fatalf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		u := user("taken@example.org")
		if err := store.SaveUser(ctx, u); err != nil {
			t.Fatalf("SaveUser failed: %v", err)
		}
		if err := store.SaveUser(ctx, user("taken@example.org")); !errors.Is(err, session.ErrDuplicateEmail) {
			t.Fatalf("got %v, want ErrDuplicateEmail", err)
		}
	})

	t.Run("UpdateInPlace", func(t *testing.T) {
		u := user("update@example.org")
		if err := store.SaveUser(ctx, u); err != nil {
			t.Fatalf("SaveUser failed: %v", err)
		}
		u.Disabled = true
		u.Role = session.RoleSupervisor
		if err := store.SaveUser(ctx, u); err != nil {
			t.Fatalf("updating user failed: %v", err)
		}
		got, err := store.FindByID(ctx, u.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if !got.Disabled || got.Role != session.RoleSupervisor {
			t.Errorf("update not applied: %+v", got)
		}
	})

	t.Run("ListOrdered", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			if err := store.SaveUser(ctx, user(fmt.Sprintf("list-%d@example.org", i))); err != nil {
				t.Fatalf("SaveUser failed: %v", err)
			}
		}
		users, err := store.ListUsers(ctx)
		if err != nil {
			t.Fatalf("ListUsers failed: %v", err)
		}
		if len(users) < 3 {
			t.Fatalf("listed %d users, want >= 3", len(users))
		}
		for i := 1; i < len(users); i++ {
			if users[i-1].Email > users[i].Email {
				t.Errorf("users not ordered by email: %q before %q", users[i-1].Email, users[i].Email)
			}
		}
	})
}
