package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jdelmas/sylva/store/storetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("SYLVA_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SYLVA_TEST_POSTGRES_DSN not set; skipping PostgreSQL tests")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("could not connect to postgres: %v", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("could not ensure schema: %v", err)
	}

	// Clean tables for test isolation.
	pool.Exec(ctx, "DELETE FROM sessions") //nolint:errcheck
	pool.Exec(ctx, "DELETE FROM users")    //nolint:errcheck

	t.Cleanup(func() {
		pool.Exec(ctx, "DELETE FROM sessions") //nolint:errcheck
		pool.Exec(ctx, "DELETE FROM users")    //nolint:errcheck
		pool.Close()
	})
	return NewStore(pool)
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
