package config

import (
	"context"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.Store != StoreBBolt {
		t.Errorf("Store = %q, want %q", cfg.Store, StoreBBolt)
	}
	if cfg.SessionTTL != 168*time.Hour {
		t.Errorf("SessionTTL = %v, want 168h", cfg.SessionTTL)
	}
	if !cfg.CookieSecure {
		t.Error("CookieSecure should default to true")
	}
}

func TestLoadPostgresRequiresDSN(t *testing.T) {
	t.Setenv("SYLVA_STORE", "postgres")
	if _, err := Load(context.Background()); err == nil {
		t.Fatal("expected error when SYLVA_STORE=postgres without DSN")
	}

	t.Setenv("SYLVA_POSTGRES_DSN", "postgres://localhost/sylva")
	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store != StorePostgres {
		t.Errorf("Store = %q, want postgres", cfg.Store)
	}
}

func TestLoadRejectsUnknownStore(t *testing.T) {
	t.Setenv("SYLVA_STORE", "cassandra")
	if _, err := Load(context.Background()); err == nil {
		t.Fatal("expected error for unknown store backend")
	}
}

func TestTrustedPrefixes(t *testing.T) {
	cfg := Config{TrustedProxies: []string{"10.0.0.0/8", "127.0.0.1/32"}}
	prefixes, err := cfg.TrustedPrefixes()
	if err != nil {
		t.Fatalf("TrustedPrefixes: %v", err)
	}
	if len(prefixes) != 2 {
		t.Fatalf("got %d prefixes, want 2", len(prefixes))
	}

	cfg = Config{TrustedProxies: []string{"not-a-cidr"}}
	if _, err := cfg.TrustedPrefixes(); err == nil {
		t.Fatal("expected error for malformed CIDR")
	}
}
