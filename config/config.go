// Package config loads runtime configuration from environment variables.
package config

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Store backend names accepted by SYLVA_STORE.
const (
	StoreMemory   = "memory"
	StoreBBolt    = "bbolt"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config holds runtime configuration for the sylva server.
type Config struct {
	Addr  string `env:"SYLVA_ADDR,default=:8080"`
	Store string `env:"SYLVA_STORE,default=bbolt"`

	// Backend-specific settings. Only the selected backend's values are
	// consulted.
	BBoltPath   string `env:"SYLVA_BBOLT_PATH,default=sylva.db"`
	PostgresDSN string `env:"SYLVA_POSTGRES_DSN"`
	RedisAddr   string `env:"SYLVA_REDIS_ADDR,default=localhost:6379"`
	RedisDB     int    `env:"SYLVA_REDIS_DB,default=0"`

	SessionTTL    time.Duration `env:"SYLVA_SESSION_TTL,default=168h"`
	SweepInterval time.Duration `env:"SYLVA_SWEEP_INTERVAL,default=5m"`
	StoreTimeout  time.Duration `env:"SYLVA_STORE_TIMEOUT,default=5s"`

	// CookieSecure should only be disabled for local development over
	// plain HTTP.
	CookieSecure bool `env:"SYLVA_COOKIE_SECURE,default=true"`

	// TrustedProxies lists CIDR ranges whose X-Forwarded-For headers are
	// honored for client IP extraction.
	TrustedProxies []string `env:"SYLVA_TRUSTED_PROXIES"`

	LogFormat string `env:"SYLVA_LOG_FORMAT,default=json"`
	LogLevel  string `env:"SYLVA_LOG_LEVEL,default=info"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreBBolt, StoreRedis:
	case StorePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("SYLVA_POSTGRES_DSN is required when SYLVA_STORE=postgres")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SYLVA_SESSION_TTL must be positive")
	}
	if _, err := c.TrustedPrefixes(); err != nil {
		return err
	}
	return nil
}

// TrustedPrefixes parses TrustedProxies into CIDR prefixes.
func (c Config) TrustedPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		p, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
		}
		prefixes = append(prefixes, p)
	}
	return prefixes, nil
}
