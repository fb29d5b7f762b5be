package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/jdelmas/sylva/api"
	"github.com/jdelmas/sylva/auth"
	"github.com/jdelmas/sylva/config"
	"github.com/jdelmas/sylva/internal/util"
	"github.com/jdelmas/sylva/session"
	bboltstore "github.com/jdelmas/sylva/store/bbolt"
	"github.com/jdelmas/sylva/store/memory"
	pgstore "github.com/jdelmas/sylva/store/postgres"
	redisstore "github.com/jdelmas/sylva/store/redis"
	"github.com/jdelmas/sylva/web"
)

var (
	tlsCert string
	tlsKey  string
	noTLS   bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the sylva server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load(ctx)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}

		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)

		sessStore, userStore, closeStores, err := openStores(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStores()

		hasher, err := auth.NewHasher(auth.DefaultArgon2idParams())
		if err != nil {
			return err
		}

		mgr := session.NewManager(sessStore, userStore, hasher,
			session.WithLogger(logger),
			session.WithCookieSecure(cfg.CookieSecure),
			session.WithStoreTimeout(cfg.StoreTimeout),
		)
		defer mgr.Close()
		if cfg.SweepInterval > 0 {
			mgr.StartSweeper(cfg.SweepInterval)
		}

		prefixes, err := cfg.TrustedPrefixes()
		if err != nil {
			return err
		}
		a := api.New(mgr, userStore,
			api.WithLogger(logger),
			api.WithSessionTTL(cfg.SessionTTL),
			api.WithTrustedProxies(prefixes),
		)

		webHandler, err := web.Handler()
		if err != nil {
			return err
		}

		// No RealIP middleware here: it would rewrite RemoteAddr from
		// client-controlled headers before the rate limiter's own
		// trusted-proxy check runs. Proxy headers are only honored via
		// SYLVA_TRUSTED_PROXIES.
		r := chi.NewRouter()
		r.Use(chimiddleware.Logger)
		r.Use(chimiddleware.Recoverer)
		r.Use(api.SecurityHeaders)

		// Metrics are scraped from inside the deployment; keep them off
		// the gated surface.
		r.Handle("/metrics", a.MetricsHandler())

		r.Group(func(r chi.Router) {
			r.Use(a.GateMiddleware)
			r.Mount("/api", a.Router())
			r.Handle("/*", webHandler)
		})

		server := &http.Server{
			Addr:              cfg.Addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		done := make(chan error, 1)
		go func() {
			done <- serve(server, logger)
		}()

		logger.Info("server starting", "addr", cfg.Addr, "store", cfg.Store)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("shutting down", "signal", sig.String())
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func serve(server *http.Server, logger *slog.Logger) error {
	if noTLS {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}

	var tlsConfig *tls.Config
	if tlsCert != "" && tlsKey != "" {
		cert, err := tls.LoadX509KeyPair(tlsCert, tlsKey)
		if err != nil {
			return fmt.Errorf("failed to load TLS key pair: %w", err)
		}
		tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	} else {
		cert, err := util.GenerateSelfSignedCert()
		if err != nil {
			return fmt.Errorf("failed to generate self-signed certificate: %w", err)
		}
		tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
		logger.Warn("using self-signed runtime generated certificate for TLS")
	}
	server.TLSConfig = tlsConfig

	if err := server.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// openStores opens the configured session store backend and the user store.
// Redis holds sessions only; its deployments keep accounts in bbolt.
func openStores(ctx context.Context, cfg config.Config) (session.Store, session.UserStore, func(), error) {
	switch cfg.Store {
	case config.StoreMemory:
		s := memory.NewStore()
		return s, s, func() {}, nil

	case config.StoreBBolt:
		s, err := bboltstore.NewStoreFromFile(cfg.BBoltPath, nil)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening bbolt store: %w", err)
		}
		return s, s, func() { s.Close() }, nil

	case config.StorePostgres:
		s, err := pgstore.NewStoreFromDSN(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening postgres store: %w", err)
		}
		return s, s, func() { s.Close() }, nil

	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		users, err := bboltstore.NewStoreFromFile(cfg.BBoltPath, nil)
		if err != nil {
			rdb.Close()
			return nil, nil, nil, fmt.Errorf("opening bbolt user store: %w", err)
		}
		sessions := redisstore.NewStore(rdb, "sylva")
		return sessions, users, func() {
			users.Close()
			rdb.Close()
		}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store)
	}
}

func newLogger(cfg config.Config) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch cfg.LogFormat {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.LogFormat)
	}
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate file")
	serverCmd.Flags().StringVar(&tlsKey, "tls-key", "", "Path to TLS key file")
	serverCmd.Flags().BoolVar(&noTLS, "no-tls", false, "Serve plain HTTP (behind a TLS-terminating proxy only)")
}
