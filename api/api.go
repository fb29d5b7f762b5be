package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/jdelmas/sylva/session"
)

// API holds the dependencies needed by the HTTP handlers.
type API struct {
	mgr            *session.Manager
	gate           *Gate
	users          session.UserStore
	audit          *auditLogger
	metrics        *metrics
	accountLimiter *loginRateLimiter
	ipLimiter      *ipRateLimiter
	trustedProxies []netip.Prefix
	sessionTTL     time.Duration
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// WithSessionTTL overrides the lifetime of sessions created at login.
func WithSessionTTL(ttl time.Duration) Option {
	return func(a *API) {
		a.sessionTTL = ttl
	}
}

// WithTrustedProxies sets the CIDR ranges whose proxy headers are honored
// when extracting the client IP for rate limiting.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(a *API) {
		a.trustedProxies = prefixes
	}
}

// WithAllowlist replaces the gate's default public-path allowlist.
func WithAllowlist(al Allowlist) Option {
	return func(a *API) {
		a.gate.WithAllowlist(al)
	}
}

// New creates a new API instance over a session manager and user store.
func New(mgr *session.Manager, users session.UserStore, opts ...Option) *API {
	a := &API{
		mgr:            mgr,
		gate:           NewGate(mgr),
		users:          users,
		metrics:        newMetrics(),
		accountLimiter: newLoginRateLimiter(),
		ipLimiter:      newIPRateLimiter(),
		sessionTTL:     session.DefaultTTL,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	return a
}

// Router returns a chi.Router with all API routes mounted. The access gate
// is not applied here: mount this under the gate middleware so page routes
// and API routes share one decision procedure.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/openapi.yaml",
		Path:    "api/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/openapi.yaml",
		Path:    "api/redoc",
	}, nil))

	r.Get("/health", a.Health)

	r.Post("/auth/login", a.Login)
	r.Post("/auth/logout", a.Logout)
	r.Get("/auth/me", a.Me)

	r.Route("/admin", func(r chi.Router) {
		r.Use(a.RequireRole(session.RoleAdmin))
		r.Get("/users", a.ListUsers)
		r.Put("/users/{userID}/disabled", a.SetUserDisabled)
	})

	return r
}

// MetricsHandler exposes the Prometheus scrape endpoint.
func (a *API) MetricsHandler() http.Handler {
	return a.metrics.Handler()
}
