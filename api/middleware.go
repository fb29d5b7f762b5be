package api

import (
	"context"
	"net/http"

	"github.com/jdelmas/sylva/session"
)

type contextKey int

const userKey contextKey = iota

// GateMiddleware runs the access gate ahead of every wrapped handler and
// stores the resolved user on the request context for OutcomeAllow.
func (a *API) GateMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := GateRequest{
			Method:       r.Method,
			Path:         r.URL.Path,
			CookieHeader: r.Header.Get("Cookie"),
		}
		verdict, err := a.gate.Check(r.Context(), req)
		if err != nil {
			// Store failure: deny, and log as an operational error rather
			// than an authentication failure.
			a.audit.logFailure(AuditStoreUnavailable, r, err.Error())
		}
		a.metrics.observeGate(verdict.Outcome)

		switch verdict.Outcome {
		case OutcomePublic:
			next.ServeHTTP(w, r)
		case OutcomeAllow:
			ctx := context.WithValue(r.Context(), userKey, verdict.User)
			next.ServeHTTP(w, r.WithContext(ctx))
		case OutcomeRedirect:
			http.Redirect(w, r, verdict.Location, http.StatusFound)
		default:
			writeError(w, http.StatusUnauthorized, "Unauthorized")
		}
	})
}

// UserFromContext returns the gate-resolved user, or nil on public paths.
func UserFromContext(ctx context.Context) *session.User {
	u, _ := ctx.Value(userKey).(*session.User)
	return u
}

// RequireRole gates a handler on the caller's role. The access gate only
// proves identity; per-handler authorization happens here.
func (a *API) RequireRole(roles ...session.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			a.audit.logEvent(AuditForbidden, r, user.ID)
			writeError(w, http.StatusForbidden, "insufficient role")
		})
	}
}
