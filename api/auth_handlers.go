package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jdelmas/sylva/auth"
	"github.com/jdelmas/sylva/session"
)

// Login handles POST /api/auth/login.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	clientIP := a.extractClientIP(r)

	// Check rate limits before the expensive password verification.
	if blocked, retryAfter := a.ipLimiter.check(clientIP); blocked {
		a.audit.logFailure(AuditLoginRateLimited, r, "ip rate limited",
			slog.String("client_ip", clientIP))
		a.metrics.observeLogin("rate_limited")
		writeRateLimited(w, retryAfter)
		return
	}

	req, ok := decodeJSON[LoginRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	account := accountKey(req.Email)
	if blocked, retryAfter := a.accountLimiter.check(account); blocked {
		a.audit.logFailure(AuditLoginRateLimited, r, "account rate limited")
		a.metrics.observeLogin("rate_limited")
		writeRateLimited(w, retryAfter)
		return
	}

	user, err := a.mgr.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) || errors.Is(err, session.ErrAccountDisabled) {
			a.accountLimiter.recordFailure(account)
			a.ipLimiter.recordFailure(clientIP)
			a.audit.logFailure(AuditLoginFailure, r, "invalid credentials")
			a.metrics.observeLogin("failure")
			mapError(w, err)
			return
		}
		a.metrics.observeLogin("error")
		writeInternalError(w, "login failed", err)
		return
	}

	created, err := a.mgr.Create(r.Context(), user.ID, a.sessionTTL)
	if err != nil {
		a.metrics.observeLogin("error")
		writeInternalError(w, "failed to create session", err)
		return
	}

	a.accountLimiter.recordSuccess(account)
	a.ipLimiter.recordSuccess(clientIP)
	a.audit.logEvent(AuditLoginSuccess, r, user.ID)
	a.metrics.observeLogin("success")

	w.Header().Add("Set-Cookie", created.Cookie)
	writeJSON(w, http.StatusOK, LoginResponse{User: userPayload(user)})
}

// Logout handles POST /api/auth/logout. Revocation is idempotent: a missing
// or already-revoked cookie still gets a cleared cookie and a 200.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.DecodeCookie(r.Header.Get("Cookie"), auth.SessionCookieName)
	if ok && token != "" {
		if err := a.mgr.Revoke(r.Context(), token); err != nil {
			writeInternalError(w, "failed to revoke session", err)
			return
		}
		if user := UserFromContext(r.Context()); user != nil {
			a.audit.logEvent(AuditLogout, r, user.ID)
		} else {
			a.audit.log(AuditLogout, r)
		}
	}
	w.Header().Add("Set-Cookie", a.mgr.ClearCookie())
	writeJSON(w, http.StatusOK, LogoutResponse{OK: true})
}

// Me handles GET /api/auth/me. The path is public: an unauthenticated
// caller gets a null user rather than a 401, so clients can probe their
// own session state without triggering the gate.
func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	token, _ := auth.DecodeCookie(r.Header.Get("Cookie"), auth.SessionCookieName)
	user, err := a.mgr.Resolve(r.Context(), token)
	if err != nil {
		// Store failure resolves to "no user", never a phantom identity,
		// but the status tells polling clients the backend is down.
		a.audit.logFailure(AuditStoreUnavailable, r, err.Error())
		writeJSON(w, http.StatusInternalServerError, MeResponse{User: nil})
		return
	}
	if user == nil {
		writeJSON(w, http.StatusOK, MeResponse{User: nil})
		return
	}
	payload := userPayload(user)
	writeJSON(w, http.StatusOK, MeResponse{User: &payload})
}

// Health handles GET /api/health.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}
