package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jdelmas/sylva/session"
)

// ListUsers handles GET /api/admin/users.
func (a *API) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.users.ListUsers(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list users", err)
		return
	}
	resp := UserListResponse{Users: make([]UserPayload, 0, len(users))}
	for i := range users {
		resp.Users = append(resp.Users, userPayload(&users[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// SetUserDisabled handles PUT /api/admin/users/{userID}/disabled. Disabling
// an account also revokes every live session for it immediately, so the
// change takes effect without waiting for the next gate lookup.
func (a *API) SetUserDisabled(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	req, ok := decodeJSON[SetDisabledRequest](w, r, maxAdminBodySize)
	if !ok {
		return
	}

	user, err := a.users.FindByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeInternalError(w, "failed to load user", err)
		return
	}

	user.Disabled = req.Disabled
	if err := a.users.SaveUser(r.Context(), user); err != nil {
		writeInternalError(w, "failed to update user", err)
		return
	}

	if req.Disabled {
		if err := a.mgr.RevokeAllForUser(r.Context(), userID); err != nil {
			writeInternalError(w, "failed to revoke sessions", err)
			return
		}
		a.audit.logEvent(AuditUserDisabled, r, userID)
		a.audit.logEvent(AuditSessionsRevoked, r, userID)
	} else {
		a.audit.logEvent(AuditUserEnabled, r, userID)
	}

	writeJSON(w, http.StatusOK, userPayload(&user))
}
