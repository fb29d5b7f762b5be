package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jdelmas/sylva/session"
)

const (
	// maxAuthBodySize bounds login request bodies. Credentials are short;
	// anything larger is abuse.
	maxAuthBodySize = 16 * 1024
	// maxAdminBodySize bounds admin mutation bodies.
	maxAdminBodySize = 64 * 1024
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeInternalError logs the underlying cause and returns a generic message
// to the client so storage details never leak over the wire.
func writeInternalError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, msg)
}

func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, session.ErrAccountDisabled):
		// Same body as bad credentials: a disabled account must not be
		// distinguishable from a nonexistent one.
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, session.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "email already in use")
	default:
		writeInternalError(w, "internal error", err)
	}
}

// decodeJSON reads and unmarshals a JSON request body into T, enforcing a
// size limit and rejecting unknown fields. On failure it writes a 400 and
// returns ok=false.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, maxSize int64) (T, bool) {
	var v T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return v, false
	}
	return v, true
}
