package api

import "github.com/jdelmas/sylva/session"

// ErrorResponse is the uniform error envelope for all JSON errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// LoginRequest is the POST /api/auth/login body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserPayload is the public projection of an account. The password hash
// never appears here.
type UserPayload struct {
	ID    string       `json:"id"`
	Email string       `json:"email"`
	Name  string       `json:"name"`
	Role  session.Role `json:"role"`
}

// LoginResponse is returned on successful authentication.
type LoginResponse struct {
	User UserPayload `json:"user"`
}

// MeResponse carries the authenticated caller, or null when the request
// carries no usable session.
type MeResponse struct {
	User *UserPayload `json:"user"`
}

// LogoutResponse acknowledges session revocation.
type LogoutResponse struct {
	OK bool `json:"ok"`
}

// HealthResponse is the GET /api/health body.
type HealthResponse struct {
	Status string `json:"status"`
}

// SetDisabledRequest toggles an account's disabled flag.
type SetDisabledRequest struct {
	Disabled bool `json:"disabled"`
}

// UserListResponse wraps the admin user listing.
type UserListResponse struct {
	Users []UserPayload `json:"users"`
}

func userPayload(u *session.User) UserPayload {
	return UserPayload{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	}
}
