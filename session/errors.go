package session

import "errors"

var (
	// ErrNotFound indicates a lookup missed: unknown session digest or
	// unknown user. Expected outcome, not a failure.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateDigest indicates a Put collided with an existing token
	// digest. Cryptographically negligible for honestly issued tokens, so
	// it is a hard error rather than something to retry around.
	ErrDuplicateDigest = errors.New("duplicate token digest")
	// ErrDuplicateEmail indicates a user save collided with an existing
	// email address.
	ErrDuplicateEmail = errors.New("duplicate email")
	// ErrInvalidCredentials indicates an unknown email or a wrong
	// password. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled indicates the credentials were correct but the
	// account is disabled. Callers at the login boundary must collapse
	// this with ErrInvalidCredentials in client-visible responses.
	ErrAccountDisabled = errors.New("account disabled")
)
