package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// tokenBytes is the entropy of an issued session token. 32 bytes (256 bits)
// comfortably exceeds the 192-bit minimum for an unguessable bearer secret.
const tokenBytes = 32

// IssueToken returns a new opaque session token: 256 bits from the
// platform CSPRNG, URL-safe base64 without padding. The raw token is handed
// to the client and never persisted server-side.
func IssueToken() (string, error) {
	b, err := RandomBytes(tokenBytes)
	if err != nil {
		return "", fmt.Errorf("issuing session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DigestToken returns the hex-encoded SHA-256 digest of a raw token. The
// digest is the storage and lookup key for sessions, so a leaked session
// store never exposes usable tokens. SHA-256 is sufficient here — the
// token's own entropy is the security boundary, unlike low-entropy
// passwords which need the memory-hard Hasher.
func DigestToken(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}

// RandomBytes returns n cryptographically secure random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating random bytes: %w", err)
	}
	return b, nil
}
