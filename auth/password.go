// Package auth provides the credential primitives for the sylva
// authentication core: Argon2id password hashing, opaque session token
// generation and digesting, and the session cookie codec.
package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/text/unicode/norm"
)

// Argon2idParams configures Argon2id password hashing. The parameters are
// embedded in every produced hash, so they can be tuned over time without
// invalidating stored credentials.
type Argon2idParams struct {
	Time        uint32
	MemoryKiB   uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

// DefaultArgon2idParams returns the production hashing parameters.
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		Time:        1,
		MemoryKiB:   64 * 1024,
		Parallelism: 4,
		SaltLen:     16,
		KeyLen:      32,
	}
}

// ValidateArgon2idParams checks that the given parameters meet the minimum
// acceptable thresholds.
func ValidateArgon2idParams(p Argon2idParams) error {
	if p.Time < 1 {
		return fmt.Errorf("argon2id time cost must be >= 1")
	}
	if p.MemoryKiB < 8*1024 {
		return fmt.Errorf("argon2id memory must be >= 8 MiB")
	}
	if p.Parallelism < 1 {
		return fmt.Errorf("argon2id parallelism must be >= 1")
	}
	if p.SaltLen < 16 {
		return fmt.Errorf("argon2id salt must be >= 16 bytes")
	}
	if p.KeyLen != 32 {
		return fmt.Errorf("argon2id key length must be 32 bytes")
	}
	return nil
}

// Hasher hashes and verifies user passwords.
type Hasher struct {
	params Argon2idParams
}

// NewHasher returns a Hasher using the given parameters. Zero-value params
// fall back to DefaultArgon2idParams.
func NewHasher(params Argon2idParams) (*Hasher, error) {
	if params == (Argon2idParams{}) {
		params = DefaultArgon2idParams()
	}
	if err := ValidateArgon2idParams(params); err != nil {
		return nil, err
	}
	return &Hasher{params: params}, nil
}

// Hash derives an Argon2id hash of the password and encodes it in PHC
// string format ($argon2id$v=19$m=...,t=...,p=...$salt$hash). The password
// is NFKC-normalized first so that visually identical inputs typed on
// different keyboards verify against the same stored hash.
func (h *Hasher) Hash(password string) (string, error) {
	salt, err := RandomBytes(int(h.params.SaltLen))
	if err != nil {
		return "", fmt.Errorf("generating password salt: %w", err)
	}
	normalized := norm.NFKC.String(password)
	key := argon2.IDKey([]byte(normalized), salt, h.params.Time, h.params.MemoryKiB, h.params.Parallelism, h.params.KeyLen)
	return encodePHC(h.params, salt, key), nil
}

// Verify reports whether password matches the stored PHC-encoded digest.
// Any malformed or unsupported digest verifies as false: a corrupt stored
// hash must never authenticate.
func (h *Hasher) Verify(encoded, password string) bool {
	params, salt, key, err := decodePHC(encoded)
	if err != nil {
		return false
	}
	normalized := norm.NFKC.String(password)
	candidate := argon2.IDKey([]byte(normalized), salt, params.Time, params.MemoryKiB, params.Parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(candidate, key) == 1
}

func encodePHC(p Argon2idParams, salt, key []byte) string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.MemoryKiB, p.Time, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))
}

func decodePHC(encoded string) (Argon2idParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Argon2idParams{}, nil, nil, fmt.Errorf("malformed argon2id hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return Argon2idParams{}, nil, nil, fmt.Errorf("malformed argon2id version: %w", err)
	}
	if version != argon2.Version {
		return Argon2idParams{}, nil, nil, fmt.Errorf("unsupported argon2id version %d", version)
	}

	var p Argon2idParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Time, &p.Parallelism); err != nil {
		return Argon2idParams{}, nil, nil, fmt.Errorf("malformed argon2id parameters: %w", err)
	}
	if p.Time < 1 || p.MemoryKiB < 1 || p.Parallelism < 1 {
		return Argon2idParams{}, nil, nil, fmt.Errorf("invalid argon2id parameters")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Argon2idParams{}, nil, nil, fmt.Errorf("malformed argon2id salt: %w", err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return Argon2idParams{}, nil, nil, fmt.Errorf("malformed argon2id key: %w", err)
	}
	if len(key) == 0 {
		return Argon2idParams{}, nil, nil, fmt.Errorf("empty argon2id key")
	}
	return p, salt, key, nil
}
