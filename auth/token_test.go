package auth

import (
	"encoding/base64"
	"testing"
)

func TestIssueToken(t *testing.T) {
	t.Run("Entropy", func(t *testing.T) {
		token, err := IssueToken()
		if err != nil {
			t.Fatalf("IssueToken failed: %v", err)
		}
		raw, err := base64.RawURLEncoding.DecodeString(token)
		if err != nil {
			t.Fatalf("token is not URL-safe base64: %v", err)
		}
		if len(raw) < 24 {
			t.Errorf("token carries %d bits of entropy, want >= 192", len(raw)*8)
		}
	})

	t.Run("NoCollisions", func(t *testing.T) {
		const trials = 10000
		seen := make(map[string]struct{}, trials)
		for i := 0; i < trials; i++ {
			token, err := IssueToken()
			if err != nil {
				t.Fatalf("IssueToken failed: %v", err)
			}
			if _, dup := seen[token]; dup {
				t.Fatalf("duplicate token after %d issues", i)
			}
			seen[token] = struct{}{}
		}
	})
}

func TestDigestToken(t *testing.T) {
	t.Run("Deterministic", func(t *testing.T) {
		token, _ := IssueToken()
		if DigestToken(token) != DigestToken(token) {
			t.Error("digest of the same token must be stable")
		}
	})

	t.Run("Distinct", func(t *testing.T) {
		a, _ := IssueToken()
		b, _ := IssueToken()
		if DigestToken(a) == DigestToken(b) {
			t.Error("digests of distinct tokens collided")
		}
	})

	t.Run("NeverEqualToToken", func(t *testing.T) {
		token, _ := IssueToken()
		if DigestToken(token) == token {
			t.Error("digest must not reveal the raw token")
		}
	})

	t.Run("KnownVector", func(t *testing.T) {
		// sha256("abc")
		want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
		if got := DigestToken("abc"); got != want {
			t.Errorf("DigestToken(\"abc\") = %s, want %s", got, want)
		}
	})
}
