package auth

import (
	"strings"
	"testing"
)

func TestEncodeCookie(t *testing.T) {
	t.Run("Attributes", func(t *testing.T) {
		v := EncodeCookie(SessionCookieName, "tok123", CookieOptions{Secure: true, MaxAge: 3600})
		for _, want := range []string{"session=tok123", "Path=/", "HttpOnly", "Secure", "SameSite=Strict", "Max-Age=3600"} {
			if !strings.Contains(v, want) {
				t.Errorf("cookie %q missing attribute %q", v, want)
			}
		}
	})

	t.Run("InsecureDev", func(t *testing.T) {
		v := EncodeCookie(SessionCookieName, "tok", CookieOptions{Secure: false, MaxAge: 60})
		if strings.Contains(v, "Secure") {
			t.Errorf("dev cookie must not set Secure: %q", v)
		}
	})

	t.Run("ZeroMaxAgeClears", func(t *testing.T) {
		v := EncodeCookie(SessionCookieName, "", CookieOptions{MaxAge: 0})
		if !strings.Contains(v, "Max-Age=0") {
			t.Errorf("clearing cookie must expire immediately: %q", v)
		}
	})
}

func TestDecodeCookie(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		token, _ := IssueToken()
		header := SessionCookieName + "=" + token
		got, ok := DecodeCookie(header, SessionCookieName)
		if !ok || got != token {
			t.Fatalf("DecodeCookie(%q) = %q, %v; want %q, true", header, got, ok, token)
		}
	})

	t.Run("MultipleCookies", func(t *testing.T) {
		got, ok := DecodeCookie("theme=dark; session=abc123; lang=fr", SessionCookieName)
		if !ok || got != "abc123" {
			t.Fatalf("got %q, %v; want \"abc123\", true", got, ok)
		}
	})

	t.Run("Absent", func(t *testing.T) {
		cases := []string{"", "other=value", "session=", "=;;%%garbage"}
		for _, header := range cases {
			if _, ok := DecodeCookie(header, SessionCookieName); ok {
				t.Errorf("DecodeCookie(%q) found a token, want absent", header)
			}
		}
	})

	t.Run("MalformedNeighborDoesNotHideSession", func(t *testing.T) {
		got, ok := DecodeCookie("bad name=x; session=tok", SessionCookieName)
		if !ok || got != "tok" {
			t.Fatalf("got %q, %v; want \"tok\", true", got, ok)
		}
	})
}
