package auth

import (
	"net/http"
	"time"
)

// SessionCookieName is the name of the cookie that transports the raw
// session token.
const SessionCookieName = "session"

// CookieOptions controls the security attributes of an encoded session
// cookie.
type CookieOptions struct {
	// Secure marks the cookie as HTTPS-only. Leave false only for local
	// development over plain HTTP.
	Secure bool
	// MaxAge is the cookie lifetime in seconds. Zero encodes an
	// immediate-expiry (clearing) cookie.
	MaxAge int
}

// EncodeCookie builds a Set-Cookie header value carrying the raw token.
// The cookie is always HttpOnly, SameSite=Strict and scoped to Path=/.
func EncodeCookie(name, rawToken string, opts CookieOptions) string {
	c := &http.Cookie{
		Name:     name,
		Value:    rawToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   opts.MaxAge,
	}
	if opts.MaxAge == 0 {
		// MaxAge 0 means "unset" to net/http; force an expired cookie so
		// the browser drops it immediately.
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
	}
	return c.String()
}

// ClearCookie builds a Set-Cookie header value that removes the named
// cookie.
func ClearCookie(name string, secure bool) string {
	return EncodeCookie(name, "", CookieOptions{Secure: secure, MaxAge: 0})
}

// DecodeCookie extracts the named cookie's value from a raw Cookie request
// header. Malformed input never fails; it reports absent instead.
func DecodeCookie(cookieHeader, name string) (string, bool) {
	if cookieHeader == "" {
		return "", false
	}
	cookies, err := http.ParseCookie(cookieHeader)
	if err != nil {
		// ParseCookie rejects the whole header on any malformed pair;
		// fall back to a lenient scan so one bad cookie doesn't hide a
		// valid session cookie.
		cookies = lenientParseCookies(cookieHeader)
	}
	for _, c := range cookies {
		if c.Name == name {
			return c.Value, c.Value != ""
		}
	}
	return "", false
}

func lenientParseCookies(header string) []*http.Cookie {
	r := &http.Request{Header: http.Header{"Cookie": []string{header}}}
	return r.Cookies()
}
