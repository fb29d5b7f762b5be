package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/jdelmas/sylva/auth"
	"github.com/jdelmas/sylva/session"
)

// GateRequest is the minimal view of an inbound request the gate decides on.
// Using a plain value instead of *http.Request keeps the decision procedure
// trivially testable and free of handler-layer concerns.
type GateRequest struct {
	Method       string
	Path         string
	CookieHeader string
}

// Outcome classifies a gate decision.
type Outcome int

const (
	// OutcomePublic: the path is on the allowlist; no session lookup ran.
	OutcomePublic Outcome = iota
	// OutcomeAllow: a valid session resolved to an enabled user.
	OutcomeAllow
	// OutcomeDeny: API-style path with no usable session; respond 401 JSON.
	OutcomeDeny
	// OutcomeRedirect: page-style path with no usable session; redirect to
	// the login page with the original path as the return-to parameter.
	OutcomeRedirect
)

func (o Outcome) String() string {
	switch o {
	case OutcomePublic:
		return "public"
	case OutcomeAllow:
		return "allow"
	case OutcomeDeny:
		return "deny"
	case OutcomeRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Verdict is the result of a gate check.
type Verdict struct {
	Outcome  Outcome
	User     *session.User // non-nil only for OutcomeAllow
	Location string        // redirect target, set only for OutcomeRedirect
}

// methodRule is a method-specific allowlist exception.
type methodRule struct {
	method string
	path   string
}

// Allowlist enumerates paths reachable without a session.
type Allowlist struct {
	exact    map[string]struct{}
	prefixes []string
	methods  []methodRule
}

// DefaultAllowlist returns the standard public surface: the login page, the
// credential endpoints, and the static-asset prefixes.
func DefaultAllowlist() Allowlist {
	return NewAllowlist(
		[]string{"/login", "/api/auth/login", "/api/auth/me"},
		[]string{"/_next", "/public"},
		[][2]string{{http.MethodPost, "/api/auth/login"}},
	)
}

// NewAllowlist builds an allowlist from exact paths, path prefixes, and
// {method, path} exceptions.
func NewAllowlist(exact, prefixes []string, methods [][2]string) Allowlist {
	al := Allowlist{
		exact:    make(map[string]struct{}, len(exact)),
		prefixes: prefixes,
	}
	for _, p := range exact {
		al.exact[p] = struct{}{}
	}
	for _, m := range methods {
		al.methods = append(al.methods, methodRule{method: m[0], path: m[1]})
	}
	return al
}

// Contains reports whether the request may pass without a session check.
func (al Allowlist) Contains(method, path string) bool {
	if _, ok := al.exact[path]; ok {
		return true
	}
	for _, prefix := range al.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	for _, rule := range al.methods {
		if rule.method == method && rule.path == path {
			return true
		}
	}
	return false
}

// Gate is the edge authentication check run before protected handlers. It
// proves only "who" — role authorization stays in individual handlers.
type Gate struct {
	mgr       *session.Manager
	allowlist Allowlist
	loginPath string
}

// NewGate builds a gate over the given manager using the default allowlist.
func NewGate(mgr *session.Manager) *Gate {
	return &Gate{
		mgr:       mgr,
		allowlist: DefaultAllowlist(),
		loginPath: "/login",
	}
}

// WithAllowlist replaces the gate's public-path allowlist.
func (g *Gate) WithAllowlist(al Allowlist) *Gate {
	g.allowlist = al
	return g
}

// Check runs the decision procedure. A non-nil error means the session store
// was unavailable; the caller must treat that as a denial, never an allow.
func (g *Gate) Check(ctx context.Context, req GateRequest) (Verdict, error) {
	if g.allowlist.Contains(req.Method, req.Path) {
		return Verdict{Outcome: OutcomePublic}, nil
	}

	token, _ := auth.DecodeCookie(req.CookieHeader, auth.SessionCookieName)
	user, err := g.mgr.Resolve(ctx, token)
	if err != nil {
		return g.deny(req), err
	}
	if user == nil {
		return g.deny(req), nil
	}
	return Verdict{Outcome: OutcomeAllow, User: user}, nil
}

func (g *Gate) deny(req GateRequest) Verdict {
	if isAPIPath(req.Path) {
		return Verdict{Outcome: OutcomeDeny}
	}
	return Verdict{
		Outcome:  OutcomeRedirect,
		Location: g.loginPath + "?from=" + url.QueryEscape(req.Path),
	}
}

func isAPIPath(path string) bool {
	return path == "/api" || strings.HasPrefix(path, "/api/")
}
