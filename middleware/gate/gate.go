// Package gate implements the navigation session gate: every incoming
// request is classified by path and either allowed through or redirected,
// based on nothing more than the presence (and local shape) of the bearer
// credential cookie. The gate never mutates session state and never fails a
// request; unrecognized input degrades to allow.
package gate

import (
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// RouteClass is the classification of a request path.
type RouteClass string

const (
	// RouteBypassed paths skip the gate entirely: static assets, API
	// routes, and the auth callback that lands a fresh credential.
	RouteBypassed RouteClass = "bypassed"
	// RouteProtected paths require a usable credential.
	RouteProtected RouteClass = "protected"
	// RouteAuthEntry is the login page; authenticated visitors are sent
	// back to the protected landing path.
	RouteAuthEntry RouteClass = "auth_entry"
	// RoutePublic paths are always allowed.
	RoutePublic RouteClass = "public"
)

// Decision is the gate's output: proceed, or redirect to Location.
type Decision struct {
	Redirect bool
	Location string
}

// CredentialCheck reports whether a raw credential is locally usable.
// A nil check means presence alone is enough.
type CredentialCheck func(credential string) bool

type Config struct {
	// CookieName holds the bearer credential. Defaults to "access_token".
	CookieName string
	// ProtectedPrefix guards the dashboard area. Defaults to "/dashboard".
	ProtectedPrefix string
	// AuthEntryPath is the login route. Defaults to "/login".
	AuthEntryPath string
	// LandingPath is where authenticated visitors land. Defaults to
	// ProtectedPrefix.
	LandingPath string
	// CallbackPath is exempt from checks so a fresh credential can land.
	// Defaults to "/auth/callback".
	CallbackPath string
	// BypassPrefixes skip the gate, e.g. API routes. Defaults to ["/api"].
	BypassPrefixes []string
	// Check validates credential shape/expiry locally. Malformed or
	// expired credentials are treated exactly like absent ones.
	Check CredentialCheck
}

func (cfg Config) withDefaults() Config {
	if cfg.CookieName == "" {
		cfg.CookieName = "access_token"
	}
	if cfg.ProtectedPrefix == "" {
		cfg.ProtectedPrefix = "/dashboard"
	}
	if cfg.AuthEntryPath == "" {
		cfg.AuthEntryPath = "/login"
	}
	if cfg.LandingPath == "" {
		cfg.LandingPath = cfg.ProtectedPrefix
	}
	if cfg.CallbackPath == "" {
		cfg.CallbackPath = "/auth/callback"
	}
	if cfg.BypassPrefixes == nil {
		cfg.BypassPrefixes = []string{"/api"}
	}
	return cfg
}

// Classify maps a request path to its route class. First match wins:
// bypass patterns, then the auth entry, then the protected prefix.
func Classify(cfg Config, requestPath string) RouteClass {
	cfg = cfg.withDefaults()

	if filepath.Ext(requestPath) != "" {
		return RouteBypassed
	}
	for _, prefix := range cfg.BypassPrefixes {
		if strings.HasPrefix(requestPath, prefix) {
			return RouteBypassed
		}
	}
	if strings.HasPrefix(requestPath, cfg.CallbackPath) {
		return RouteBypassed
	}
	if strings.HasPrefix(requestPath, cfg.AuthEntryPath) {
		return RouteAuthEntry
	}
	if strings.HasPrefix(requestPath, cfg.ProtectedPrefix) {
		return RouteProtected
	}
	return RoutePublic
}

// Evaluate is the pure gate decision. It holds for every navigation:
// protected + unusable credential redirects to the auth entry, auth entry +
// usable credential redirects to the landing path, everything else proceeds.
func Evaluate(cfg Config, requestPath, credential string) Decision {
	cfg = cfg.withDefaults()

	present := credential != ""
	if present && cfg.Check != nil {
		present = cfg.Check(credential)
	}

	switch Classify(cfg, requestPath) {
	case RouteProtected:
		if !present {
			return Decision{Redirect: true, Location: cfg.AuthEntryPath}
		}
	case RouteAuthEntry:
		if present {
			return Decision{Redirect: true, Location: cfg.LandingPath}
		}
	}

	return Decision{}
}

// New returns the gate as fiber middleware.
func New(config ...Config) fiber.Handler {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	}
	cfg = cfg.withDefaults()

	return func(c *fiber.Ctx) error {
		decision := Evaluate(cfg, c.Path(), c.Cookies(cfg.CookieName))
		if decision.Redirect {
			return c.Redirect(decision.Location, fiber.StatusFound)
		}
		return c.Next()
	}
}
