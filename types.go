package tomin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Session holds the attributes derived from a bearer credential for the
// current request. It is a read-only view; the cookie jar owns the
// credential itself.
type Session interface {
	GetUserID() string
	GetUserUUID() (uuid.UUID, error)
	GetEmail() string
	GetName() string
	GetPicture() string
	GetIssuedAt() *time.Time
	GetExpiration() *time.Time
}

// Config holds gateway options
type Config interface {
	GetCookieName() string
	GetCookieDuration() time.Duration
	GetProtectedPrefix() string
	GetAuthEntryPath() string
	GetLandingPath() string
	GetCallbackPath() string
}

// IdentityClient is the surface of the identity collaborator the gateway
// consumes: entry into the third-party login flow, session lookup for a
// credential, and server-side invalidation.
type IdentityClient interface {
	LoginURL() string
	CurrentSession(ctx context.Context, credential string) (Session, error)
	Logout(ctx context.Context, credential string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] TOMIN "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] TOMIN "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] TOMIN "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] TOMIN "+newline(format), args...)
}

// DefaultLogger returns the printf-backed logger used when none is injected.
func DefaultLogger() Logger {
	return defLogger{}
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
