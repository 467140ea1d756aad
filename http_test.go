package tomin_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tomin "github.com/tomin-app/tomin-web"
)

type stubConfig struct{}

func (stubConfig) GetCookieName() string            { return "access_token" }
func (stubConfig) GetCookieDuration() time.Duration { return 24 * time.Hour }
func (stubConfig) GetProtectedPrefix() string       { return "/dashboard" }
func (stubConfig) GetAuthEntryPath() string         { return "/login" }
func (stubConfig) GetLandingPath() string           { return "/dashboard" }
func (stubConfig) GetCallbackPath() string          { return "/auth/callback" }

type stubIdentity struct {
	loginURL    string
	session     tomin.Session
	sessionErr  error
	logoutErr   error
	logoutCalls []string
}

func (s *stubIdentity) LoginURL() string { return s.loginURL }

func (s *stubIdentity) CurrentSession(ctx context.Context, credential string) (tomin.Session, error) {
	return s.session, s.sessionErr
}

func (s *stubIdentity) Logout(ctx context.Context, credential string) error {
	s.logoutCalls = append(s.logoutCalls, credential)
	return s.logoutErr
}

func newTestApp(identity tomin.IdentityClient, opts ...tomin.AuthControllerOption) *fiber.App {
	app := fiber.New()
	controller := tomin.NewAuthController(stubConfig{}, identity, opts...)
	tomin.RegisterAuthRoutes(app, controller)
	return app
}

func responseCookie(t *testing.T, resp *http.Response, name string) *http.Cookie {
	t.Helper()
	for _, cookie := range resp.Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func TestCallbackPersistsCredentialOnRedirect(t *testing.T) {
	app := newTestApp(&stubIdentity{})

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?token=fresh.credential.value", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	// The cookie and the redirect travel on the same response, so the
	// browser's next request already carries the credential.
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))

	cookie := responseCookie(t, resp, "access_token")
	require.NotNil(t, cookie)
	assert.Equal(t, "fresh.credential.value", cookie.Value)
	assert.Equal(t, "/", cookie.Path)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, int((24 * time.Hour).Seconds()), cookie.MaxAge)
}

func TestCallbackWithoutCredentialReturnsToLogin(t *testing.T) {
	app := newTestApp(&stubIdentity{})

	req := httptest.NewRequest(http.MethodGet, "/auth/callback", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.Nil(t, responseCookie(t, resp, "access_token"))
}

func TestLoginRedirectsToIdentityProvider(t *testing.T) {
	app := newTestApp(&stubIdentity{loginURL: "https://api.example.com/api/v1/auth/google"})

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://api.example.com/api/v1/auth/google", resp.Header.Get("Location"))
}

func TestLogoutClearsCredentialAndReleasesSession(t *testing.T) {
	identity := &stubIdentity{}
	var released []string
	app := newTestApp(identity, tomin.WithLogoutHook(func(subject string) {
		released = append(released, subject)
	}))

	userID := uuid.New().String()
	credential := signedCredential(t, jwt.MapClaims{
		"sub": userID,
		"exp": jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: credential})
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	assert.Equal(t, []string{credential}, identity.logoutCalls)
	assert.Equal(t, []string{userID}, released)

	cookie := responseCookie(t, resp, "access_token")
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.True(t, cookie.Expires.Before(time.Now()))
}

func TestLogoutWithoutCredentialSkipsIdentityCall(t *testing.T) {
	identity := &stubIdentity{}
	app := newTestApp(identity)

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Empty(t, identity.logoutCalls)
}

func TestCurrentSession(t *testing.T) {
	controller := tomin.NewAuthController(stubConfig{}, &stubIdentity{})

	app := fiber.New()
	app.Get("/whoami", func(c *fiber.Ctx) error {
		session, err := controller.CurrentSession(c)
		if err != nil {
			return c.SendStatus(http.StatusUnauthorized)
		}
		return c.SendString(session.GetUserID())
	})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
