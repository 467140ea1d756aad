package tomin

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// AuthController owns the credential lifecycle routes: the identity
// provider's callback landing, the login redirect, and logout.
type AuthController struct {
	Logger   Logger
	Routes   *AuthControllerRoutes
	cfg      Config
	identity IdentityClient
	// OnLogout is invoked with the subject id when a session ends, so
	// owners of per-subject resources can release them.
	OnLogout func(subject string)
}

type AuthControllerRoutes struct {
	Login    string
	Logout   string
	Callback string
}

type AuthControllerOption func(*AuthController) *AuthController

func WithAuthLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithLogoutHook(hook func(subject string)) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.OnLogout = hook
		return c
	}
}

func NewAuthController(cfg Config, identity IdentityClient, opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:   defLogger{},
		cfg:      cfg,
		identity: identity,
		Routes: &AuthControllerRoutes{
			Login:    cfg.GetAuthEntryPath(),
			Logout:   "/logout",
			Callback: cfg.GetCallbackPath(),
		},
	}

	for _, opt := range opts {
		if opt != nil {
			c = opt(c)
		}
	}

	return c
}

// RegisterAuthRoutes mounts the controller on the app.
func RegisterAuthRoutes(app *fiber.App, controller *AuthController) {
	app.Get(controller.Routes.Callback, controller.Callback)
	app.Get(controller.Routes.Login, controller.LoginShow)
	app.Get(controller.Routes.Logout, controller.Logout)
}

// Callback lands the short-lived credential handed back from the identity
// provider. The Set-Cookie header travels on the same response as the
// redirect, so the browser cannot request the landing page without the
// credential already persisted; no delay is needed between persist and
// navigate.
func (a *AuthController) Callback(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		a.Logger.Info("Auth callback without credential, returning to %s", a.cfg.GetAuthEntryPath())
		return c.Redirect(a.cfg.GetAuthEntryPath(), fiber.StatusFound)
	}

	a.setCredentialCookie(c, token, a.cfg.GetCookieDuration())
	return c.Redirect(a.cfg.GetLandingPath(), fiber.StatusFound)
}

// LoginShow hands the browser to the identity provider's third-party flow.
func (a *AuthController) LoginShow(c *fiber.Ctx) error {
	return c.Redirect(a.identity.LoginURL(), fiber.StatusFound)
}

// Logout invalidates the session server-side (best effort), expires the
// cookie and returns to the auth entry path.
func (a *AuthController) Logout(c *fiber.Ctx) error {
	credential := c.Cookies(a.cfg.GetCookieName())

	if credential != "" {
		if err := a.identity.Logout(c.UserContext(), credential); err != nil {
			a.logRichError("Logout against identity provider failed", err)
		}
		if a.OnLogout != nil {
			if session, err := SessionFromCredential(credential); err == nil {
				a.OnLogout(session.GetUserID())
			}
		}
	}

	a.ClearCredential(c)
	return c.Redirect(a.cfg.GetAuthEntryPath(), fiber.StatusFound)
}

// CurrentSession derives the session for the request from the cookie.
func (a *AuthController) CurrentSession(c *fiber.Ctx) (Session, error) {
	credential := c.Cookies(a.cfg.GetCookieName())
	if credential == "" {
		return nil, ErrCredentialAbsent
	}
	return SessionFromCredential(credential)
}

// ClearCredential expires the session cookie. Used on logout and when the
// identity provider rejects a credential, so a dead cookie cannot keep
// bouncing the user between the gate and the login page.
func (a *AuthController) ClearCredential(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     a.cfg.GetCookieName(),
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   c.Secure(),
		SameSite: "Lax",
	})
}

func (a *AuthController) setCredentialCookie(c *fiber.Ctx, val string, duration time.Duration) {
	sameSite := "Lax"
	if c.Secure() {
		sameSite = "None"
	}

	c.Cookie(&fiber.Cookie{
		Name:     a.cfg.GetCookieName(),
		Value:    val,
		Path:     "/",
		MaxAge:   int(duration.Seconds()),
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   c.Secure(),
		SameSite: sameSite,
	})
}

func (a *AuthController) logRichError(msg string, err error) {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		a.Logger.Error("%s: %s", msg, err)
		return
	}

	a.Logger.Error(
		"%s: %s category=%s details=%s",
		msg,
		richErr.Message,
		richErr.Category,
		print.MaybePrettyJSON(richErr.Metadata),
	)
}
