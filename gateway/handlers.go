package gateway

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	tomin "github.com/tomin-app/tomin-web"
	"github.com/tomin-app/tomin-web/client"
	"github.com/tomin-app/tomin-web/dashboard"
)

func (a *App) registerDashboardRoutes() {
	prefix := a.cfg.Gate.ProtectedPrefix

	a.router.Get(prefix+"/state", a.handleState)
	a.router.Post(prefix+"/refresh", a.handleRefresh)
	a.router.Post(prefix+"/notice/dismiss", a.handleNoticeDismiss)
	a.router.Post(prefix+"/upload", a.handleUpload)
	a.router.Get(prefix+"/statements", a.handleStatements)
	a.router.Get(prefix+"/statements/count", a.handleStatementCount)
	a.router.Delete(prefix+"/statements/:id", a.handleStatementDelete)
}

// resolve authenticates the request against the identity collaborator and
// returns the subject's dashboard, created with the period selector on
// first access. A rejected credential is cleared before redirecting, so a
// dead cookie cannot loop the user through the gate.
func (a *App) resolve(c *fiber.Ctx, period client.Period) (*dashboard.Dashboard, string, error) {
	credential := c.Cookies(a.cfg.GetCookieName())
	if credential == "" {
		return nil, "", c.Redirect(a.cfg.GetAuthEntryPath(), fiber.StatusFound)
	}

	session, err := a.identity.CurrentSession(c.UserContext(), credential)
	if err != nil {
		if tomin.IsSessionRejected(err) {
			a.logger.Info("Clearing rejected credential, returning to %s", a.cfg.GetAuthEntryPath())
			a.auth.ClearCredential(c)
			return nil, "", c.Redirect(a.cfg.GetAuthEntryPath(), fiber.StatusFound)
		}
		a.logger.Error("Session lookup failed: %s", err)
		return nil, "", c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "identity provider unavailable",
		})
	}

	dash, err := a.registry.Acquire(session.GetUserID(), credential, period)
	if err != nil {
		a.logger.Error("Failed to open dashboard session for %s: %s", session.GetUserID(), err)
		return nil, "", c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to open dashboard session",
		})
	}

	return dash, credential, nil
}

// periodQuery parses the optional ?period= selector; ok is false when the
// value is present but unknown.
func periodQuery(c *fiber.Ctx) (client.Period, bool) {
	raw := c.Query("period")
	if raw == "" {
		return "", true
	}
	return client.ParsePeriod(raw)
}

func badPeriod(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "unknown period selector",
	})
}

func (a *App) handleState(c *fiber.Ctx) error {
	period, ok := periodQuery(c)
	if !ok {
		return badPeriod(c)
	}

	dash, _, err := a.resolve(c, period)
	if dash == nil {
		return err
	}

	if period != "" {
		dash.SetPeriod(c.UserContext(), period)
	}
	return c.JSON(dash.Snapshot())
}

// handleRefresh is the stale-notice action: re-run the fetch batch for the
// current period (or the requested one) and clear the notice.
func (a *App) handleRefresh(c *fiber.Ctx) error {
	period, ok := periodQuery(c)
	if !ok {
		return badPeriod(c)
	}

	dash, _, err := a.resolve(c, period)
	if dash == nil {
		return err
	}

	if period != "" && period != dash.Snapshot().Period {
		dash.SetPeriod(c.UserContext(), period)
		dash.DismissNotice()
		return c.JSON(dash.Snapshot())
	}

	dash.RefreshFromNotice(c.UserContext())
	return c.JSON(dash.Snapshot())
}

func (a *App) handleNoticeDismiss(c *fiber.Ctx) error {
	dash, _, err := a.resolve(c, "")
	if dash == nil {
		return err
	}

	dash.DismissNotice()
	return c.JSON(dash.Snapshot())
}

// handleUpload proxies a bank-statement document to the backend. Upload
// failures are the one error class surfaced directly to the user.
func (a *App) handleUpload(c *fiber.Ctx) error {
	dash, credential, err := a.resolve(c, "")
	if dash == nil {
		return err
	}

	header, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing statement file",
		})
	}

	file, err := header.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unreadable statement file",
		})
	}
	defer file.Close()

	ack, err := a.backend.UploadStatement(c.UserContext(), credential, header.Filename, file)
	if err != nil {
		a.logger.Error("Statement upload failed: %s", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "statement upload failed",
		})
	}

	return c.JSON(ack)
}

func (a *App) handleStatements(c *fiber.Ctx) error {
	dash, credential, err := a.resolve(c, "")
	if dash == nil {
		return err
	}

	statements, err := a.backend.Statements(c.UserContext(), credential)
	if err != nil {
		a.logger.Error("Statement listing failed: %s", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "failed to list statements",
		})
	}
	return c.JSON(statements)
}

func (a *App) handleStatementCount(c *fiber.Ctx) error {
	dash, credential, err := a.resolve(c, "")
	if dash == nil {
		return err
	}

	count, err := a.backend.StatementCount(c.UserContext(), credential)
	if err != nil {
		a.logger.Error("Statement count failed: %s", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "failed to count statements",
		})
	}
	return c.JSON(fiber.Map{"count": count})
}

func (a *App) handleStatementDelete(c *fiber.Ctx) error {
	dash, credential, err := a.resolve(c, "")
	if dash == nil {
		return err
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid statement id",
		})
	}

	if err := a.backend.DeleteStatement(c.UserContext(), credential, id); err != nil {
		a.logger.Error("Statement delete failed: %s", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "failed to delete statement",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
