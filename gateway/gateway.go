// Package gateway composes the Tomin web gateway: the fiber app, the
// session gate, the auth routes, and the JSON view-state routes backed by
// per-subject dashboards and live subscriptions.
package gateway

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	tomin "github.com/tomin-app/tomin-web"
	"github.com/tomin-app/tomin-web/client"
	"github.com/tomin-app/tomin-web/config"
	"github.com/tomin-app/tomin-web/feed"
	"github.com/tomin-app/tomin-web/identity"
	"github.com/tomin-app/tomin-web/middleware/gate"
)

// Backend is the backend collaborator surface the gateway proxies.
type Backend interface {
	SpendingDistribution(ctx context.Context, credential string, period client.Period) ([]client.SpendingSlice, error)
	Transactions(ctx context.Context, credential string, period client.Period) ([]client.Transaction, error)
	RecurringTransactions(ctx context.Context, credential string, period client.Period) ([]client.Transaction, error)
	Summary(ctx context.Context, credential string) (*client.Summary, error)
	UploadStatement(ctx context.Context, credential, filename string, file io.Reader) (*client.UploadAck, error)
	Statements(ctx context.Context, credential string) ([]client.Statement, error)
	StatementCount(ctx context.Context, credential string) (int, error)
	DeleteStatement(ctx context.Context, credential string, id uuid.UUID) error
}

type App struct {
	cfg      *config.Config
	logger   tomin.Logger
	router   *fiber.App
	backend  Backend
	identity tomin.IdentityClient
	check    gate.CredentialCheck
	feeds    *feed.Manager
	registry *Registry
	auth     *tomin.AuthController
	stop     chan struct{}
}

type Option func(*App)

func WithLogger(logger tomin.Logger) Option {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithBackend overrides the backend client (used in tests).
func WithBackend(backend Backend) Option {
	return func(a *App) {
		a.backend = backend
	}
}

// WithIdentity overrides the identity client (used in tests).
func WithIdentity(id tomin.IdentityClient) Option {
	return func(a *App) {
		a.identity = id
	}
}

// WithFeedManager overrides the live feed manager (used in tests).
func WithFeedManager(feeds *feed.Manager) Option {
	return func(a *App) {
		a.feeds = feeds
	}
}

// WithCredentialCheck overrides the local credential inspection the gate
// applies.
func WithCredentialCheck(check gate.CredentialCheck) Option {
	return func(a *App) {
		a.check = check
	}
}

func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:    cfg,
		logger: tomin.DefaultLogger(),
		stop:   make(chan struct{}),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	if a.backend == nil {
		backend, err := client.New(client.Config{
			BaseURL: cfg.Backend.BaseURL,
			Timeout: cfg.Backend.Timeout,
			Logger:  a.logger,
		})
		if err != nil {
			return nil, err
		}
		a.backend = backend
	}

	if a.identity == nil {
		id, err := identity.New(identity.Config{
			BaseURL: cfg.Identity.BaseURL,
			Timeout: cfg.Backend.Timeout,
			Logger:  a.logger,
		})
		if err != nil {
			return nil, err
		}
		a.identity = id
	}

	if a.check == nil {
		inspectorOpts := []identity.InspectorOption{identity.WithInspectorLogger(a.logger)}
		if cfg.Identity.JWKSetURL != "" {
			inspectorOpts = append(inspectorOpts, identity.WithJWKSetURL(cfg.Identity.JWKSetURL))
		}
		inspector, err := identity.NewInspector(inspectorOpts...)
		if err != nil {
			return nil, err
		}
		a.check = inspector.Usable
	}

	if a.feeds == nil {
		transport, err := a.buildTransport()
		if err != nil {
			return nil, err
		}
		a.feeds = feed.NewManager(transport,
			feed.WithLogger(a.logger),
			feed.WithBackoff(feed.Backoff{
				Base:        cfg.Feed.BackoffBase,
				Cap:         cfg.Feed.BackoffCap,
				MaxAttempts: cfg.Feed.MaxAttempts,
			}),
		)
		a.feeds.SetLogger(a.logger)
	}

	a.registry = NewRegistry(a.backend, a.feeds, a.logger)

	a.auth = tomin.NewAuthController(cfg, a.identity,
		tomin.WithAuthLogger(a.logger),
		tomin.WithLogoutHook(a.registry.Release),
	)

	a.router = fiber.New(fiber.Config{
		AppName:               "tomin-web",
		DisableStartupMessage: true,
	})

	a.router.Use(gate.New(gate.Config{
		CookieName:      cfg.GetCookieName(),
		ProtectedPrefix: cfg.Gate.ProtectedPrefix,
		AuthEntryPath:   cfg.Gate.AuthEntryPath,
		LandingPath:     cfg.Gate.LandingPath,
		CallbackPath:    cfg.Gate.CallbackPath,
		BypassPrefixes:  cfg.Gate.BypassPrefixes,
		Check:           a.check,
	}))

	tomin.RegisterAuthRoutes(a.router, a.auth)
	a.registerDashboardRoutes()

	return a, nil
}

func (a *App) buildTransport() (feed.Transport, error) {
	switch a.cfg.Feed.Transport {
	case "", "sse":
		return &feed.SSETransport{BaseURL: a.cfg.Feed.BaseURL}, nil
	case "websocket":
		return &feed.WSTransport{BaseURL: a.cfg.Feed.BaseURL}, nil
	default:
		return nil, fmt.Errorf("gateway: unknown feed transport %q", a.cfg.Feed.Transport)
	}
}

// Router exposes the fiber app, mainly for tests.
func (a *App) Router() *fiber.App {
	return a.router
}

// Registry exposes the per-subject session registry.
func (a *App) Registry() *Registry {
	return a.registry
}

// Start runs the idle-eviction sweep and blocks serving HTTP.
func (a *App) Start() error {
	go a.sweep()
	a.logger.Info("Tomin gateway listening on %s", a.cfg.ListenAddr())
	return a.router.Listen(a.cfg.ListenAddr())
}

// Shutdown stops the sweeper, closes every live subscription and drains
// the server.
func (a *App) Shutdown() error {
	close(a.stop)
	a.registry.Close()
	a.feeds.Close()
	return a.router.Shutdown()
}

func (a *App) sweep() {
	ttl := a.cfg.Session.IdleTTL
	if ttl <= 0 {
		return
	}

	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.registry.EvictIdle(ttl)
		case <-a.stop:
			return
		}
	}
}
