package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomin-app/tomin-web/config"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, "0.0.0.0:3000", cfg.ListenAddr())
	assert.Equal(t, "http://localhost:8000", cfg.Backend.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "access_token", cfg.GetCookieName())
	assert.Equal(t, 24*time.Hour, cfg.GetCookieDuration())
	assert.Equal(t, "/dashboard", cfg.GetProtectedPrefix())
	assert.Equal(t, "/login", cfg.GetAuthEntryPath())
	assert.Equal(t, "/dashboard", cfg.GetLandingPath())
	assert.Equal(t, "/auth/callback", cfg.GetCallbackPath())
	assert.Equal(t, "sse", cfg.Feed.Transport)
	assert.Equal(t, 500*time.Millisecond, cfg.Feed.BackoffBase)
	assert.Equal(t, 30*time.Second, cfg.Feed.BackoffCap)
	assert.Equal(t, 6, cfg.Feed.MaxAttempts)
}

func TestLoadDerivesCollaboratorURLs(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000/api/v1", cfg.Identity.BaseURL)
	assert.Equal(t, "http://localhost:8000/api/notifications", cfg.Feed.BaseURL)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tomin.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 8080
backend:
  base_url: https://api.tomin.app
feed:
  transport: websocket
  max_attempts: 3
session:
  cookie_name: tomin_session
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.ListenAddr())
	assert.Equal(t, "https://api.tomin.app", cfg.Backend.BaseURL)
	assert.Equal(t, "https://api.tomin.app/api/v1", cfg.Identity.BaseURL)
	assert.Equal(t, "websocket", cfg.Feed.Transport)
	assert.Equal(t, 3, cfg.Feed.MaxAttempts)
	assert.Equal(t, "tomin_session", cfg.GetCookieName())
	// Untouched knobs keep their defaults.
	assert.Equal(t, "/dashboard", cfg.GetProtectedPrefix())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TOMIN_API_URL", "https://api.override.app")
	t.Setenv("TOMIN_LISTEN_ADDR", "127.0.0.1")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://api.override.app", cfg.Backend.BaseURL)
	assert.Equal(t, "https://api.override.app/api/v1", cfg.Identity.BaseURL)
	assert.Equal(t, "127.0.0.1:3000", cfg.ListenAddr())
}

func TestLoadEnvListenAddrWithPort(t *testing.T) {
	t.Setenv("TOMIN_LISTEN_ADDR", "127.0.0.1:8080")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
