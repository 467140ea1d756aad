// Package config loads gateway configuration from an optional YAML file
// with environment overrides. Every knob has a working default so the
// gateway can start with nothing but TOMIN_API_URL set.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Backend  BackendConfig  `yaml:"backend"`
	Identity IdentityConfig `yaml:"identity"`
	Session  SessionConfig  `yaml:"session"`
	Gate     GateConfig     `yaml:"gate"`
	Feed     FeedConfig     `yaml:"feed"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type BackendConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type IdentityConfig struct {
	// BaseURL of the identity collaborator; defaults to the backend base
	// URL plus /api/v1 when empty.
	BaseURL string `yaml:"base_url"`
	// JWKSetURL enables full local signature checks at the gate.
	JWKSetURL string `yaml:"jwk_set_url"`
}

type SessionConfig struct {
	CookieName string        `yaml:"cookie_name"`
	CookieTTL  time.Duration `yaml:"cookie_ttl"`
	// IdleTTL evicts per-subject dashboard sessions (and closes their
	// live subscriptions) after this much inactivity.
	IdleTTL time.Duration `yaml:"idle_ttl"`
}

type GateConfig struct {
	ProtectedPrefix string   `yaml:"protected_prefix"`
	AuthEntryPath   string   `yaml:"auth_entry_path"`
	LandingPath     string   `yaml:"landing_path"`
	CallbackPath    string   `yaml:"callback_path"`
	BypassPrefixes  []string `yaml:"bypass_prefixes"`
}

type FeedConfig struct {
	// Transport is "sse" or "websocket".
	Transport string `yaml:"transport"`
	// BaseURL of the notification stream; defaults to the backend base
	// URL plus /api/notifications.
	BaseURL     string        `yaml:"base_url"`
	BackoffBase time.Duration `yaml:"backoff_base"`
	BackoffCap  time.Duration `yaml:"backoff_cap"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		Backend: BackendConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 15 * time.Second,
		},
		Session: SessionConfig{
			CookieName: "access_token",
			CookieTTL:  24 * time.Hour,
			IdleTTL:    30 * time.Minute,
		},
		Gate: GateConfig{
			ProtectedPrefix: "/dashboard",
			AuthEntryPath:   "/login",
			LandingPath:     "/dashboard",
			CallbackPath:    "/auth/callback",
			BypassPrefixes:  []string{"/api"},
		},
		Feed: FeedConfig{
			Transport:   "sse",
			BackoffBase: 500 * time.Millisecond,
			BackoffCap:  30 * time.Second,
			MaxAttempts: 6,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.applyDerived()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TOMIN_API_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("TOMIN_LISTEN_ADDR"); v != "" {
		// Accepts either a bare host or a full host:port.
		if host, port, err := net.SplitHostPort(v); err == nil {
			c.Server.Host = host
			if p, err := strconv.Atoi(port); err == nil {
				c.Server.Port = p
			}
		} else {
			c.Server.Host = v
		}
	}
}

func (c *Config) applyDerived() {
	if c.Identity.BaseURL == "" {
		c.Identity.BaseURL = c.Backend.BaseURL + "/api/v1"
	}
	if c.Feed.BaseURL == "" {
		c.Feed.BaseURL = c.Backend.BaseURL + "/api/notifications"
	}
	if c.Gate.LandingPath == "" {
		c.Gate.LandingPath = c.Gate.ProtectedPrefix
	}
}

// ListenAddr is the host:port the fiber app binds.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// The getters below satisfy the root Config interface.

func (c *Config) GetCookieName() string {
	return c.Session.CookieName
}

func (c *Config) GetCookieDuration() time.Duration {
	return c.Session.CookieTTL
}

func (c *Config) GetProtectedPrefix() string {
	return c.Gate.ProtectedPrefix
}

func (c *Config) GetAuthEntryPath() string {
	return c.Gate.AuthEntryPath
}

func (c *Config) GetLandingPath() string {
	return c.Gate.LandingPath
}

func (c *Config) GetCallbackPath() string {
	return c.Gate.CallbackPath
}
