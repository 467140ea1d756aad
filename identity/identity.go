// Package identity is the client for the external identity collaborator:
// it exposes the third-party login entry point, resolves the current
// session for a credential, and performs server-side logout. It also holds
// the local credential inspector the session gate uses.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	tomin "github.com/tomin-app/tomin-web"
)

const defaultTimeout = 15 * time.Second

type Config struct {
	// BaseURL of the identity collaborator, e.g. "https://api.tomin.app/api/v1".
	BaseURL string
	// HTTPClient overrides the default client; a bounded timeout is always
	// applied if the provided client has none.
	HTTPClient *http.Client
	// Timeout caps each request. Defaults to 15s.
	Timeout time.Duration
	Logger  tomin.Logger
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  tomin.Logger
}

var _ tomin.IdentityClient = &Client{}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("identity: base URL is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	} else if httpClient.Timeout == 0 {
		clone := *httpClient
		clone.Timeout = timeout
		httpClient = &clone
	}

	logger := cfg.Logger
	if logger == nil {
		logger = tomin.DefaultLogger()
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}, nil
}

// LoginURL is the redirect target that enters the third-party login flow.
func (c *Client) LoginURL() string {
	return c.baseURL + "/auth/google"
}

type profilePayload struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// CurrentSession resolves the session the collaborator associates with the
// credential. A 401/403 response maps to ErrSessionRejected so callers can
// clear the dead cookie; transport failures stay distinguishable.
func (c *Client) CurrentSession(ctx context.Context, credential string) (tomin.Session, error) {
	if credential == "" {
		return nil, tomin.ErrCredentialAbsent
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/me", nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to build session request")
	}
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "identity provider unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, tomin.ErrSessionRejected.Clone().WithMetadata(map[string]any{
			"status": resp.StatusCode,
		})
	case resp.StatusCode != http.StatusOK:
		return nil, errors.New("identity provider returned unexpected status", errors.CategoryOperation).
			WithMetadata(map[string]any{
				"status": resp.StatusCode,
			})
	}

	var profile profilePayload
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to decode session profile")
	}
	if profile.Sub == "" {
		return nil, errors.New("session profile missing subject", errors.CategoryOperation)
	}

	return &tomin.SessionObject{
		UserID:  profile.Sub,
		Email:   profile.Email,
		Name:    profile.Name,
		Picture: profile.Picture,
	}, nil
}

// Logout invalidates the credential server-side.
func (c *Client) Logout(ctx context.Context, credential string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/logout", nil)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to build logout request")
	}
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "identity provider unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return errors.New("logout rejected by identity provider", errors.CategoryOperation).
			WithMetadata(map[string]any{
				"status": resp.StatusCode,
			})
	}

	return nil
}
