package identity

import (
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	tomin "github.com/tomin-app/tomin-web"
)

// Inspector performs local credential checks without calling the identity
// collaborator. By default it only inspects shape and expiry (the
// credential is otherwise opaque to the client); given a signing key or a
// JWK Set URL it verifies the signature too.
type Inspector struct {
	keyFunc jwt.Keyfunc
	logger  tomin.Logger
}

type InspectorOption func(*Inspector) error

// WithSigningKey verifies credentials against a shared HMAC key.
func WithSigningKey(key []byte) InspectorOption {
	return func(i *Inspector) error {
		i.keyFunc = func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return key, nil
		}
		return nil
	}
}

// WithJWKSetURL verifies credentials against the provider's published key
// set, refreshed in the background.
func WithJWKSetURL(url string) InspectorOption {
	return func(i *Inspector) error {
		jwks, err := keyfunc.Get(url, keyfunc.Options{
			RefreshErrorHandler: func(err error) {
				i.logger.Warn("JWK set refresh failed: %s", err)
			},
			RefreshInterval:   time.Hour,
			RefreshRateLimit:  time.Minute * 5,
			RefreshTimeout:    time.Second * 10,
			RefreshUnknownKID: true,
		})
		if err != nil {
			return err
		}
		i.keyFunc = jwks.Keyfunc
		return nil
	}
}

func WithInspectorLogger(logger tomin.Logger) InspectorOption {
	return func(i *Inspector) error {
		if logger != nil {
			i.logger = logger
		}
		return nil
	}
}

func NewInspector(opts ...InspectorOption) (*Inspector, error) {
	i := &Inspector{logger: tomin.DefaultLogger()}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(i); err != nil {
			return nil, err
		}
	}
	return i, nil
}

// Usable reports whether a credential should count as present at the gate.
// Malformed and expired credentials are equivalent to absent ones.
func (i *Inspector) Usable(credential string) bool {
	if credential == "" {
		return false
	}

	if i.keyFunc == nil {
		_, err := tomin.SessionFromCredential(credential)
		return err == nil
	}

	_, err := jwt.Parse(credential, i.keyFunc)
	if err != nil {
		i.logger.Debug("credential inspection failed: %s", err)
		return false
	}
	return true
}
