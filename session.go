package tomin

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var _ Session = &SessionObject{}

type SessionObject struct {
	UserID         string     `json:"user_id,omitempty"`
	Email          string     `json:"email,omitempty"`
	Name           string     `json:"name,omitempty"`
	Picture        string     `json:"picture,omitempty"`
	IssuedAt       *time.Time `json:"issued_at,omitempty"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
}

func (s *SessionObject) GetUserID() string {
	return s.UserID
}

func (s *SessionObject) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(s.UserID)
}

func (s *SessionObject) GetEmail() string {
	return s.Email
}

func (s *SessionObject) GetName() string {
	return s.Name
}

func (s *SessionObject) GetPicture() string {
	return s.Picture
}

func (s *SessionObject) GetIssuedAt() *time.Time {
	return s.IssuedAt
}

func (s *SessionObject) GetExpiration() *time.Time {
	return s.ExpirationDate
}

func (s SessionObject) String() string {
	issuedAt := "<nil>"
	if s.IssuedAt != nil {
		issuedAt = s.IssuedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"user=%s email=%s iat=%s",
		s.UserID,
		s.Email,
		issuedAt,
	)
}

// SessionFromCredential derives a read-only session from the bearer
// credential without verifying the signature; the identity collaborator owns
// verification. An expired credential returns jwt.ErrTokenExpired so callers
// can treat it the same as an absent one.
func SessionFromCredential(credential string) (*SessionObject, error) {
	if credential == "" {
		return nil, ErrCredentialAbsent
	}

	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(credential, jwt.MapClaims{})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if claims == nil || !ok {
		return nil, ErrUnableToMapClaims
	}

	return sessionFromClaims(claims)
}

func sessionFromClaims(claims jwt.MapClaims) (*SessionObject, error) {
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, ErrUnableToMapClaims
	}

	session := &SessionObject{
		UserID:  subject,
		Email:   stringClaim(claims, "email"),
		Name:    stringClaim(claims, "name"),
		Picture: stringClaim(claims, "picture"),
	}

	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		session.IssuedAt = &iat.Time
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		session.ExpirationDate = &exp.Time
		if exp.Before(time.Now()) {
			return nil, jwt.ErrTokenExpired
		}
	}

	return session, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if raw, ok := claims[key]; ok {
		if s, ok := raw.(string); ok {
			return s
		}
	}
	return ""
}
