package tomin_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tomin "github.com/tomin-app/tomin-web"
)

func signedCredential(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	credential, err := token.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return credential
}

func TestSessionObject(t *testing.T) {
	userID := uuid.New().String()
	now := time.Now()

	session := &tomin.SessionObject{
		UserID:         userID,
		Email:          "ana@example.com",
		Name:           "Ana",
		Picture:        "https://example.com/ana.png",
		IssuedAt:       &now,
		ExpirationDate: &now,
	}

	assert.Equal(t, userID, session.GetUserID())

	userUUID, err := session.GetUserUUID()
	assert.NoError(t, err)
	assert.Equal(t, userID, userUUID.String())

	assert.Equal(t, "ana@example.com", session.GetEmail())
	assert.Equal(t, "Ana", session.GetName())
	assert.Equal(t, "https://example.com/ana.png", session.GetPicture())
	assert.Equal(t, &now, session.GetIssuedAt())
	assert.Equal(t, &now, session.GetExpiration())

	stringRep := session.String()
	assert.Contains(t, stringRep, userID)
	assert.Contains(t, stringRep, "ana@example.com")
}

func TestSessionFromCredential(t *testing.T) {
	userID := uuid.New().String()
	now := time.Now()

	credential := signedCredential(t, jwt.MapClaims{
		"sub":     userID,
		"email":   "ana@example.com",
		"name":    "Ana",
		"picture": "https://example.com/ana.png",
		"iat":     jwt.NewNumericDate(now),
		"exp":     jwt.NewNumericDate(now.Add(time.Hour)),
	})

	session, err := tomin.SessionFromCredential(credential)
	require.NoError(t, err)

	assert.Equal(t, userID, session.GetUserID())
	assert.Equal(t, "ana@example.com", session.GetEmail())
	assert.Equal(t, "Ana", session.GetName())
	assert.Equal(t, "https://example.com/ana.png", session.GetPicture())
	require.NotNil(t, session.GetExpiration())
	assert.WithinDuration(t, now.Add(time.Hour), *session.GetExpiration(), time.Second)
}

func TestSessionFromCredentialExpired(t *testing.T) {
	credential := signedCredential(t, jwt.MapClaims{
		"sub": uuid.New().String(),
		"exp": jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})

	_, err := tomin.SessionFromCredential(credential)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestSessionFromCredentialAbsent(t *testing.T) {
	_, err := tomin.SessionFromCredential("")
	assert.ErrorIs(t, err, tomin.ErrCredentialAbsent)
}

func TestSessionFromCredentialMalformed(t *testing.T) {
	_, err := tomin.SessionFromCredential("not-a-credential")
	require.Error(t, err)
	assert.True(t, tomin.IsCredentialMalformed(err))
}

func TestSessionFromCredentialMissingSubject(t *testing.T) {
	credential := signedCredential(t, jwt.MapClaims{
		"email": "ana@example.com",
	})

	_, err := tomin.SessionFromCredential(credential)
	assert.ErrorIs(t, err, tomin.ErrUnableToMapClaims)
}
