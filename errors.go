package tomin

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeSessionRejected = "SESSION_REJECTED"
	textCodeFetchFailure    = "FETCH_FAILURE"
	textCodeChannelFailure  = "CHANNEL_FAILURE"
	textCodeUploadFailure   = "UPLOAD_FAILURE"
)

// ErrCredentialAbsent is the error when a request carries no session cookie
var ErrCredentialAbsent = errors.New("no session credential found")

// ErrUnableToDecodeCredential unable to decode the bearer credential
var ErrUnableToDecodeCredential = errors.New("unable to decode session credential")

// ErrUnableToMapClaims unable to get claims from the credential
var ErrUnableToMapClaims = errors.New("unable to map credential claims")

// ErrSessionRejected is returned when the identity collaborator rejects a
// credential that was present. Distinct from absence so callers can clear
// the dead cookie instead of looping back to login with it.
var ErrSessionRejected = goerrors.New("session rejected by identity provider", goerrors.CategoryAuth).
	WithTextCode(textCodeSessionRejected).
	WithCode(goerrors.CodeUnauthorized)

// ErrFeedUnavailable is the terminal live-feed state after reconnect
// attempts are exhausted.
var ErrFeedUnavailable = goerrors.New("live update feed unavailable", goerrors.CategoryOperation).
	WithTextCode(textCodeChannelFailure)

// WrapFetchFailure classifies a failed data collaborator call. Callers log
// it and keep the previous collection value; it never reaches the browser.
func WrapFetchFailure(err error, collection string) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to fetch "+collection).
		WithTextCode(textCodeFetchFailure).
		WithMetadata(map[string]any{
			"collection": collection,
		})
}

// WrapUploadFailure classifies a rejected statement upload. This is the one
// error category surfaced directly to the user.
func WrapUploadFailure(err error) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, "statement upload failed").
		WithTextCode(textCodeUploadFailure)
}

// IsSessionRejected reports whether the identity collaborator refused the
// credential, as opposed to a transport failure reaching it.
func IsSessionRejected(err error) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == textCodeSessionRejected
	}
	return false
}

// IsCredentialExpired will check for expired credentials
func IsCredentialExpired(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsCredentialMalformed will check for error message
func IsCredentialMalformed(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "token contains an invalid number of segments")
}
