package auth

import (
	"errors"
	"fmt"

	apperrors "github.com/jrsteele09/go-blog-server/internal/errors"
)

// Kind classifies a session failure. Callers switch on it to pick a response.
type Kind int

const (
	// InvalidCredentials means the username or password was wrong.
	InvalidCredentials Kind = iota + 1
	// MissingCredential means no renewal cookie was presented.
	MissingCredential
	// InvalidCredential means the renewal token was malformed, forged or expired.
	InvalidCredential
	// SessionNotFound means the subject has no stored renewal token.
	SessionNotFound
	// TokenReuseDetected means the presented renewal token is not the current one.
	TokenReuseDetected
	// Unavailable means a store or identity lookup failed. Retryable.
	Unavailable
)

func (k Kind) String() string {
	switch k {
	case InvalidCredentials:
		return "invalid_credentials"
	case MissingCredential:
		return "missing_credential"
	case InvalidCredential:
		return "invalid_credential"
	case SessionNotFound:
		return "session_not_found"
	case TokenReuseDetected:
		return "token_reuse_detected"
	case Unavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets callers match a failure against the shared sentinels, for
// example errors.Is(err, apperrors.ErrRefreshTokenReused).
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (k Kind) sentinel() error {
	switch k {
	case InvalidCredentials:
		return apperrors.ErrInvalidCredentials
	case MissingCredential, InvalidCredential:
		return apperrors.ErrInvalidRefreshToken
	case SessionNotFound:
		return apperrors.ErrSessionNotFound
	case TokenReuseDetected:
		return apperrors.ErrRefreshTokenReused
	case Unavailable:
		return apperrors.ErrUnavailable
	default:
		return nil
	}
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the Kind of a session failure.
func KindOf(err error) (Kind, bool) {
	var aerr *Error
	if errors.As(err, &aerr) {
		return aerr.Kind, true
	}
	return 0, false
}
