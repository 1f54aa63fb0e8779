package jwt

import (
	"errors"
	"fmt"

	jwtlib "github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-blog-server/internal/errors"
)

// Kind classifies why a token failed verification.
type Kind int

const (
	Malformed Kind = iota + 1
	InvalidSignature
	Expired
)

func (k Kind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case InvalidSignature:
		return "invalid_signature"
	case Expired:
		return "expired"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// VerifyError is returned by every Codec verification method.
type VerifyError struct {
	Kind Kind
	Err  error
}

func (e *VerifyError) Error() string {
	if e.Err == nil {
		return "token " + e.Kind.String()
	}
	return fmt.Sprintf("token %s: %v", e.Kind, e.Err)
}

func (e *VerifyError) Unwrap() error {
	return e.Err
}

// Is matches ErrTokenExpired for expired tokens and ErrInvalidToken for
// every other kind.
func (e *VerifyError) Is(target error) bool {
	if e.Kind == Expired {
		return target == apperrors.ErrTokenExpired
	}
	return target == apperrors.ErrInvalidToken
}

// IsExpired reports whether err is a VerifyError of kind Expired.
func IsExpired(err error) bool {
	return errors.Is(err, apperrors.ErrTokenExpired)
}

// classify maps parser errors onto a Kind. The parser checks the signature
// before it validates claims, so an expired token that reaches claim
// validation was correctly signed.
func classify(err error) *VerifyError {
	switch {
	case errors.Is(err, jwtlib.ErrTokenSignatureInvalid), errors.Is(err, jwtlib.ErrTokenUnverifiable):
		return &VerifyError{Kind: InvalidSignature, Err: err}
	case errors.Is(err, jwtlib.ErrTokenExpired):
		return &VerifyError{Kind: Expired, Err: err}
	default:
		return &VerifyError{Kind: Malformed, Err: err}
	}
}
