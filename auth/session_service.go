package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/go-blog-server/cookies"
	apperrors "github.com/jrsteele09/go-blog-server/internal/errors"
	"github.com/jrsteele09/go-blog-server/principal"
	"github.com/jrsteele09/go-blog-server/token/jwt"
	"github.com/jrsteele09/go-blog-server/token/refresh"
	"github.com/jrsteele09/go-blog-server/users"
	"github.com/rs/zerolog/log"
)

const (
	DefaultCookieName      = "refreshToken"
	DefaultIdentityTimeout = 3 * time.Second
)

// IdentityStore verifies primary credentials and resolves subjects to their
// current attributes. Unknown users and wrong passwords are reported with
// the ErrUserNotFound and ErrInvalidCredentials sentinels.
type IdentityStore interface {
	Verify(ctx context.Context, username, password string) (principal.Principal, error)
	Lookup(ctx context.Context, subjectID string) (principal.Principal, error)
}

// SessionService owns login, renewal and logout. It is the only place that
// turns codec, store and identity failures into a Kind.
type SessionService struct {
	codec           *jwt.Codec
	tokens          *refresh.Manager
	transport       *cookies.Transport
	identities      IdentityStore
	cookieName      string
	identityTimeout time.Duration
}

type SessionServiceOption func(*SessionService)

func WithCookieName(name string) SessionServiceOption {
	return func(s *SessionService) {
		if name != "" {
			s.cookieName = name
		}
	}
}

// WithIdentityTimeout bounds calls to the identity store.
func WithIdentityTimeout(timeout time.Duration) SessionServiceOption {
	return func(s *SessionService) {
		if timeout > 0 {
			s.identityTimeout = timeout
		}
	}
}

func NewSessionService(
	codec *jwt.Codec,
	tokens *refresh.Manager,
	transport *cookies.Transport,
	identities IdentityStore,
	options ...SessionServiceOption,
) (*SessionService, error) {
	if codec == nil {
		return nil, errors.New("[NewSessionService] codec is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewSessionService] refresh token manager is required")
	}
	if transport == nil {
		return nil, errors.New("[NewSessionService] cookie transport is required")
	}
	if identities == nil {
		return nil, errors.New("[NewSessionService] identity store is required")
	}

	s := &SessionService{
		codec:           codec,
		tokens:          tokens,
		transport:       transport,
		identities:      identities,
		cookieName:      DefaultCookieName,
		identityTimeout: DefaultIdentityTimeout,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func (s *SessionService) CookieName() string {
	return s.cookieName
}

// Login verifies username and password and starts a session.
func (s *SessionService) Login(ctx context.Context, w http.ResponseWriter, username, password string) (string, error) {
	username = users.NormalizeUsername(username)
	if err := ValidateLoginCredentials(username, password); err != nil {
		return "", newError(InvalidCredentials, err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, s.identityTimeout)
	defer cancel()
	p, err := s.identities.Verify(verifyCtx, username, password)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) || errors.Is(err, apperrors.ErrInvalidCredentials) {
			return "", newError(InvalidCredentials, err)
		}
		log.Err(err).Msg("identity store verify failed")
		return "", newError(Unavailable, err)
	}

	return s.Issue(ctx, w, p)
}

// Issue mints an access and renewal pair for an already authenticated
// principal, stores the renewal token and sets the cookie. Nothing is sent
// to the client unless the store write succeeded.
func (s *SessionService) Issue(ctx context.Context, w http.ResponseWriter, p principal.Principal) (string, error) {
	access, renewal, err := s.mint(p)
	if err != nil {
		return "", err
	}

	if err := s.tokens.Save(ctx, p.SubjectID, renewal); err != nil {
		log.Err(err).Str("event", "refresh_store_unavailable").Str("subject", p.SubjectID).Msg("failed to store refresh token")
		return "", newError(Unavailable, err)
	}

	s.transport.Write(w, s.cookieName, renewal, s.codec.RenewalTTL())
	log.Info().Str("subject", p.SubjectID).Msg("session issued")
	return access, nil
}

// Renew rotates the renewal token carried in the request cookie and returns
// a new access token.
func (s *SessionService) Renew(ctx context.Context, r *http.Request, w http.ResponseWriter) (string, error) {
	presented, ok := s.transport.Read(r, s.cookieName)
	if !ok {
		return "", newError(MissingCredential, nil)
	}

	claims, err := s.codec.VerifyRenewal(presented)
	if err != nil {
		return "", newError(InvalidCredential, err)
	}
	subject := claims.Subject

	stored, err := s.tokens.Current(ctx, subject)
	if errors.Is(err, refresh.ErrNotFound) {
		return "", newError(SessionNotFound, err)
	}
	if err != nil {
		log.Err(err).Str("event", "refresh_store_unavailable").Str("subject", subject).Msg("failed to read refresh token")
		return "", newError(Unavailable, err)
	}

	if subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) != 1 {
		log.Warn().Str("event", "refresh_token_reuse").Str("subject", subject).Msg("stale refresh token presented, revoking session")
		if err := s.tokens.Revoke(ctx, subject); err != nil {
			log.Err(err).Str("event", "refresh_store_unavailable").Str("subject", subject).Msg("failed to revoke session after reuse")
		}
		return "", newError(TokenReuseDetected, errors.New("refresh token does not match the current session"))
	}

	p, err := s.lookup(ctx, subject)
	if err != nil {
		return "", err
	}

	access, renewal, err := s.mint(p)
	if err != nil {
		return "", err
	}

	swapped, err := s.tokens.Rotate(ctx, subject, presented, renewal)
	if err != nil {
		log.Err(err).Str("event", "refresh_store_unavailable").Str("subject", subject).Msg("failed to rotate refresh token")
		return "", newError(Unavailable, err)
	}
	if !swapped {
		log.Warn().Str("event", "refresh_token_reuse").Str("subject", subject).Msg("concurrent refresh lost the rotation")
		return "", newError(TokenReuseDetected, errors.New("refresh token was rotated by a concurrent request"))
	}

	s.transport.Write(w, s.cookieName, renewal, s.codec.RenewalTTL())
	return access, nil
}

// Logout ends the session named by the request cookie. Store failures are
// logged, never returned, and the cookie is always cleared.
func (s *SessionService) Logout(ctx context.Context, r *http.Request, w http.ResponseWriter) {
	defer s.transport.Clear(r, w, s.cookieName)

	presented, ok := s.transport.Read(r, s.cookieName)
	if !ok {
		return
	}
	subject, err := s.codec.Subject(presented)
	if err != nil {
		log.Debug().Err(err).Msg("logout with unusable refresh token")
		return
	}
	if err := s.tokens.Revoke(ctx, subject); err != nil {
		log.Err(err).Str("event", "logout_store_failure").Str("subject", subject).Msg("failed to delete refresh token on logout")
		return
	}
	log.Info().Str("subject", subject).Msg("session ended")
}

// Revoke deletes the subject's renewal token so no further renewals succeed.
// Access tokens already issued stay valid until they expire.
func (s *SessionService) Revoke(ctx context.Context, subjectID string) error {
	if err := s.tokens.Revoke(ctx, subjectID); err != nil {
		return newError(Unavailable, err)
	}
	return nil
}

func (s *SessionService) lookup(ctx context.Context, subject string) (principal.Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.identityTimeout)
	defer cancel()

	p, err := s.identities.Lookup(ctx, subject)
	if errors.Is(err, apperrors.ErrUserNotFound) {
		if rerr := s.tokens.Revoke(ctx, subject); rerr != nil {
			log.Err(rerr).Str("event", "refresh_store_unavailable").Str("subject", subject).Msg("failed to revoke session of deleted user")
		}
		return principal.Principal{}, newError(SessionNotFound, err)
	}
	if err != nil {
		log.Err(err).Str("subject", subject).Msg("identity store lookup failed")
		return principal.Principal{}, newError(Unavailable, err)
	}
	return p, nil
}

func (s *SessionService) mint(p principal.Principal) (access, renewal string, err error) {
	if p.SubjectID == "" {
		return "", "", errors.New("[SessionService] principal has no subject")
	}
	access, err = s.codec.IssueAccess(p.SubjectID, p.Role, p.DisplayName)
	if err != nil {
		return "", "", fmt.Errorf("[SessionService] IssueAccess: %w", err)
	}
	renewal, err = s.codec.IssueRenewal(p.SubjectID)
	if err != nil {
		return "", "", fmt.Errorf("[SessionService] IssueRenewal: %w", err)
	}
	return access, renewal, nil
}
