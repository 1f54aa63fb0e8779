package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-blog-server/internal/errors"
	"github.com/jrsteele09/go-blog-server/principal"
	"github.com/jrsteele09/go-blog-server/users"
	"github.com/rs/zerolog/log"
)

// Issuer starts a session for an authenticated principal.
type Issuer interface {
	Issue(ctx context.Context, w http.ResponseWriter, p principal.Principal) (string, error)
}

// Bridge turns a verified third-party profile into a local session.
type Bridge struct {
	users   users.UserRepo
	issuer  Issuer
	nowTime func() time.Time
}

type BridgeOption func(*Bridge)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) BridgeOption {
	return func(b *Bridge) {
		b.nowTime = nowFunc
	}
}

func NewBridge(repo users.UserRepo, issuer Issuer, options ...BridgeOption) (*Bridge, error) {
	if repo == nil {
		return nil, errors.New("[NewBridge] users repo is required")
	}
	if issuer == nil {
		return nil, errors.New("[NewBridge] issuer is required")
	}
	b := &Bridge{users: repo, issuer: issuer, nowTime: time.Now}
	for _, opt := range options {
		opt(b)
	}
	return b, nil
}

// Complete finds or creates the local user for profile and issues a
// session exactly as a password login would.
func (b *Bridge) Complete(ctx context.Context, w http.ResponseWriter, profile *Profile) (string, error) {
	if profile == nil || profile.Provider == "" || profile.ProviderSubjectID == "" {
		return "", errors.New("[Bridge.Complete] profile is missing provider identity")
	}

	user, err := b.resolve(ctx, profile)
	if err != nil {
		return "", err
	}
	return b.issuer.Issue(ctx, w, user.Principal())
}

func (b *Bridge) resolve(ctx context.Context, profile *Profile) (*users.User, error) {
	user, err := b.users.GetByProvider(ctx, profile.Provider, profile.ProviderSubjectID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, users.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: [Bridge.resolve] GetByProvider: %w", apperrors.ErrUnavailable, err)
	}

	// The local secret is never used; these users always sign in through the provider.
	hash, err := users.HashPassword(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("[Bridge.resolve] HashPassword: %w", err)
	}
	user = &users.User{
		ID:                uuid.NewString(),
		Username:          profile.Provider + "_" + profile.ProviderSubjectID,
		PasswordHash:      hash,
		Nickname:          displayName(profile),
		Email:             profile.Email,
		Role:              users.RoleUser,
		DateJoined:        b.nowTime(),
		Provider:          profile.Provider,
		ProviderSubjectID: profile.ProviderSubjectID,
	}

	err = b.users.Create(ctx, user)
	if errors.Is(err, users.ErrUserExists) {
		// Either a concurrent first login won, or a local account owns the username.
		existing, gerr := b.users.GetByProvider(ctx, profile.Provider, profile.ProviderSubjectID)
		if gerr != nil {
			return nil, fmt.Errorf("[Bridge.resolve] username %s is taken: %w", user.Username, err)
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: [Bridge.resolve] Create: %w", apperrors.ErrUnavailable, err)
	}

	log.Info().Str("provider", profile.Provider).Str("user_id", user.ID).Msg("created user from external login")
	return user, nil
}

func displayName(profile *Profile) string {
	if name := strings.TrimSpace(profile.DisplayName); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(profile.Email, "@"); ok && local != "" {
		return local
	}
	return profile.Provider + "_" + profile.ProviderSubjectID
}
