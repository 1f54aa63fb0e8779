package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-blog-server/internal/errors"
	"github.com/jrsteele09/go-blog-server/principal"
	"github.com/rs/zerolog/log"
)

// dummyHash is compared against when a username does not exist so that
// unknown users take as long to reject as wrong passwords.
var dummyHash, _ = HashPassword(uuid.NewString())

// SignupRequest is the input for Register.
type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
}

// Validate returns an error wrapping apperrors.ErrInvalidInput when a field
// is missing or out of bounds.
func (r SignupRequest) Validate() error {
	if err := ValidateUsername(r.Username); err != nil {
		return err
	}
	if err := ValidateNickname(r.Nickname); err != nil {
		return err
	}
	return ValidatePasswordStrength(r.Password)
}

// Service verifies and manages locally stored users.
type Service struct {
	repo    UserRepo
	nowTime func() time.Time
}

type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

func NewService(repo UserRepo, options ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("[NewService] users repo is required")
	}
	s := &Service{repo: repo, nowTime: time.Now}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func (s *Service) Repo() UserRepo {
	return s.repo
}

// Verify checks a username and password. It fails with ErrUserNotFound or
// ErrPasswordMismatch; any other error is infrastructure.
func (s *Service) Verify(ctx context.Context, username, password string) (principal.Principal, error) {
	user, err := s.repo.GetByUsername(ctx, NormalizeUsername(username))
	if errors.Is(err, ErrUserNotFound) {
		CheckPasswordHash(password, dummyHash)
		return principal.Principal{}, ErrUserNotFound
	}
	if err != nil {
		return principal.Principal{}, fmt.Errorf("[Service.Verify] GetByUsername: %w", err)
	}
	if !CheckPasswordHash(password, user.PasswordHash) {
		return principal.Principal{}, ErrPasswordMismatch
	}
	return user.Principal(), nil
}

// Lookup returns the current principal for a subject.
func (s *Service) Lookup(ctx context.Context, subjectID string) (principal.Principal, error) {
	user, err := s.repo.GetByID(ctx, subjectID)
	if err != nil {
		return principal.Principal{}, err
	}
	return user.Principal(), nil
}

// Register creates a local user with the USER role.
func (s *Service) Register(ctx context.Context, req SignupRequest) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	nickname := strings.TrimSpace(req.Nickname)
	if taken, err := s.NicknameTaken(ctx, nickname); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrNicknameTaken
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("[Service.Register] HashPassword: %w", err)
	}
	user := &User{
		ID:           uuid.NewString(),
		Username:     NormalizeUsername(req.Username),
		PasswordHash: hash,
		Nickname:     nickname,
		Email:        strings.TrimSpace(req.Email),
		Role:         RoleUser,
		DateJoined:   s.nowTime(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrUserExists) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: [Service.Register] Create: %w", apperrors.ErrUnavailable, err)
	}
	log.Info().Str("user_id", user.ID).Msg("user registered")
	return user, nil
}

// UpdateNickname changes a user's display name. Setting the current
// nickname again is a no-op.
func (s *Service) UpdateNickname(ctx context.Context, subjectID, nickname string) error {
	if err := ValidateNickname(nickname); err != nil {
		return err
	}
	nickname = strings.TrimSpace(nickname)
	user, err := s.getUser(ctx, "UpdateNickname", subjectID)
	if err != nil {
		return err
	}
	if user.Nickname == nickname {
		return nil
	}
	if taken, err := s.NicknameTaken(ctx, nickname); err != nil {
		return err
	} else if taken {
		return ErrNicknameTaken
	}
	user.Nickname = nickname
	if err := s.update(ctx, "UpdateNickname", user); err != nil {
		return err
	}
	log.Info().Str("user_id", subjectID).Msg("nickname updated")
	return nil
}

// ChangePassword replaces a local user's password after checking the
// current one. The new password must differ from the old.
func (s *Service) ChangePassword(ctx context.Context, subjectID, current, next string) error {
	user, err := s.getUser(ctx, "ChangePassword", subjectID)
	if err != nil {
		return err
	}
	if user.IsSocial() {
		return invalidInput("accounts signed in through %s have no password", user.Provider)
	}
	if !CheckPasswordHash(current, user.PasswordHash) {
		return ErrPasswordMismatch
	}
	if current == next {
		return invalidInput("new password must differ from the current password")
	}
	if err := ValidatePasswordStrength(next); err != nil {
		return err
	}
	hash, err := HashPassword(next)
	if err != nil {
		return fmt.Errorf("[Service.ChangePassword] HashPassword: %w", err)
	}
	user.PasswordHash = hash
	if err := s.update(ctx, "ChangePassword", user); err != nil {
		return err
	}
	log.Info().Str("user_id", subjectID).Msg("password changed")
	return nil
}

// UsernameTaken reports whether a local account already uses username.
func (s *Service) UsernameTaken(ctx context.Context, username string) (bool, error) {
	_, err := s.repo.GetByUsername(ctx, NormalizeUsername(username))
	return taken("UsernameTaken", err)
}

// NicknameTaken reports whether any account already uses nickname.
func (s *Service) NicknameTaken(ctx context.Context, nickname string) (bool, error) {
	_, err := s.repo.GetByNickname(ctx, strings.TrimSpace(nickname))
	return taken("NicknameTaken", err)
}

func taken(op string, err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrUserNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("%w: [Service.%s] lookup: %w", apperrors.ErrUnavailable, op, err)
	}
}

func (s *Service) getUser(ctx context.Context, op, subjectID string) (*User, error) {
	user, err := s.repo.GetByID(ctx, subjectID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: [Service.%s] GetByID: %w", apperrors.ErrUnavailable, op, err)
	}
	return user, nil
}

func (s *Service) update(ctx context.Context, op string, user *User) error {
	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrUserExists) {
			return err
		}
		return fmt.Errorf("%w: [Service.%s] Update: %w", apperrors.ErrUnavailable, op, err)
	}
	return nil
}

// Withdraw deletes a user. Local users must confirm with their password.
func (s *Service) Withdraw(ctx context.Context, subjectID, password string) error {
	user, err := s.repo.GetByID(ctx, subjectID)
	if errors.Is(err, ErrUserNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("%w: [Service.Withdraw] GetByID: %w", apperrors.ErrUnavailable, err)
	}
	if !user.IsSocial() && !CheckPasswordHash(password, user.PasswordHash) {
		return ErrPasswordMismatch
	}
	if err := s.repo.Delete(ctx, subjectID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("%w: [Service.Withdraw] Delete: %w", apperrors.ErrUnavailable, err)
	}
	log.Info().Str("user_id", subjectID).Msg("user withdrawn")
	return nil
}

// EnsureAdmin creates an ADMIN user when username is not taken yet.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) error {
	username = NormalizeUsername(username)
	if username == "" || password == "" {
		return nil
	}
	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, ErrUserNotFound) {
		return fmt.Errorf("[Service.EnsureAdmin] GetByUsername: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("[Service.EnsureAdmin] HashPassword: %w", err)
	}
	admin := &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Nickname:     username,
		Role:         RoleAdmin,
		DateJoined:   s.nowTime(),
	}
	if err := s.repo.Create(ctx, admin); err != nil && !errors.Is(err, ErrUserExists) {
		return fmt.Errorf("[Service.EnsureAdmin] Create: %w", err)
	}
	log.Info().Str("username", username).Msg("admin user ensured")
	return nil
}
