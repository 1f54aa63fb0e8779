package users

import (
	"context"

	apperrors "github.com/jrsteele09/go-blog-server/internal/errors"
)

var (
	ErrUserNotFound     = apperrors.ErrUserNotFound
	ErrUserExists       = apperrors.ErrUserExists
	ErrPasswordMismatch = apperrors.ErrInvalidCredentials
)

type UserRepo interface {
	// Create stores a new user, assigning an ID when empty. It returns
	// ErrUserExists when the username or provider identity is taken.
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByProvider(ctx context.Context, provider, providerSubjectID string) (*User, error)
	GetByNickname(ctx context.Context, nickname string) (*User, error)
	// Update overwrites the stored nickname, password hash, email and role.
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id string) error
}
