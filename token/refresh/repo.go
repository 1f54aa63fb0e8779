package refresh

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/go-blog-server/internal/errors"
)

var (
	ErrNotFound    = fmt.Errorf("refresh token %w", apperrors.ErrNotFound)
	ErrUnavailable = fmt.Errorf("refresh token store: %w", apperrors.ErrUnavailable)
)

// Repo holds the single current renewal token for each subject. Put always
// overwrites, so there is never more than one entry per subject.
type Repo interface {
	Put(ctx context.Context, subject, token string, ttl time.Duration) error
	// Get returns ErrNotFound when the subject has no current token.
	Get(ctx context.Context, subject string) (string, error)
	Delete(ctx context.Context, subject string) error
	// Swap replaces the entry with next only if it still equals expected.
	// It reports false when another writer got there first.
	Swap(ctx context.Context, subject, expected, next string, ttl time.Duration) (bool, error)
}
