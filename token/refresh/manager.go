package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const DefaultTimeout = 3 * time.Second

// Manager runs every repo call on a context that outlives the caller's
// cancellation but is bounded by a timeout, so an abandoned request never
// leaves a half-finished write. Infrastructure errors are reported as
// ErrUnavailable.
type Manager struct {
	repo    Repo
	ttl     time.Duration
	timeout time.Duration
}

type Option func(*Manager)

func WithTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// NewManager creates a new refresh token manager
func NewManager(repo Repo, ttl time.Duration, options ...Option) (*Manager, error) {
	if repo == nil {
		return nil, errors.New("[NewManager] missing repo")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("[NewManager] ttl must be positive, got %s", ttl)
	}
	m := &Manager{repo: repo, ttl: ttl, timeout: DefaultTimeout}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// TTL is how long a stored token lives.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Save makes token the current one for subject.
func (m *Manager) Save(ctx context.Context, subject, token string) error {
	ctx, cancel := m.detach(ctx)
	defer cancel()
	return unavailable("put", m.repo.Put(ctx, subject, token, m.ttl))
}

// Current returns the stored token, ErrNotFound, or ErrUnavailable.
func (m *Manager) Current(ctx context.Context, subject string) (string, error) {
	ctx, cancel := m.detach(ctx)
	defer cancel()
	token, err := m.repo.Get(ctx, subject)
	if errors.Is(err, ErrNotFound) {
		return "", ErrNotFound
	}
	return token, unavailable("get", err)
}

// Revoke removes the subject's entry. Removing a missing entry is not an error.
func (m *Manager) Revoke(ctx context.Context, subject string) error {
	ctx, cancel := m.detach(ctx)
	defer cancel()
	return unavailable("delete", m.repo.Delete(ctx, subject))
}

// Rotate replaces expected with next. ok is false when expected is no
// longer the current token.
func (m *Manager) Rotate(ctx context.Context, subject, expected, next string) (ok bool, err error) {
	ctx, cancel := m.detach(ctx)
	defer cancel()
	ok, err = m.repo.Swap(ctx, subject, expected, next, m.ttl)
	return ok, unavailable("swap", err)
}

func (m *Manager) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
}

func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
