package refreshrepofake

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-blog-server/token/refresh"
)

var _ refresh.Repo = (*FakeRefreshTokenRepo)(nil)

type entry struct {
	token     string
	expiresAt time.Time
}

// FakeRefreshTokenRepo is an in-memory refresh.Repo with TTL expiry.
type FakeRefreshTokenRepo struct {
	tokens map[string]entry
	lock   sync.RWMutex
	now    func() time.Time
}

func NewFakeRefreshTokenRepo(now func() time.Time) *FakeRefreshTokenRepo {
	if now == nil {
		now = time.Now
	}
	return &FakeRefreshTokenRepo{
		tokens: make(map[string]entry),
		now:    now,
	}
}

func (tr *FakeRefreshTokenRepo) Put(_ context.Context, subject, token string, ttl time.Duration) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	tr.tokens[subject] = entry{token: token, expiresAt: tr.now().Add(ttl)}
	return nil
}

func (tr *FakeRefreshTokenRepo) Get(_ context.Context, subject string) (string, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	e, ok := tr.tokens[subject]
	if !ok || !tr.now().Before(e.expiresAt) {
		return "", refresh.ErrNotFound
	}
	return e.token, nil
}

func (tr *FakeRefreshTokenRepo) Delete(_ context.Context, subject string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	delete(tr.tokens, subject)
	return nil
}

func (tr *FakeRefreshTokenRepo) Swap(_ context.Context, subject, expected, next string, ttl time.Duration) (bool, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	e, ok := tr.tokens[subject]
	if !ok || !tr.now().Before(e.expiresAt) || e.token != expected {
		return false, nil
	}
	tr.tokens[subject] = entry{token: next, expiresAt: tr.now().Add(ttl)}
	return true, nil
}

// Len counts live entries.
func (tr *FakeRefreshTokenRepo) Len() int {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	n := 0
	for _, e := range tr.tokens {
		if tr.now().Before(e.expiresAt) {
			n++
		}
	}
	return n
}
