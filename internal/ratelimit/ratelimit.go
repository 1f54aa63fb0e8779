package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Limiter interface {
	Allow(key string) (bool, time.Duration)
}

// refillTime is how long an empty bucket takes to fill up again. A bucket
// idle for longer is indistinguishable from a new one.
const refillTime = time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per key. Buckets refill at perMinute
// tokens per minute with a burst of perMinute. Buckets idle for longer than
// the idle TTL are dropped.
type MemoryLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	perMinute int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

type Option func(*MemoryLimiter)

func WithNowTime(now func() time.Time) Option {
	return func(m *MemoryLimiter) {
		m.now = now
	}
}

// WithIdleTTL sets how long an unused bucket is kept. Values below the
// refill time are raised to it so eviction never resets a draining bucket.
func WithIdleTTL(ttl time.Duration) Option {
	return func(m *MemoryLimiter) {
		m.idleTTL = max(ttl, refillTime)
	}
}

func NewMemory(perMinute int, options ...Option) *MemoryLimiter {
	m := &MemoryLimiter{
		buckets:   make(map[string]*bucket),
		perMinute: perMinute,
		idleTTL:   10 * time.Minute,
		now:       time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	m.lastSweep = m.now()
	return m
}

// Allow consumes a token for key. When none is left it reports how long the
// caller should wait before the next attempt.
func (m *MemoryLimiter) Allow(key string) (bool, time.Duration) {
	if m.perMinute <= 0 {
		return true, 0
	}

	now := m.now()
	m.mu.Lock()
	if now.Sub(m.lastSweep) >= m.idleTTL {
		m.sweep(now)
	}
	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(refillTime/time.Duration(m.perMinute)), m.perMinute)}
		m.buckets[key] = b
	}
	b.lastSeen = now
	m.mu.Unlock()

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, refillTime
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Len returns the number of tracked keys.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

// sweep must be called with mu held.
func (m *MemoryLimiter) sweep(now time.Time) {
	for key, b := range m.buckets {
		if now.Sub(b.lastSeen) >= m.idleTTL {
			delete(m.buckets, key)
		}
	}
	m.lastSweep = now
}
