// Package ratelimit provides a keyed token-bucket limiter that reports the
// limit, remaining budget and reset time of every decision.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const defaultMaxKeys = 10000

// Decision is the outcome of one Allow call.
// Reset is when the next request from the same key will be admitted.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Limiter admits up to limit requests per window for each key. Budgets refill
// continuously (1 token every window/limit). Keys idle for more than a window are
// forgotten, which is equivalent to a full bucket.
type Limiter struct {
	mu       sync.Mutex
	limit    int
	every    time.Duration
	limiters *expirable.LRU[string, *rate.Limiter]
	now      func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a limiter allowing limit requests per window per key.
// limit and window must be positive; maxKeys <= 0 uses 10000.
func New(limit int, window time.Duration, maxKeys int, opts ...Option) *Limiter {
	if maxKeys <= 0 {
		maxKeys = defaultMaxKeys
	}

	l := &Limiter{
		limit:    limit,
		every:    window / time.Duration(limit),
		limiters: expirable.NewLRU[string, *rate.Limiter](maxKeys, nil, window),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Limit returns the configured number of requests per window.
func (l *Limiter) Limit() int {
	return l.limit
}

// Allow consumes one token for key if available.
func (l *Limiter) Allow(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	lim, ok := l.limiters.Get(key)
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.every), l.limit)
	}

	// Re-adding refreshes the idle TTL.
	l.limiters.Add(key, lim)

	allowed := lim.AllowN(now, 1)
	tokens := lim.TokensAt(now)

	remaining := int(math.Floor(tokens))
	if remaining < 0 {
		remaining = 0
	}

	reset := now
	if tokens < 1 {
		missing := 1 - tokens
		reset = now.Add(time.Duration(math.Ceil(missing * float64(l.every))))
	}

	return Decision{
		Allowed:   allowed,
		Limit:     l.limit,
		Remaining: remaining,
		Reset:     reset,
	}
}
