// Package ratelimit provides keyed token-bucket limiting for inbound traffic.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether the next unit of work for key may proceed.
type Limiter interface {
	Allow(key string) bool
	// Forget drops any state held for key.
	Forget(key string)
}

// Clock provides current time.
type Clock interface {
	Now() time.Time
}

// RealClock is the default clock.
type RealClock struct{}

// Now returns current time.
func (RealClock) Now() time.Time { return time.Now() }

// Nop allows everything.
type Nop struct{}

// Allow always returns true.
func (Nop) Allow(string) bool { return true }

// Forget does nothing.
func (Nop) Forget(string) {}

// Config stores TokenBucket settings.
type Config struct {
	Rate       float64 // tokens per second
	Burst      int     // bucket capacity
	MaxBuckets int     // 0 means unbounded; new keys are refused once reached
}

// TokenBucket keeps one rate.Limiter per key.
// Keys are connection ids or client addresses; callers release them with Forget.
type TokenBucket struct {
	cfg     Config
	clock   Clock
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewTokenBucket creates a limiter with the given config and clock.
func NewTokenBucket(clock Clock, cfg Config) *TokenBucket {
	if clock == nil {
		clock = RealClock{}
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.MaxBuckets < 0 {
		cfg.MaxBuckets = 0
	}
	return &TokenBucket{
		cfg:     cfg,
		clock:   clock,
		buckets: make(map[string]*rate.Limiter),
	}
}

// PerWindow builds a limiter admitting limit events per window with a burst of limit.
func PerWindow(clock Clock, limit int, window time.Duration, maxBuckets int) *TokenBucket {
	if window <= 0 {
		window = time.Second
	}
	if limit <= 0 {
		limit = 1
	}
	return NewTokenBucket(clock, Config{
		Rate:       float64(limit) / window.Seconds(),
		Burst:      limit,
		MaxBuckets: maxBuckets,
	})
}

// Allow consumes one token for key if available.
func (l *TokenBucket) Allow(key string) bool {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.buckets[key]
	if !ok {
		if l.cfg.MaxBuckets > 0 && len(l.buckets) >= l.cfg.MaxBuckets && l.evictRefilled(now) == 0 {
			return false
		}
		lim = rate.NewLimiter(rate.Limit(l.cfg.Rate), l.cfg.Burst)
		l.buckets[key] = lim
	}
	return lim.AllowN(now, 1)
}

// evictRefilled drops limiters that are back at full burst; they hold no state worth keeping.
func (l *TokenBucket) evictRefilled(now time.Time) int {
	n := 0
	for k, lim := range l.buckets {
		if lim.TokensAt(now) >= float64(l.cfg.Burst) {
			delete(l.buckets, k)
			n++
		}
	}
	return n
}

// Forget drops the bucket for key.
func (l *TokenBucket) Forget(key string) {
	l.mu.Lock()
	delete(l.buckets, key)
	l.mu.Unlock()
}

// Len returns the number of tracked keys.
func (l *TokenBucket) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

var (
	_ Limiter = (*TokenBucket)(nil)
	_ Limiter = Nop{}
)
