// Package retry holds the bounded exponential retry policy shared by outbound calls.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config bounds a retry loop.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Attempts returns MaxAttempts, at least one.
func (c Config) Attempts() int {
	if c.MaxAttempts < 1 {
		return 1
	}
	return c.MaxAttempts
}

// Policy is base doubled after every failed attempt, capped at MaxDelay, without jitter.
func (c Config) Policy() backoff.BackOff {
	maxDelay := c.MaxDelay
	if maxDelay < c.BaseDelay {
		maxDelay = c.BaseDelay
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.BaseDelay
	b.MaxInterval = maxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(c.Attempts()-1))
}

// Permanent stops the retry loop; Do returns err unwrapped.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Notify is called with the failure and the upcoming wait before each retry.
type Notify func(err error, delay time.Duration)

// Runner runs operations under a Config. NewTimer is swapped in tests.
type Runner struct {
	Config   Config
	NewTimer func() backoff.Timer
}

// Do runs op until it succeeds, returns a Permanent error, the attempts run out
// or ctx ends. The last operation error is returned, or ctx.Err() when the wait was cut short.
func (r Runner) Do(ctx context.Context, op func() error, notify Notify) error {
	policy := backoff.WithContext(r.Config.Policy(), ctx)
	var n backoff.Notify
	if notify != nil {
		n = backoff.Notify(notify)
	}
	if r.NewTimer == nil {
		return backoff.RetryNotify(op, policy, n)
	}
	return backoff.RetryNotifyWithTimer(op, policy, n, r.NewTimer())
}
