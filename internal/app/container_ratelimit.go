package app

import (
	"courier-dispatch/internal/config"
	"courier-dispatch/internal/http/middleware/ratelimit"
	"courier-dispatch/internal/logx"
	limiter "courier-dispatch/internal/ratelimit"
	"courier-dispatch/internal/telemetry"
)

func newRateLimiter(cfg *config.Config) limiter.Limiter {
	rl := cfg.RateLimit
	if !rl.Enabled {
		return limiter.Nop{}
	}
	return limiter.NewTokenBucket(limiter.RealClock{}, limiter.Config{
		Rate:       rl.Rate,
		Burst:      rl.Burst,
		MaxBuckets: rl.MaxBuckets,
	})
}

func newRateLimitMiddleware(logger logx.Logger, m *telemetry.Metrics, l limiter.Limiter) *ratelimit.Middleware {
	return ratelimit.New(logger, m.RateLimitExceeded(), l)
}
