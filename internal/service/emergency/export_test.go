package emergency

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// SetTimer replaces the timer used between broadcast retries.
func SetTimer(s *Service, fn func() backoff.Timer) { s.retry.NewTimer = fn }

// SetClock replaces the service clock.
func SetClock(s *Service, now func() time.Time) { s.now = now }
