package status

import "time"

// SetClock replaces the machine clock.
func SetClock(m *Machine, now func() time.Time) { m.now = now }
