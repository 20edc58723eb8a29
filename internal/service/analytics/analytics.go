// Package analytics builds the realtime admin snapshot.
package analytics

import (
	"context"
	"fmt"
	"time"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
)

// Store aggregates persisted assignments and couriers. Figures about completed
// deliveries cover everything delivered at or after since.
type Store interface {
	Analytics(ctx context.Context, since time.Time) (domain.Analytics, error)
}

// Connections reports the number of open live connections.
type Connections interface {
	Count() int
}

// Service produces analytics snapshots.
type Service struct {
	store            Store
	conns            Connections
	operationTimeout time.Duration
	now              func() time.Time
}

// NewService creates a Service. conns may be nil.
func NewService(store Store, conns Connections, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Service{
		store:            store,
		conns:            conns,
		operationTimeout: timeout,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// Snapshot returns the current figures; "today" starts at UTC midnight.
func (s *Service) Snapshot(ctx context.Context) (domain.Analytics, error) {
	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()

	out, err := s.store.Analytics(ctx, startOfDay(s.now()))
	if err != nil {
		return domain.Analytics{}, fmt.Errorf("analytics: %w: %w", apperr.ErrInternal, err)
	}
	if s.conns != nil {
		out.LiveConnections = s.conns.Count()
	}
	return out, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
