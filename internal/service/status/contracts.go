//go:generate mockgen -source=contracts.go -destination=mocks_test.go -package=status_test

package status

import (
	"context"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/events"
)

// Publisher delivers domain events to live connections.
type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// Observer is notified after a transition is committed.
type Observer interface {
	StatusChanged(a domain.Assignment)
}
