//go:generate mockgen -source=contracts.go -destination=mocks_test.go -package=emergency_test

package emergency

import (
	"context"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/events"
)

// Store persists emergency reports.
type Store interface {
	SaveEmergency(ctx context.Context, e domain.Emergency) error
}

// Publisher delivers domain events to live connections.
type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// Escalator hands an undeliverable alert to an out-of-band channel.
type Escalator interface {
	Write(ctx context.Context, key, value []byte) error
}

// Observer counts raised alerts.
type Observer interface {
	EmergencyRaised()
}
