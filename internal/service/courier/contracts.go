package courier

import (
	"context"

	"github.com/google/uuid"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/events"
	"courier-dispatch/internal/service/matcher"
)

// courierRepository defines storage operations required by the business layer.
// Update methods report false when no courier row matched.
type courierRepository interface {
	Create(ctx context.Context, c *domain.Courier) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Courier, error)
	Verify(ctx context.Context, id uuid.UUID) (bool, error)
	Deactivate(ctx context.Context, id uuid.UUID) (bool, error)
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) (bool, error)
	HasActiveAssignment(ctx context.Context, courierID uuid.UUID) (bool, error)
	// RecordLocation moves the courier and appends the update to its trail.
	RecordLocation(ctx context.Context, u domain.LocationUpdate) (bool, error)
}

type presenceCache interface {
	SetLocation(ctx context.Context, courierID uuid.UUID, at domain.Coordinate) error
}

type candidateFinder interface {
	Nearest(ctx context.Context, at domain.Coordinate, radiusKm float64) ([]matcher.Candidate, error)
}

type publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// Observer counts courier lifecycle events.
type Observer interface {
	CourierRegistered()
	CourierVerified()
	CourierDeactivated()
	LocationUpdated()
}
