//go:generate mockgen -source=contracts.go -destination=mocks_test.go -package=dispatch_test

package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/events"
	"courier-dispatch/internal/service/matcher"
)

// OrderLookup resolves the dispatch facts of an order.
type OrderLookup interface {
	GetOrderDetails(ctx context.Context, orderID uuid.UUID) (domain.OrderDetails, error)
}

// CourierReader loads a courier; (nil, nil) when unknown.
type CourierReader interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Courier, error)
}

// CandidateFinder ranks couriers near a point.
type CandidateFinder interface {
	Nearest(ctx context.Context, at domain.Coordinate, radiusKm float64) ([]matcher.Candidate, error)
}

// Publisher delivers domain events to live connections.
type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// Observer is notified after an assignment is committed.
type Observer interface {
	Assigned(a domain.Assignment, vehicle domain.VehicleType, took time.Duration)
}
