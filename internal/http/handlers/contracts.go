package handlers

import (
	"context"

	"github.com/google/uuid"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/realtime"
	"courier-dispatch/internal/service/dispatch"
	"courier-dispatch/internal/service/matcher"
)

// CourierUsecase is the courier service as seen by HTTP.
type CourierUsecase interface {
	Register(ctx context.Context, n domain.NewCourier) (domain.Courier, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Courier, error)
	Verify(ctx context.Context, id uuid.UUID) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) error
	UpdateLocation(ctx context.Context, u domain.LocationUpdate) error
	Nearby(ctx context.Context, at domain.Coordinate, radiusKm float64) ([]matcher.Candidate, error)
}

// DispatchUsecase creates assignments.
type DispatchUsecase interface {
	AssignOrder(ctx context.Context, req dispatch.Request) (domain.AssignResult, error)
}

// StatusUsecase moves assignments through their lifecycle.
type StatusUsecase interface {
	UpdateStatus(ctx context.Context, ch domain.StatusChange) (domain.Assignment, error)
	Cancel(ctx context.Context, assignmentID uuid.UUID, target domain.DeliveryStatus, notes *string) (domain.Assignment, error)
}

// AnalyticsUsecase produces the admin snapshot.
type AnalyticsUsecase interface {
	Snapshot(ctx context.Context) (domain.Analytics, error)
}

// ConnectionServer serves and counts live connections.
type ConnectionServer interface {
	Serve(ctx context.Context, conn realtime.Conn, id domain.Identity) error
	Count() int
	CountByRole() map[domain.Role]int
}
