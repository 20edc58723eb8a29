package dispatchtx

import (
	"context"

	"github.com/google/uuid"

	"courier-dispatch/internal/domain"
)

// Repository is the dispatch store bound to one transaction.
// Lookups return (nil, nil) when nothing matches.
type Repository interface {
	// ReserveCourier flips is_available to false only if the courier is currently
	// available, verified and active. Reports whether the flip happened.
	ReserveCourier(ctx context.Context, courierID uuid.UUID) (bool, error)
	InsertAssignment(ctx context.Context, a *domain.Assignment) error

	GetAssignmentForUpdate(ctx context.Context, id uuid.UUID) (*domain.Assignment, error)
	ActiveAssignmentByOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*domain.Assignment, error)
	// UpdateAssignment persists status, timestamps, estimates, notes and proof of delivery.
	UpdateAssignment(ctx context.Context, a *domain.Assignment) error

	// CompleteDelivery counts a successful delivery, credits earnings, folds
	// minutes into the running average and releases the courier.
	CompleteDelivery(ctx context.Context, courierID uuid.UUID, earnings float64, minutes *int) error
	// CloseUnsuccessful counts an unsuccessful delivery and releases the courier.
	CloseUnsuccessful(ctx context.Context, courierID uuid.UUID) error
}

// Runner is a transaction runner
type Runner interface {
	WithTx(ctx context.Context, fn func(tx Repository) error) error
}
