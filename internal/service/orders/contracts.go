//go:generate mockgen -source=contracts.go -destination=orders_mocks_test.go -package=orders_test

package orders

import (
	"context"

	"github.com/google/uuid"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/service/dispatch"
)

// DispatchPort abstracts the dispatch engine operation needed by Processor.
type DispatchPort interface {
	AssignOrder(ctx context.Context, req dispatch.Request) (domain.AssignResult, error)
}

// CancelPort abstracts the status machine operation needed by Processor.
type CancelPort interface {
	CancelByOrder(ctx context.Context, orderID uuid.UUID, notes *string) (domain.Assignment, error)
}
