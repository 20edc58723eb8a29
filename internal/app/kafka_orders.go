package app

import (
	"context"
	"errors"
	"time"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/service/orders"
	"courier-dispatch/internal/transport/kafka"
)

type ordersHandler interface {
	Handle(ctx context.Context, e orders.Event) error
}

// makeOrdersKafka bounds each order event by timeout. Invalid input can never
// succeed on redelivery, so it is marked permanent and the offset moves on.
func makeOrdersKafka(h ordersHandler, timeout time.Duration) func(context.Context, orders.Event) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return func(ctx context.Context, event orders.Event) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		err := h.Handle(ctx, event)
		if errors.Is(err, apperr.ErrInvalid) {
			return kafka.Permanent(err)
		}
		return err
	}
}
