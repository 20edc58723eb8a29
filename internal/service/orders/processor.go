// Package orders turns order lifecycle events into dispatch actions.
package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/service/dispatch"
)

// Processor processes orders events
type Processor struct {
	dispatch DispatchPort
	cancel   CancelPort
	logger   logx.Logger
	factory  *actionFactory
}

// NewProcessor creates a new orders.Processor
func NewProcessor(d DispatchPort, c CancelPort, logger logx.Logger) *Processor {
	if logger == nil {
		logger = logx.Nop()
	}
	p := &Processor{dispatch: d, cancel: c, logger: logger}
	p.factory = newActionFactory(p.onReady, p.onCanceled)
	return p
}

// Handle processes a single orders.Event. Events with unknown statuses or
// malformed order ids are skipped.
func (p *Processor) Handle(ctx context.Context, e Event) error {
	e = e.Normalized()
	fn, ok := p.factory.get(e.Status)
	if !ok {
		return nil
	}
	orderID, err := uuid.Parse(e.OrderID)
	if err != nil {
		p.logger.Warn("skip order event with malformed id",
			logx.String("order_id", e.OrderID),
			logx.String("status", e.Status),
		)
		return nil
	}
	return fn(ctx, orderID, e)
}

func (p *Processor) onReady(ctx context.Context, orderID uuid.UUID, _ Event) error {
	_, err := p.dispatch.AssignOrder(ctx, dispatch.Request{OrderID: orderID})
	switch {
	case errors.Is(err, apperr.ErrUnavailable):
		p.logger.Warn("no courier for order",
			logx.String("order_id", orderID.String()),
		)
		return nil
	case errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrNotFound):
		return nil
	}
	return err
}

func (p *Processor) onCanceled(ctx context.Context, orderID uuid.UUID, e Event) error {
	notes := "order " + e.Status
	_, err := p.cancel.CancelByOrder(ctx, orderID, &notes)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	return err
}
