package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"courier-dispatch/internal/service/orders"
)

// orderEventWire is the JSON shape of a record on the orders topic.
type orderEventWire struct {
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// DecodeOrderEvent parses an orders-topic record. Malformed payloads and
// records without an order id are permanent failures.
func DecodeOrderEvent(rec Record) (orders.Event, error) {
	var w orderEventWire
	if err := json.Unmarshal(rec.Value, &w); err != nil {
		return orders.Event{}, Permanent(fmt.Errorf("decode order event: %w", err))
	}
	ev := orders.Event{
		OrderID:    w.OrderID,
		Status:     w.Status,
		OccurredAt: w.CreatedAt,
	}.Normalized()
	if ev.OrderID == "" {
		return orders.Event{}, Permanent(errors.New("order event without order_id"))
	}
	return ev, nil
}

// OrderEvents adapts an order event handler to a RecordFunc.
func OrderEvents(h func(context.Context, orders.Event) error) RecordFunc {
	return func(ctx context.Context, rec Record) error {
		ev, err := DecodeOrderEvent(rec)
		if err != nil {
			return err
		}
		return h(ctx, ev)
	}
}
