package orders

import (
	"strings"
	"time"
)

// Statuses on the orders topic that trigger dispatch work.
const (
	StatusCreated  = "created"
	StatusReady    = "ready"
	StatusCanceled = "canceled"
	StatusDeleted  = "deleted"
)

// Event is an order lifecycle change published by the ordering system.
type Event struct {
	OrderID    string
	Status     string
	OccurredAt time.Time
}

// Normalized returns e with the order id trimmed and the status lower-cased.
func (e Event) Normalized() Event {
	e.OrderID = strings.TrimSpace(e.OrderID)
	e.Status = strings.ToLower(strings.TrimSpace(e.Status))
	return e
}
