// Package status validates and applies assignment status transitions.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/events"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/ports/dispatchtx"
)

// ErrAssignmentNotFound is returned when no stored assignment matches.
var ErrAssignmentNotFound = fmt.Errorf("assignment not found: %w", apperr.ErrNotFound)

// ErrTerminal is returned for any transition attempted from a terminal status.
var ErrTerminal = fmt.Errorf("assignment is terminal: %w: %w", apperr.ErrInvalidTransition, apperr.ErrConflict)

// fallbackDistanceKm is used for arrival estimates when the route length is unknown.
const fallbackDistanceKm = 5.0

// Machine applies status transitions.
type Machine struct {
	tx               dispatchtx.Runner
	events           Publisher
	observer         Observer
	logger           logx.Logger
	operationTimeout time.Duration
	now              func() time.Time
}

// NewMachine creates a Machine. observer may be nil.
func NewMachine(tx dispatchtx.Runner, pub Publisher, observer Observer, timeout time.Duration, logger logx.Logger) *Machine {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Machine{
		tx:               tx,
		events:           pub,
		observer:         observer,
		logger:           logger,
		operationTimeout: timeout,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (m *Machine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.operationTimeout)
}

// transition is one requested move.
type transition struct {
	target domain.DeliveryStatus
	notes  *string
	proof  json.RawMessage
	actor  string
}

// loader finds the locked assignment inside a transaction.
type loader func(ctx context.Context, tx dispatchtx.Repository) (*domain.Assignment, error)

// UpdateStatus applies a courier-reported transition. The assignment must belong
// to ch.CourierID.
func (m *Machine) UpdateStatus(ctx context.Context, ch domain.StatusChange) (domain.Assignment, error) {
	if ch.AssignmentID == uuid.Nil || ch.CourierID == uuid.Nil || !ch.Status.Valid() {
		return domain.Assignment{}, apperr.ErrInvalid
	}
	load := func(ctx context.Context, tx dispatchtx.Repository) (*domain.Assignment, error) {
		a, err := tx.GetAssignmentForUpdate(ctx, ch.AssignmentID)
		if err != nil {
			return nil, err
		}
		if a == nil || a.CourierID != ch.CourierID {
			return nil, nil
		}
		return a, nil
	}
	return m.apply(ctx, load, transition{
		target: ch.Status,
		notes:  ch.Notes,
		proof:  ch.ProofOfDelivery,
		actor:  "courier",
	})
}

// Cancel moves an assignment to Cancelled or Failed on behalf of an administrator.
func (m *Machine) Cancel(ctx context.Context, assignmentID uuid.UUID, target domain.DeliveryStatus, notes *string) (domain.Assignment, error) {
	if assignmentID == uuid.Nil || (target != domain.StatusCancelled && target != domain.StatusFailed) {
		return domain.Assignment{}, apperr.ErrInvalid
	}
	load := func(ctx context.Context, tx dispatchtx.Repository) (*domain.Assignment, error) {
		return tx.GetAssignmentForUpdate(ctx, assignmentID)
	}
	return m.apply(ctx, load, transition{target: target, notes: notes, actor: "admin"})
}

// CancelByOrder cancels the open assignment of an order.
func (m *Machine) CancelByOrder(ctx context.Context, orderID uuid.UUID, notes *string) (domain.Assignment, error) {
	if orderID == uuid.Nil {
		return domain.Assignment{}, apperr.ErrInvalid
	}
	load := func(ctx context.Context, tx dispatchtx.Repository) (*domain.Assignment, error) {
		return tx.ActiveAssignmentByOrderForUpdate(ctx, orderID)
	}
	return m.apply(ctx, load, transition{target: domain.StatusCancelled, notes: notes, actor: "order"})
}

func (m *Machine) apply(ctx context.Context, load loader, t transition) (domain.Assignment, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	var (
		out  domain.Assignment
		from domain.DeliveryStatus
		eta  *time.Time
	)
	err := m.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
		a, err := load(ctx, tx)
		if err != nil {
			return fmt.Errorf("load assignment: %w: %w", apperr.ErrInternal, err)
		}
		if a == nil {
			return ErrAssignmentNotFound
		}
		from = a.Status
		if from.Terminal() {
			return fmt.Errorf("%s -> %s: %w", from, t.target, ErrTerminal)
		}
		if !domain.CanTransition(from, t.target) {
			return fmt.Errorf("%s -> %s: %w", from, t.target, apperr.ErrInvalidTransition)
		}

		now := m.now()
		eta = stamp(a, t, now)

		if err := tx.UpdateAssignment(ctx, a); err != nil {
			return fmt.Errorf("update assignment: %w: %w", apperr.ErrInternal, err)
		}
		if err := settle(ctx, tx, a, now); err != nil {
			return fmt.Errorf("settle courier %s: %w: %w", a.CourierID, apperr.ErrInternal, err)
		}
		out = *a
		return nil
	})
	if err != nil {
		return domain.Assignment{}, err
	}

	ev := events.StatusUpdated{
		AssignmentID:     out.ID,
		CourierID:        out.CourierID,
		OrderID:          out.OrderID,
		Status:           out.Status,
		EstimatedArrival: eta,
		Notes:            out.Notes,
	}
	if err := m.events.Publish(ctx, ev); err != nil {
		m.logger.Warn("publish status update failed",
			logx.String("assignment_id", out.ID.String()),
			logx.Err(err),
		)
	}
	if m.observer != nil {
		m.observer.StatusChanged(out)
	}

	m.logger.Info("assignment status updated",
		logx.String("event", "status_updated"),
		logx.String("assignment_id", out.ID.String()),
		logx.String("courier_id", out.CourierID.String()),
		logx.String("from", string(from)),
		logx.String("to", string(out.Status)),
		logx.String("actor", t.actor),
	)
	return out, nil
}

// stamp applies the transition to a and returns the arrival estimate, if any.
func stamp(a *domain.Assignment, t transition, now time.Time) *time.Time {
	a.Status = t.target
	a.UpdatedAt = now
	if t.notes != nil {
		a.Notes = t.notes
	}
	if len(t.proof) > 0 {
		a.ProofOfDelivery = t.proof
	}

	var eta *time.Time
	switch t.target {
	case domain.StatusAccepted:
		a.AcceptedAt = &now
	case domain.StatusPickedUp:
		a.PickedUpAt = &now
		eta = arrival(now, a.DistanceKm, 2)
	case domain.StatusEnRouteToCustomer:
		eta = arrival(now, a.DistanceKm, 1)
	case domain.StatusDelivered:
		a.DeliveredAt = &now
	}
	if eta != nil {
		a.EstimatedDeliveryAt = eta
	}
	return eta
}

// arrival is now plus minutesPerKm whole minutes for every whole kilometre.
func arrival(now time.Time, distanceKm *float64, minutesPerKm int) *time.Time {
	d := fallbackDistanceKm
	if distanceKm != nil {
		d = *distanceKm
	}
	at := now.Add(time.Duration(int(math.Floor(d))*minutesPerKm) * time.Minute)
	return &at
}

// settle applies the courier side effects of terminal statuses.
func settle(ctx context.Context, tx dispatchtx.Repository, a *domain.Assignment, now time.Time) error {
	switch a.Status {
	case domain.StatusDelivered:
		return tx.CompleteDelivery(ctx, a.CourierID, a.Earnings(), deliveryMinutes(a, now))
	case domain.StatusCancelled, domain.StatusFailed:
		return tx.CloseUnsuccessful(ctx, a.CourierID)
	default:
		return nil
	}
}

// deliveryMinutes is pickup to drop-off time, or assignment to drop-off without a pickup stamp.
func deliveryMinutes(a *domain.Assignment, now time.Time) *int {
	start := a.AssignedAt
	if a.PickedUpAt != nil {
		start = *a.PickedUpAt
	}
	if start.IsZero() {
		return nil
	}
	m := int(now.Sub(start).Minutes())
	return &m
}
