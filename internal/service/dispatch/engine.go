// Package dispatch assigns orders to couriers.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/events"
	"courier-dispatch/internal/geo"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/ports/dispatchtx"
)

// ErrNoCourierAvailable is returned when no candidate could be reserved.
var ErrNoCourierAvailable = fmt.Errorf("no courier available: %w", apperr.ErrUnavailable)

// Dispatch timing defaults.
const (
	DefaultRadiusKm   = 10.0
	pickupLead        = 10 * time.Minute
	deliveryAfterPick = 25 * time.Minute
	defaultOpTimeout  = 5 * time.Second
)

// Request asks for an order to be assigned.
type Request struct {
	OrderID            uuid.UUID
	PreferredCourierID *uuid.UUID
	MaxDistanceKm      *float64
}

// Config holds engine settings.
type Config struct {
	DefaultRadiusKm  float64
	OperationTimeout time.Duration
}

// Deps are the engine collaborators. Observer is optional.
type Deps struct {
	Tx       dispatchtx.Runner
	Orders   OrderLookup
	Couriers CourierReader
	Finder   CandidateFinder
	Events   Publisher
	Observer Observer
	Logger   logx.Logger
}

// Engine creates assignments and reserves couriers.
type Engine struct {
	tx       dispatchtx.Runner
	orders   OrderLookup
	couriers CourierReader
	finder   CandidateFinder
	events   Publisher
	observer Observer
	logger   logx.Logger

	radiusKm         float64
	operationTimeout time.Duration
	now              func() time.Time
}

// NewEngine creates an Engine.
func NewEngine(d Deps, cfg Config) *Engine {
	if cfg.DefaultRadiusKm <= 0 {
		cfg.DefaultRadiusKm = DefaultRadiusKm
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = defaultOpTimeout
	}
	if d.Logger == nil {
		d.Logger = logx.Nop()
	}
	return &Engine{
		tx:               d.Tx,
		orders:           d.Orders,
		couriers:         d.Couriers,
		finder:           d.Finder,
		events:           d.Events,
		observer:         d.Observer,
		logger:           d.Logger,
		radiusKm:         cfg.DefaultRadiusKm,
		operationTimeout: cfg.OperationTimeout,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.operationTimeout)
}

// candidate is a courier the engine will try to reserve.
type candidate struct {
	courier    domain.Courier
	distanceKm *float64
}

// errLostRace marks a candidate whose conditional reserve did not apply.
var errLostRace = errors.New("courier reserved concurrently")

// AssignOrder picks a courier for the order, reserves it and creates the assignment
// in one transaction. Candidates are tried nearest first; a candidate that was
// reserved concurrently is skipped in favour of the next one.
func (e *Engine) AssignOrder(ctx context.Context, req Request) (domain.AssignResult, error) {
	if req.OrderID == uuid.Nil {
		return domain.AssignResult{}, fmt.Errorf("order id: %w", apperr.ErrInvalid)
	}
	radius := e.radiusKm
	if req.MaxDistanceKm != nil {
		if *req.MaxDistanceKm <= 0 {
			return domain.AssignResult{}, fmt.Errorf("max distance: %w", apperr.ErrInvalid)
		}
		radius = *req.MaxDistanceKm
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	started := e.now()

	order, err := e.orders.GetOrderDetails(ctx, req.OrderID)
	if err != nil {
		return domain.AssignResult{}, fmt.Errorf("order %s: %w", req.OrderID, err)
	}
	pickup, ok := domain.AddressPoint(order.PickupAddress)
	if !ok {
		return domain.AssignResult{}, fmt.Errorf("pickup address of order %s has no coordinates: %w", req.OrderID, apperr.ErrInvalid)
	}

	tried := make(map[uuid.UUID]bool)
	if req.PreferredCourierID != nil {
		c, err := e.preferred(ctx, *req.PreferredCourierID, pickup)
		if err != nil {
			return domain.AssignResult{}, err
		}
		if c != nil {
			tried[c.courier.ID] = true
			res, err := e.tryAssign(ctx, order, pickup, *c)
			if err == nil {
				return e.assigned(ctx, res, started), nil
			}
			if !errors.Is(err, errLostRace) {
				return domain.AssignResult{}, err
			}
		}
	}

	ranked, err := e.finder.Nearest(ctx, pickup, radius)
	if err != nil {
		return domain.AssignResult{}, fmt.Errorf("find couriers: %w", err)
	}
	for _, rc := range ranked {
		if tried[rc.Courier.ID] {
			continue
		}
		d := rc.DistanceKm
		res, err := e.tryAssign(ctx, order, pickup, candidate{courier: rc.Courier, distanceKm: &d})
		if err == nil {
			return e.assigned(ctx, res, started), nil
		}
		if !errors.Is(err, errLostRace) {
			return domain.AssignResult{}, err
		}
		e.logger.Debug("candidate lost reservation race",
			logx.String("order_id", req.OrderID.String()),
			logx.String("courier_id", rc.Courier.ID.String()),
		)
	}

	return domain.AssignResult{}, ErrNoCourierAvailable
}

// preferred returns the preferred courier when it can take the order now.
func (e *Engine) preferred(ctx context.Context, id uuid.UUID, pickup domain.Coordinate) (*candidate, error) {
	c, err := e.couriers.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get courier %s: %w: %w", id, apperr.ErrInternal, err)
	}
	if c == nil || !c.Dispatchable() {
		return nil, nil
	}
	out := &candidate{courier: *c}
	if c.Location != nil {
		d := geo.DistanceKm(*c.Location, pickup)
		out.distanceKm = &d
	}
	return out, nil
}

func (e *Engine) tryAssign(ctx context.Context, order domain.OrderDetails, pickup domain.Coordinate, c candidate) (domain.AssignResult, error) {
	now := e.now()
	estPickup := now.Add(pickupLead)
	estDelivery := estPickup.Add(deliveryAfterPick)

	a := domain.Assignment{
		ID:                  uuid.New(),
		OrderID:             order.OrderID,
		CourierID:           c.courier.ID,
		RestaurantID:        order.RestaurantID,
		CustomerID:          order.CustomerID,
		PickupAddress:       order.PickupAddress,
		DeliveryAddress:     order.DeliveryAddress,
		Status:              domain.StatusAssigned,
		AssignedAt:          now,
		EstimatedPickupAt:   &estPickup,
		EstimatedDeliveryAt: &estDelivery,
		DeliveryFee:         order.DeliveryFee,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if drop, ok := domain.AddressPoint(order.DeliveryAddress); ok {
		d := geo.DistanceKm(pickup, drop)
		a.DistanceKm = &d
	}

	err := e.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
		reserved, err := tx.ReserveCourier(ctx, c.courier.ID)
		if err != nil {
			return fmt.Errorf("reserve courier %s: %w: %w", c.courier.ID, apperr.ErrInternal, err)
		}
		if !reserved {
			return errLostRace
		}
		if err := tx.InsertAssignment(ctx, &a); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				return fmt.Errorf("order %s already assigned: %w", order.OrderID, err)
			}
			return fmt.Errorf("insert assignment: %w: %w", apperr.ErrInternal, err)
		}
		return nil
	})
	if err != nil {
		return domain.AssignResult{}, err
	}

	return domain.AssignResult{
		Assignment:         a,
		VehicleType:        c.courier.VehicleType,
		DistanceToPickupKm: c.distanceKm,
	}, nil
}

// assigned runs the best-effort follow-ups of a committed assignment.
func (e *Engine) assigned(ctx context.Context, res domain.AssignResult, started time.Time) domain.AssignResult {
	a := res.Assignment
	if err := e.events.Publish(ctx, events.NewOrderAssigned(a)); err != nil {
		e.logger.Warn("publish order assigned failed",
			logx.String("assignment_id", a.ID.String()),
			logx.Err(err),
		)
	}
	if e.observer != nil {
		e.observer.Assigned(a, res.VehicleType, e.now().Sub(started))
	}

	e.logger.Info("courier assigned",
		logx.String("event", "courier_assigned"),
		logx.String("assignment_id", a.ID.String()),
		logx.String("order_id", a.OrderID.String()),
		logx.String("courier_id", a.CourierID.String()),
		logx.String("vehicle_type", string(res.VehicleType)),
		logx.Time("estimated_delivery_at", *a.EstimatedDeliveryAt),
	)
	return res
}
