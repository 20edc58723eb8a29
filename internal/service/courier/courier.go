// Package courier manages courier registration, shifts and positions.
package courier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/events"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/service/matcher"
)

// Deps are the service collaborators. Presence, Events and Observer are optional.
type Deps struct {
	Repo     courierRepository
	Finder   candidateFinder
	Presence presenceCache
	Events   publisher
	Observer Observer
	Logger   logx.Logger
}

// Service coordinates courier business logic and orchestrates repository calls.
type Service struct {
	repo     courierRepository
	finder   candidateFinder
	presence presenceCache
	events   publisher
	observer Observer
	logger   logx.Logger

	operationTimeout time.Duration
	now              func() time.Time
}

// NewService creates and configures a courier Service.
func NewService(d Deps, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if d.Logger == nil {
		d.Logger = logx.Nop()
	}
	return &Service{
		repo:             d.Repo,
		finder:           d.Finder,
		presence:         d.Presence,
		events:           d.Events,
		observer:         d.Observer,
		logger:           d.Logger,
		operationTimeout: timeout,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

// Register creates an active, unverified and unavailable courier.
func (s *Service) Register(ctx context.Context, n domain.NewCourier) (domain.Courier, error) {
	if !n.Validate() {
		return domain.Courier{}, apperr.ErrInvalid
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.now()
	c := domain.Courier{
		ID:            uuid.New(),
		Name:          strings.TrimSpace(n.Name),
		Phone:         n.Phone,
		Email:         n.Email,
		VehicleType:   n.VehicleType,
		VehicleNumber: strings.TrimSpace(n.VehicleNumber),
		IsActive:      true,
		Stats:         domain.CourierStats{Rating: 5},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, &c); err != nil {
		return domain.Courier{}, err
	}
	if s.observer != nil {
		s.observer.CourierRegistered()
	}
	s.logger.Info("courier registered",
		logx.String("event", "courier_registered"),
		logx.String("courier_id", c.ID.String()),
		logx.String("vehicle_type", string(c.VehicleType)),
	)
	return c, nil
}

// Get retrieves a courier by its ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Courier, error) {
	if id == uuid.Nil {
		return nil, apperr.ErrInvalid
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.ErrNotFound
	}
	return c, nil
}

// Verify marks the courier verified. It becomes available for dispatch unless
// it is inactive or busy with an open assignment.
func (s *Service) Verify(ctx context.Context, id uuid.UUID) error {
	if err := s.toggle(ctx, id, s.repo.Verify); err != nil {
		return err
	}
	if s.observer != nil {
		s.observer.CourierVerified()
	}
	s.logger.Info("courier verified",
		logx.String("event", "courier_verified"),
		logx.String("courier_id", id.String()),
	)
	return nil
}

// Deactivate soft-deletes the courier: it becomes inactive and unavailable.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.toggle(ctx, id, s.repo.Deactivate); err != nil {
		return err
	}
	if s.observer != nil {
		s.observer.CourierDeactivated()
	}
	s.logger.Info("courier deactivated",
		logx.String("event", "courier_deactivated"),
		logx.String("courier_id", id.String()),
	)
	return nil
}

func (s *Service) toggle(ctx context.Context, id uuid.UUID, fn func(context.Context, uuid.UUID) (bool, error)) error {
	if id == uuid.Nil {
		return apperr.ErrInvalid
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ok, err := fn(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrNotFound
	}
	return nil
}

// SetAvailability starts or ends a courier shift. Going available requires a
// verified, active courier with no open assignment.
func (s *Service) SetAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if available {
		if !c.IsVerified || !c.IsActive {
			return fmt.Errorf("courier %s is not verified or inactive: %w", id, apperr.ErrConflict)
		}
		busy, err := s.repo.HasActiveAssignment(ctx, id)
		if err != nil {
			return err
		}
		if busy {
			return fmt.Errorf("courier %s has an open assignment: %w", id, apperr.ErrConflict)
		}
	}

	ok, err := s.repo.SetAvailability(ctx, id, available)
	if err != nil {
		return err
	}
	if !ok {
		if available {
			return fmt.Errorf("courier %s can no longer start a shift: %w", id, apperr.ErrConflict)
		}
		return apperr.ErrNotFound
	}
	s.logger.Info("courier availability changed",
		logx.String("event", "availability_changed"),
		logx.String("courier_id", id.String()),
		logx.Any("available", available),
	)
	return nil
}

// Nearby ranks dispatchable couriers around a point.
func (s *Service) Nearby(ctx context.Context, at domain.Coordinate, radiusKm float64) ([]matcher.Candidate, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.finder.Nearest(ctx, at, radiusKm)
}

// UpdateLocation records a new courier position. The row update and trail
// append must succeed; the presence cache and the broadcast are best-effort.
func (s *Service) UpdateLocation(ctx context.Context, u domain.LocationUpdate) error {
	if u.CourierID == uuid.Nil || !u.Point.Valid() {
		return apperr.ErrInvalid
	}
	if u.Heading != nil && (*u.Heading < 0 || *u.Heading >= 360) {
		return apperr.ErrInvalid
	}
	if u.Speed != nil && *u.Speed < 0 {
		return apperr.ErrInvalid
	}
	if u.Timestamp.IsZero() {
		u.Timestamp = s.now()
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ok, err := s.repo.RecordLocation(ctx, u)
	if err != nil {
		return fmt.Errorf("record location: %w: %w", apperr.ErrInternal, err)
	}
	if !ok {
		return apperr.ErrNotFound
	}

	if s.presence != nil {
		if err := s.presence.SetLocation(ctx, u.CourierID, u.Point); err != nil {
			s.logger.Warn("presence cache update failed",
				logx.String("courier_id", u.CourierID.String()),
				logx.Err(err),
			)
		}
	}
	if s.events != nil {
		if err := s.events.Publish(ctx, events.NewLocationUpdated(u)); err != nil {
			s.logger.Warn("publish location update failed",
				logx.String("courier_id", u.CourierID.String()),
				logx.Err(err),
			)
		}
	}
	if s.observer != nil {
		s.observer.LocationUpdated()
	}
	s.logger.Debug("courier location updated",
		logx.String("event", "location_update"),
		logx.String("courier_id", u.CourierID.String()),
	)
	return nil
}
