// Package emergency handles courier distress reports.
package emergency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/events"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/retry"
)

// DefaultRetry is used when no retry policy is configured.
var DefaultRetry = retry.Config{
	MaxAttempts: 3,
	BaseDelay:   100 * time.Millisecond,
	MaxDelay:    time.Second,
}

// Deps are the service collaborators. Store, Escalator and Observer are optional.
type Deps struct {
	Store     Store
	Events    Publisher
	Escalator Escalator
	Observer  Observer
	Logger    logx.Logger
}

// Service raises emergency alerts to administrators.
type Service struct {
	store     Store
	events    Publisher
	escalator Escalator
	observer  Observer
	logger    logx.Logger

	retry retry.Runner
	now   func() time.Time
}

// NewService creates a Service.
func NewService(d Deps, policy retry.Config) *Service {
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetry
	}
	if d.Logger == nil {
		d.Logger = logx.Nop()
	}
	return &Service{
		store:     d.Store,
		events:    d.Events,
		escalator: d.Escalator,
		observer:  d.Observer,
		logger:    d.Logger,
		retry:     retry.Runner{Config: policy},
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Raise records and broadcasts an alert. The broadcast is retried with backoff;
// if it never succeeds the alert is escalated, and an error is returned only
// when escalation fails as well.
func (s *Service) Raise(ctx context.Context, courierID uuid.UUID, at domain.Coordinate, message string) error {
	message = strings.TrimSpace(message)
	if courierID == uuid.Nil || !at.Valid() || message == "" {
		return apperr.ErrInvalid
	}

	e := domain.Emergency{
		ID:        uuid.New(),
		CourierID: courierID,
		Point:     at,
		Message:   message,
		RaisedAt:  s.now(),
	}
	if s.observer != nil {
		s.observer.EmergencyRaised()
	}
	s.logger.Warn("emergency alert",
		logx.String("event", "emergency_alert"),
		logx.String("alert_id", e.ID.String()),
		logx.String("courier_id", courierID.String()),
		logx.Float64("latitude", at.Lat),
		logx.Float64("longitude", at.Lng),
		logx.String("message", message),
	)

	if s.store != nil {
		if err := s.store.SaveEmergency(ctx, e); err != nil {
			s.logger.Error("persist emergency alert failed",
				logx.String("alert_id", e.ID.String()),
				logx.Err(err),
			)
		}
	}

	alert := events.EmergencyAlert{
		CourierID: courierID,
		Latitude:  at.Lat,
		Longitude: at.Lng,
		Message:   message,
		Timestamp: e.RaisedAt,
	}
	err := s.broadcast(ctx, alert)
	if err == nil {
		return nil
	}

	if escErr := s.escalate(ctx, alert); escErr != nil {
		s.logger.Error("emergency alert undeliverable",
			logx.String("alert_id", e.ID.String()),
			logx.Err(errors.Join(err, escErr)),
		)
		return fmt.Errorf("broadcast emergency alert: %w", err)
	}
	s.logger.Warn("emergency alert escalated",
		logx.String("alert_id", e.ID.String()),
		logx.Err(err),
	)
	return nil
}

func (s *Service) broadcast(ctx context.Context, alert events.EmergencyAlert) error {
	var (
		lastErr error
		attempt int
	)
	err := s.retry.Do(ctx, func() error {
		attempt++
		lastErr = s.events.Publish(ctx, alert)
		if errors.Is(lastErr, apperr.ErrInvalid) {
			return retry.Permanent(lastErr)
		}
		return lastErr
	}, func(err error, delay time.Duration) {
		s.logger.Warn("emergency broadcast retry",
			logx.Int("attempt", attempt),
			logx.Duration("delay", delay),
			logx.Err(err),
		)
	})
	if err == nil {
		return nil
	}
	if lastErr == nil {
		lastErr = err
	}
	if !errors.Is(lastErr, apperr.ErrTransport) {
		lastErr = fmt.Errorf("%w: %w", apperr.ErrTransport, lastErr)
	}
	return lastErr
}

func (s *Service) escalate(ctx context.Context, alert events.EmergencyAlert) error {
	if s.escalator == nil {
		return errors.New("no escalation channel")
	}
	payload, err := events.Encode(alert)
	if err != nil {
		return err
	}
	return s.escalator.Write(context.WithoutCancel(ctx), []byte(alert.CourierID.String()), payload)
}
