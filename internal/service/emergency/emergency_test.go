package emergency_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"courier-dispatch/internal/apperr"
		"courier-dispatch/internal/domain"
	"courier-dispatch/internal/events"
	"courier-dispatch/internal/retry"
	"courier-dispatch/internal/service/emergency"
	testlog "courier-dispatch/internal/testutil"
)

var (
	errHub  = errors.New("hub busy")
	raiseAt = domain.Coordinate{Lat: 19.076, Lng: 72.8777}
	fixedAt = time.Date(2025, 6, 1, 21, 30, 0, 0, time.UTC)
)

type mocks struct {
	store     *MockStore
	pub       *MockPublisher
	escalator *MockEscalator
	observer  *MockObserver
	logs      *testlog.Recorder
	slept     []time.Duration
}

// instantTimer fires at once and records each wait on m.
type instantTimer struct {
	m  *mocks
	ch chan time.Time
}

func (t *instantTimer) Start(d time.Duration) {
	t.m.slept = append(t.m.slept, d)
	t.ch = make(chan time.Time, 1)
	t.ch <- time.Time{}
}
func (t *instantTimer) Stop()               {}
func (t *instantTimer) C() <-chan time.Time { return t.ch }

func newService(t *testing.T, policy retry.Config) (*emergency.Service, *mocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	m := &mocks{
		store:     NewMockStore(ctrl),
		pub:       NewMockPublisher(ctrl),
		escalator: NewMockEscalator(ctrl),
		observer:  NewMockObserver(ctrl),
		logs:      testlog.New(),
	}
	svc := emergency.NewService(emergency.Deps{
		Store:     m.store,
		Events:    m.pub,
		Escalator: m.escalator,
		Observer:  m.observer,
		Logger:    m.logs.Logger(),
	}, policy)
	emergency.SetClock(svc, func() time.Time { return fixedAt })
	emergency.SetTimer(svc, func() backoff.Timer { return &instantTimer{m: m} })
	return svc, m
}

func TestRaise_BroadcastsToHub(t *testing.T) {
	t.Parallel()

	svc, m := newService(t, retry.Config{})
	courierID := uuid.New()

	m.observer.EXPECT().EmergencyRaised()
	m.store.EXPECT().SaveEmergency(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e domain.Emergency) error {
			require.Equal(t, courierID, e.CourierID)
			require.Equal(t, raiseAt, e.Point)
			require.Equal(t, "Accident", e.Message)
			require.Equal(t, fixedAt, e.RaisedAt)
			require.NotEqual(t, uuid.Nil, e.ID)
			return nil
		})
	m.pub.EXPECT().Publish(gomock.Any(), events.EmergencyAlert{
		CourierID: courierID,
		Latitude:  raiseAt.Lat,
		Longitude: raiseAt.Lng,
		Message:   "Accident",
		Timestamp: fixedAt,
	}).Return(nil)

	require.NoError(t, svc.Raise(context.Background(), courierID, raiseAt, "  Accident "))

	entry, ok := m.logs.Find("emergency alert")
	require.True(t, ok)
	v, _ := entry.Field("event")
	require.Equal(t, "emergency_alert", v)
	require.Empty(t, m.slept)
}

func TestRaise_RetriesWithBackoff(t *testing.T) {
	t.Parallel()

	svc, m := newService(t, retry.Config{MaxAttempts: 4, BaseDelay: 50 * time.Millisecond, MaxDelay: 120 * time.Millisecond})

	m.observer.EXPECT().EmergencyRaised()
	m.store.EXPECT().SaveEmergency(gomock.Any(), gomock.Any()).Return(nil)
	gomock.InOrder(
		m.pub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errHub),
		m.pub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errHub),
		m.pub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil),
	)

	require.NoError(t, svc.Raise(context.Background(), uuid.New(), raiseAt, "flat tyre"))
	require.Equal(t, []time.Duration{50 * time.Millisecond, 100 * time.Millisecond}, m.slept)
	require.True(t, m.logs.Has("warn", "emergency broadcast retry"))
}

func TestRaise_EscalatesWhenBroadcastFails(t *testing.T) {
	t.Parallel()

	svc, m := newService(t, retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})
	courierID := uuid.New()

	m.observer.EXPECT().EmergencyRaised()
	m.store.EXPECT().SaveEmergency(gomock.Any(), gomock.Any()).Return(nil)
	m.pub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errHub).Times(3)
	m.escalator.EXPECT().Write(gomock.Any(), []byte(courierID.String()), gomock.Any()).DoAndReturn(
		func(_ context.Context, _, value []byte) error {
			var got map[string]any
			require.NoError(t, json.Unmarshal(value, &got))
			require.Equal(t, "emergency_alert", got["type"])
			require.Equal(t, "Robbery", got["message"])
			return nil
		})

	require.NoError(t, svc.Raise(context.Background(), courierID, raiseAt, "Robbery"))
	require.Len(t, m.slept, 2)
	require.True(t, m.logs.Has("warn", "emergency alert escalated"))
}

func TestRaise_ReturnsErrorWhenEscalationFails(t *testing.T) {
	t.Parallel()

	svc, m := newService(t, retry.Config{MaxAttempts: 2})

	m.observer.EXPECT().EmergencyRaised()
	m.store.EXPECT().SaveEmergency(gomock.Any(), gomock.Any()).Return(nil)
	m.pub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errHub).Times(2)
	m.escalator.EXPECT().Write(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	err := svc.Raise(context.Background(), uuid.New(), raiseAt, "help")
	require.ErrorIs(t, err, errHub)
	require.ErrorIs(t, err, apperr.ErrTransport)
	require.True(t, m.logs.Has("error", "emergency alert undeliverable"))
}

func TestRaise_PersistFailureIsBestEffort(t *testing.T) {
	t.Parallel()

	svc, m := newService(t, retry.Config{})

	m.observer.EXPECT().EmergencyRaised()
	m.store.EXPECT().SaveEmergency(gomock.Any(), gomock.Any()).Return(errors.New("db down"))
	m.pub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	require.NoError(t, svc.Raise(context.Background(), uuid.New(), raiseAt, "help"))
	require.True(t, m.logs.Has("error", "persist emergency alert failed"))
}

func TestRaise_StopsRetryingWhenContextEnds(t *testing.T) {
	t.Parallel()

	svc, m := newService(t, retry.Config{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	m.observer.EXPECT().EmergencyRaised()
	m.store.EXPECT().SaveEmergency(gomock.Any(), gomock.Any()).Return(nil)
	m.pub.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, events.Event) error {
		cancel()
		return errHub
	})
	m.escalator.EXPECT().Write(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _, _ []byte) error {
			require.NoError(t, ctx.Err())
			return nil
		})

	require.NoError(t, svc.Raise(ctx, uuid.New(), raiseAt, "help"))
	require.Empty(t, m.slept)
}

func TestRaise_InvalidInput(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t, retry.Config{})
	id := uuid.New()

	require.ErrorIs(t, svc.Raise(context.Background(), uuid.Nil, raiseAt, "help"), apperr.ErrInvalid)
	require.ErrorIs(t, svc.Raise(context.Background(), id, domain.Coordinate{Lat: 100}, "help"), apperr.ErrInvalid)
	require.ErrorIs(t, svc.Raise(context.Background(), id, raiseAt, "   "), apperr.ErrInvalid)
}

func TestRaise_WithoutOptionalCollaborators(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	pub := NewMockPublisher(ctrl)
	svc := emergency.NewService(emergency.Deps{Events: pub}, retry.Config{MaxAttempts: 1})

	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)
	require.NoError(t, svc.Raise(context.Background(), uuid.New(), raiseAt, "help"))

	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errHub)
	require.ErrorIs(t, svc.Raise(context.Background(), uuid.New(), raiseAt, "help"), errHub)
}
