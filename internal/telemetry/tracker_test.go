package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/events"
	"courier-dispatch/internal/hub"
)

func newTestTracker(t *testing.T) (*Tracker, *Metrics, *prometheus.Registry, *time.Time) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)
	tr := NewTracker(m)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }
	return tr, m, reg, &now
}

func histogramSum(t *testing.T, reg *prometheus.Registry, name string) (uint64, float64) {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			h := mf.GetMetric()[0].GetHistogram()
			return h.GetSampleCount(), h.GetSampleSum()
		}
	}
	t.Fatalf("metric %s not gathered", name)
	return 0, 0
}

func TestTracker_DeliveredObservesAndForgets(t *testing.T) {
	t.Parallel()

	tr, m, reg, now := newTestTracker(t)
	dist := 3.0
	tip := 20.0
	a := domain.Assignment{
		ID:          uuid.New(),
		Status:      domain.StatusAssigned,
		AssignedAt:  *now,
		DistanceKm:  &dist,
		DeliveryFee: 40,
		TipAmount:   &tip,
	}

	tr.Assigned(a, domain.VehicleScooter, 1500*time.Millisecond)
	require.True(t, tr.Tracking(a.ID))
	require.Equal(t, 1, tr.InFlight())

	steps := []struct {
		status domain.DeliveryStatus
		after  time.Duration
	}{
		{domain.StatusAccepted, 2 * time.Minute},
		{domain.StatusEnRouteToRestaurant, time.Minute},
		{domain.StatusArrivedAtRestaurant, 5 * time.Minute},
		{domain.StatusPickedUp, 4 * time.Minute},
		{domain.StatusEnRouteToCustomer, time.Minute},
		{domain.StatusArrivedAtCustomer, 15 * time.Minute},
		{domain.StatusDelivered, 2 * time.Minute},
	}
	for _, s := range steps {
		*now = now.Add(s.after)
		a.Status = s.status
		tr.StatusChanged(a)
	}

	require.False(t, tr.Tracking(a.ID))
	require.Equal(t, 0, tr.InFlight())

	require.Equal(t, 1.0, testutil.ToFloat64(m.ordersAssigned))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ordersCompleted))
	require.Equal(t, 7.0, testutil.ToFloat64(m.statusUpdates))
	require.Equal(t, 1.0, testutil.ToFloat64(m.byVehicle.WithLabelValues("scooter")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.byStatus.WithLabelValues("delivered")))

	count, sum := histogramSum(t, reg, "delivery_time_minutes")
	require.Equal(t, uint64(1), count)
	require.InDelta(t, 30, sum, 1e-9)

	count, sum = histogramSum(t, reg, "delivery_pickup_time_minutes")
	require.Equal(t, uint64(1), count)
	require.InDelta(t, 12, sum, 1e-9)

	count, sum = histogramSum(t, reg, "delivery_assignment_time_seconds")
	require.Equal(t, uint64(1), count)
	require.InDelta(t, 1.5, sum, 1e-9)

	count, sum = histogramSum(t, reg, "delivery_distance_km")
	require.Equal(t, uint64(1), count)
	require.InDelta(t, 3, sum, 1e-9)

	count, sum = histogramSum(t, reg, "delivery_earnings_rupees")
	require.Equal(t, uint64(1), count)
	require.InDelta(t, 60, sum, 1e-9)
}

func TestTracker_CancelledAndFailedArePurgedWithoutLatency(t *testing.T) {
	t.Parallel()

	tr, m, reg, _ := newTestTracker(t)
	cancelled := domain.Assignment{ID: uuid.New(), Status: domain.StatusAssigned}
	failed := domain.Assignment{ID: uuid.New(), Status: domain.StatusAssigned}
	tr.Assigned(cancelled, domain.VehicleCar, time.Second)
	tr.Assigned(failed, domain.VehicleVan, time.Second)
	require.Equal(t, 2, tr.InFlight())

	cancelled.Status = domain.StatusCancelled
	tr.StatusChanged(cancelled)
	failed.Status = domain.StatusAccepted
	tr.StatusChanged(failed)
	failed.Status = domain.StatusFailed
	tr.StatusChanged(failed)

	require.Equal(t, 0, tr.InFlight())
	require.Equal(t, 1.0, testutil.ToFloat64(m.ordersCancelled))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ordersFailed))
	require.Equal(t, 0.0, testutil.ToFloat64(m.ordersCompleted))

	count, _ := histogramSum(t, reg, "delivery_time_minutes")
	require.Equal(t, uint64(0), count)
}

func TestTracker_DropsIdleEntries(t *testing.T) {
	t.Parallel()

	tr, _, _, now := newTestTracker(t)
	stale := domain.Assignment{ID: uuid.New(), Status: domain.StatusAssigned}
	tr.Assigned(stale, domain.VehicleBicycle, time.Second)

	*now = now.Add(maxInFlightAge + time.Hour)
	fresh := domain.Assignment{ID: uuid.New(), Status: domain.StatusAssigned}
	tr.Assigned(fresh, domain.VehicleBicycle, time.Second)

	require.False(t, tr.Tracking(stale.ID))
	require.True(t, tr.Tracking(fresh.ID))
	require.Equal(t, 1, tr.InFlight())
}

func TestTracker_FollowAppliesRemoteEventsWithoutCounting(t *testing.T) {
	t.Parallel()

	tr, m, _, _ := newTestTracker(t)
	h := hub.New(nil)
	t.Cleanup(h.Close)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Follow(ctx, h) }()
	require.Eventually(t, func() bool { return h.Subscribers() == 1 }, time.Second, time.Millisecond)

	local := domain.Assignment{ID: uuid.New(), Status: domain.StatusAssigned}
	tr.Assigned(local, domain.VehicleCar, time.Second)

	remoteID := uuid.New()
	publish := func(e events.Event) {
		require.NoError(t, h.Publish(context.Background(), e))
	}
	publish(events.Remote{Event: events.OrderAssigned{AssignmentID: remoteID, CourierID: uuid.New()}, Origin: "worker-1"})
	publish(events.Remote{Event: events.StatusUpdated{AssignmentID: local.ID, Status: domain.StatusDelivered}, Origin: "api-1"})
	// Local events are observed directly, never through the hub.
	publish(events.StatusUpdated{AssignmentID: remoteID, Status: domain.StatusCancelled})

	require.Eventually(t, func() bool {
		return tr.Tracking(remoteID) && !tr.Tracking(local.ID)
	}, time.Second, time.Millisecond)

	publish(events.Remote{Event: events.StatusUpdated{AssignmentID: remoteID, Status: domain.StatusCancelled}, Origin: "api-1"})
	require.Eventually(t, func() bool { return tr.InFlight() == 0 }, time.Second, time.Millisecond)

	require.Equal(t, 1.0, testutil.ToFloat64(m.ordersAssigned))
	require.Equal(t, 0.0, testutil.ToFloat64(m.ordersCompleted))
	require.Equal(t, 0.0, testutil.ToFloat64(m.ordersCancelled))

	cancel()
	require.NoError(t, <-done)
}

func TestTracker_DeliveredWithoutEntryUsesStoredTimestamps(t *testing.T) {
	t.Parallel()

	tr, m, reg, now := newTestTracker(t)
	picked := now.Add(-20 * time.Minute)
	delivered := *now
	a := domain.Assignment{
		ID:          uuid.New(),
		Status:      domain.StatusDelivered,
		AssignedAt:  now.Add(-45 * time.Minute),
		PickedUpAt:  &picked,
		DeliveredAt: &delivered,
		DeliveryFee: 30,
	}

	tr.StatusChanged(a)

	require.Equal(t, 1.0, testutil.ToFloat64(m.ordersCompleted))
	count, sum := histogramSum(t, reg, "delivery_time_minutes")
	require.Equal(t, uint64(1), count)
	require.InDelta(t, 45, sum, 1e-9)
	count, sum = histogramSum(t, reg, "delivery_pickup_time_minutes")
	require.Equal(t, uint64(1), count)
	require.InDelta(t, 25, sum, 1e-9)
	count, _ = histogramSum(t, reg, "delivery_distance_km")
	require.Equal(t, uint64(0), count)
}

func TestMetrics_GaugesAndCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.CourierRegistered()
	m.CourierVerified()
	m.CourierDeactivated()
	m.LocationUpdated()
	m.LocationUpdated()
	m.EmergencyRaised()
	m.FrameThrottled()
	m.SetCourierGauges(7, 3)
	m.SetPendingAssignments(4)
	m.ConnectionsChanged(12)
	m.HubDropped().Inc()
	m.GatewayRetries().Inc()
	m.RateLimitExceeded().Inc()

	require.Equal(t, 1.0, testutil.ToFloat64(m.couriersRegistered))
	require.Equal(t, 1.0, testutil.ToFloat64(m.couriersVerified))
	require.Equal(t, 1.0, testutil.ToFloat64(m.couriersDeactivated))
	require.Equal(t, 2.0, testutil.ToFloat64(m.locationUpdates))
	require.Equal(t, 1.0, testutil.ToFloat64(m.emergencyAlerts))
	require.Equal(t, 1.0, testutil.ToFloat64(m.framesThrottled))
	require.Equal(t, 7.0, testutil.ToFloat64(m.activeCouriers))
	require.Equal(t, 3.0, testutil.ToFloat64(m.availableCouriers))
	require.Equal(t, 4.0, testutil.ToFloat64(m.pendingAssignments))
	require.Equal(t, 12.0, testutil.ToFloat64(m.liveConnections))
	require.Equal(t, 1.0, testutil.ToFloat64(m.hubDropped))
	require.Equal(t, 1.0, testutil.ToFloat64(m.gatewayRetries))
	require.Equal(t, 1.0, testutil.ToFloat64(m.rateLimitExceeded))
}

func TestNewMetrics_DuplicateRegistrationFails(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	require.Error(t, err)

	m, err := NewMetrics(nil)
	require.NoError(t, err)
	require.NotNil(t, m)
}
