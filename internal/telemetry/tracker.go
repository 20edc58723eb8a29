package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/events"
	"courier-dispatch/internal/hub"
)

const (
	// maxInFlightAge bounds how long an entry may wait for its terminal status.
	maxInFlightAge = 24 * time.Hour
	sweepEvery     = time.Minute
)

// timing holds the in-flight markers of one assignment.
type timing struct {
	vehicle    domain.VehicleType
	assignedAt time.Time
	acceptedAt *time.Time
	pickedUpAt *time.Time
	status     domain.DeliveryStatus
	touchedAt  time.Time
}

// Tracker observes assignment lifecycle events, keeps per-assignment timing
// markers while an assignment is in flight, and turns them into latency
// observations on delivery. Entries are removed on every terminal status,
// including terminal statuses reached in another process (see Follow), and
// entries idle for longer than a day are dropped.
type Tracker struct {
	metrics *Metrics
	now     func() time.Time

	mu        sync.Mutex
	inflight  map[uuid.UUID]*timing
	lastSweep time.Time
}

// NewTracker creates a tracker feeding m.
func NewTracker(m *Metrics) *Tracker {
	return &Tracker{
		metrics:  m,
		now:      time.Now,
		inflight: make(map[uuid.UUID]*timing),
	}
}

// Assigned records a new assignment; took is the time spent dispatching it.
func (t *Tracker) Assigned(a domain.Assignment, vehicle domain.VehicleType, took time.Duration) {
	t.metrics.ordersAssigned.Inc()
	t.metrics.byStatus.WithLabelValues(string(domain.StatusAssigned)).Inc()
	t.metrics.assignmentTime.Observe(took.Seconds())

	assignedAt := a.AssignedAt
	if assignedAt.IsZero() {
		assignedAt = t.now()
	}

	now := t.now()
	t.mu.Lock()
	t.sweepLocked(now)
	t.inflight[a.ID] = &timing{vehicle: vehicle, assignedAt: assignedAt, status: domain.StatusAssigned, touchedAt: now}
	t.mu.Unlock()
}

// StatusChanged records a transition of a, which carries the new status.
func (t *Tracker) StatusChanged(a domain.Assignment) {
	t.metrics.statusUpdates.Inc()
	t.metrics.byStatus.WithLabelValues(string(a.Status)).Inc()

	now := t.now()
	tm := t.advance(a.ID, a.Status, now)

	switch a.Status {
	case domain.StatusDelivered:
		t.observeDelivered(a, tm, now)
	case domain.StatusCancelled:
		t.metrics.ordersCancelled.Inc()
	case domain.StatusFailed:
		t.metrics.ordersFailed.Inc()
	}
}

// advance moves the entry of id to status and returns it, or nil when id is
// not tracked. Terminal statuses remove the entry.
func (t *Tracker) advance(id uuid.UUID, status domain.DeliveryStatus, now time.Time) *timing {
	t.mu.Lock()
	defer t.mu.Unlock()

	tm, tracked := t.inflight[id]
	if tracked {
		tm.status = status
		tm.touchedAt = now
		switch status {
		case domain.StatusAccepted:
			tm.acceptedAt = &now
		case domain.StatusPickedUp:
			tm.pickedUpAt = &now
		}
	}
	if status.Terminal() {
		delete(t.inflight, id)
	}
	return tm
}

// Follow keeps the in-flight table in step with assignment events that other
// processes publish into the local hub. Remote events update timing markers
// only; they are counted by the process that produced them. It returns when
// ctx ends or the hub closes.
func (t *Tracker) Follow(ctx context.Context, src interface {
	Subscribe() (*hub.Subscription, error)
}) error {
	sub, err := src.Subscribe()
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C():
			if !ok {
				return nil
			}
			if r, remote := ev.(events.Remote); remote {
				t.applyRemote(r.Event)
			}
		}
	}
}

func (t *Tracker) applyRemote(ev events.Event) {
	now := t.now()
	switch e := ev.(type) {
	case events.OrderAssigned:
		t.mu.Lock()
		t.sweepLocked(now)
		if _, ok := t.inflight[e.AssignmentID]; !ok {
			t.inflight[e.AssignmentID] = &timing{assignedAt: now, status: domain.StatusAssigned, touchedAt: now}
		}
		t.mu.Unlock()
	case events.StatusUpdated:
		t.advance(e.AssignmentID, e.Status, now)
	}
}

// sweepLocked drops entries idle for longer than maxInFlightAge. It runs at
// most once per sweepEvery.
func (t *Tracker) sweepLocked(now time.Time) {
	if now.Sub(t.lastSweep) < sweepEvery {
		return
	}
	t.lastSweep = now
	for id, tm := range t.inflight {
		if now.Sub(tm.touchedAt) > maxInFlightAge {
			delete(t.inflight, id)
		}
	}
}

// observeDelivered records completion histograms. Without a tracked entry
// (for example after a restart) the stored assignment timestamps are used.
func (t *Tracker) observeDelivered(a domain.Assignment, tm *timing, now time.Time) {
	t.metrics.ordersCompleted.Inc()

	assignedAt, pickedUpAt := a.AssignedAt, a.PickedUpAt
	if tm != nil {
		assignedAt = tm.assignedAt
		if tm.pickedUpAt != nil {
			pickedUpAt = tm.pickedUpAt
		}
		if tm.vehicle.Valid() {
			t.metrics.byVehicle.WithLabelValues(string(tm.vehicle)).Inc()
		}
	}
	deliveredAt := now
	if a.DeliveredAt != nil {
		deliveredAt = *a.DeliveredAt
	}

	if !assignedAt.IsZero() {
		t.metrics.deliveryTime.Observe(deliveredAt.Sub(assignedAt).Minutes())
		if pickedUpAt != nil {
			t.metrics.pickupTime.Observe(pickedUpAt.Sub(assignedAt).Minutes())
		}
	}
	if a.DistanceKm != nil {
		t.metrics.distance.Observe(*a.DistanceKm)
	}
	t.metrics.earnings.Observe(a.Earnings())
}

// InFlight returns the number of tracked assignments.
func (t *Tracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight)
}

// Tracking reports whether the assignment has a timing entry.
func (t *Tracker) Tracking(id uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.inflight[id]
	return ok
}
