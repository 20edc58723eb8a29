// Package telemetry holds the dispatch Prometheus metrics and the in-flight
// assignment timing table.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"courier-dispatch/internal/domain"
)

// Metrics is the set of dispatch collectors.
type Metrics struct {
	couriersRegistered  prometheus.Counter
	couriersVerified    prometheus.Counter
	couriersDeactivated prometheus.Counter
	ordersAssigned      prometheus.Counter
	ordersCompleted     prometheus.Counter
	ordersCancelled     prometheus.Counter
	ordersFailed        prometheus.Counter
	locationUpdates     prometheus.Counter
	statusUpdates       prometheus.Counter
	emergencyAlerts     prometheus.Counter
	byStatus            *prometheus.CounterVec
	byVehicle           *prometheus.CounterVec

	activeCouriers     prometheus.Gauge
	availableCouriers  prometheus.Gauge
	pendingAssignments prometheus.Gauge
	liveConnections    prometheus.Gauge

	deliveryTime   prometheus.Histogram
	assignmentTime prometheus.Histogram
	pickupTime     prometheus.Histogram
	distance       prometheus.Histogram
	earnings       prometheus.Histogram

	framesThrottled   prometheus.Counter
	hubDropped        prometheus.Counter
	gatewayRetries    prometheus.Counter
	rateLimitExceeded prometheus.Counter
}

func counter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
}

func gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
}

func histogram(name, help string, buckets ...float64) prometheus.Histogram {
	return prometheus.NewHistogram(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets})
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		couriersRegistered:  counter("delivery_persons_registered_total", "Total number of couriers registered"),
		couriersVerified:    counter("delivery_persons_verified_total", "Total number of couriers verified"),
		couriersDeactivated: counter("delivery_persons_deactivated_total", "Total number of couriers deactivated"),
		ordersAssigned:      counter("delivery_orders_assigned_total", "Total number of orders assigned to couriers"),
		ordersCompleted:     counter("delivery_orders_completed_total", "Total number of orders delivered"),
		ordersCancelled:     counter("delivery_orders_cancelled_total", "Total number of assignments cancelled"),
		ordersFailed:        counter("delivery_orders_failed_total", "Total number of assignments failed"),
		locationUpdates:     counter("delivery_location_updates_total", "Total number of courier location updates"),
		statusUpdates:       counter("delivery_status_updates_total", "Total number of assignment status updates"),
		emergencyAlerts:     counter("delivery_emergency_alerts_total", "Total number of emergency alerts"),
		byStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "delivery_status_total",
			Help: "Assignments that reached each status",
		}, []string{"status"}),
		byVehicle: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "delivery_completed_by_vehicle_total",
			Help: "Completed deliveries per vehicle type",
		}, []string{"vehicle_type"}),

		activeCouriers:     gauge("delivery_persons_active", "Number of active couriers"),
		availableCouriers:  gauge("delivery_persons_available", "Number of available couriers"),
		pendingAssignments: gauge("delivery_assignments_pending", "Number of non-terminal assignments"),
		liveConnections:    gauge("delivery_websocket_connections", "Number of live connections"),

		deliveryTime:   histogram("delivery_time_minutes", "Assigned to delivered in minutes", 10, 20, 30, 45, 60, 90, 120),
		assignmentTime: histogram("delivery_assignment_time_seconds", "Time taken to assign an order in seconds", 1, 5, 10, 30, 60, 120, 300),
		pickupTime:     histogram("delivery_pickup_time_minutes", "Assigned to picked up in minutes", 5, 10, 15, 20, 30, 45, 60),
		distance:       histogram("delivery_distance_km", "Pickup to drop-off distance in kilometers", 1, 2, 5, 10, 15, 20, 30),
		earnings:       histogram("delivery_earnings_rupees", "Courier earnings per delivery", 20, 30, 50, 75, 100, 150, 200),

		framesThrottled:   counter("realtime_frames_throttled_total", "Inbound client frames dropped by the per-connection limiter"),
		hubDropped:        counter("hub_events_dropped_total", "Events dropped on full subscriber buffers"),
		gatewayRetries:    counter("gateway_retries_total", "Total number of retry attempts performed by gateways"),
		rateLimitExceeded: counter("rate_limit_exceeded_total", "Total number of rejected HTTP requests due to rate limiting"),
	}

	for _, s := range domain.AllStatuses() {
		m.byStatus.WithLabelValues(string(s))
	}
	for _, v := range domain.VehicleTypes() {
		m.byVehicle.WithLabelValues(string(v))
	}

	if reg != nil {
		for _, c := range m.collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.couriersRegistered, m.couriersVerified, m.couriersDeactivated,
		m.ordersAssigned, m.ordersCompleted, m.ordersCancelled, m.ordersFailed,
		m.locationUpdates, m.statusUpdates, m.emergencyAlerts, m.byStatus, m.byVehicle,
		m.activeCouriers, m.availableCouriers, m.pendingAssignments, m.liveConnections,
		m.deliveryTime, m.assignmentTime, m.pickupTime, m.distance, m.earnings,
		m.framesThrottled, m.hubDropped, m.gatewayRetries, m.rateLimitExceeded,
	}
}

// CourierRegistered counts a registration.
func (m *Metrics) CourierRegistered() { m.couriersRegistered.Inc() }

// CourierVerified counts a verification.
func (m *Metrics) CourierVerified() { m.couriersVerified.Inc() }

// CourierDeactivated counts a deactivation.
func (m *Metrics) CourierDeactivated() { m.couriersDeactivated.Inc() }

// LocationUpdated counts a courier position fix.
func (m *Metrics) LocationUpdated() { m.locationUpdates.Inc() }

// EmergencyRaised counts an emergency alert.
func (m *Metrics) EmergencyRaised() { m.emergencyAlerts.Inc() }

// SetCourierGauges sets the active and available courier gauges.
func (m *Metrics) SetCourierGauges(active, available int64) {
	m.activeCouriers.Set(float64(active))
	m.availableCouriers.Set(float64(available))
}

// SetPendingAssignments sets the non-terminal assignment gauge.
func (m *Metrics) SetPendingAssignments(n int64) { m.pendingAssignments.Set(float64(n)) }

// ConnectionsChanged sets the live connection gauge.
func (m *Metrics) ConnectionsChanged(n int) { m.liveConnections.Set(float64(n)) }

// FrameThrottled counts a dropped inbound frame.
func (m *Metrics) FrameThrottled() { m.framesThrottled.Inc() }

// HubDropped is incremented by the hub on buffer overflow.
func (m *Metrics) HubDropped() prometheus.Counter { return m.hubDropped }

// GatewayRetries is incremented by retrying gateways.
func (m *Metrics) GatewayRetries() prometheus.Counter { return m.gatewayRetries }

// RateLimitExceeded is incremented by the HTTP rate limiter.
func (m *Metrics) RateLimitExceeded() prometheus.Counter { return m.rateLimitExceeded }
