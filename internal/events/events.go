// Package events defines the domain events fanned out to live connections
// and their JSON wire form.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"courier-dispatch/internal/domain"
)

// Kind is the wire discriminator of an event.
type Kind string

// List of event kinds
const (
	KindLocationUpdate Kind = "location_update"
	KindStatusUpdate   Kind = "status_update"
	KindOrderAssigned  Kind = "order_assigned"
	KindCourierOnline  Kind = "delivery_person_online"
	KindCourierOffline Kind = "delivery_person_offline"
	KindEmergencyAlert Kind = "emergency_alert"
)

// Event is an immutable fact published to the hub.
// Audience is mandatory so every event states its visibility for every role.
type Event interface {
	Kind() Kind
	Audience() Audience
	// Courier is the courier the event is about.
	Courier() uuid.UUID
}

// LocationUpdated is a courier position fix.
type LocationUpdated struct {
	CourierID uuid.UUID `json:"delivery_person_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Speed     *float64  `json:"speed"`
	Heading   *float64  `json:"heading"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLocationUpdated builds the event from a stored location fix.
func NewLocationUpdated(u domain.LocationUpdate) LocationUpdated {
	return LocationUpdated{
		CourierID: u.CourierID,
		Latitude:  u.Point.Lat,
		Longitude: u.Point.Lng,
		Speed:     u.Speed,
		Heading:   u.Heading,
		Timestamp: u.Timestamp,
	}
}

func (LocationUpdated) Kind() Kind { return KindLocationUpdate }

func (e LocationUpdated) Courier() uuid.UUID { return e.CourierID }

func (e LocationUpdated) Audience() Audience {
	return Audience{Admin: true, Customer: true, Restaurant: true, CourierID: e.CourierID}
}

// StatusUpdated is emitted on every assignment transition.
type StatusUpdated struct {
	AssignmentID     uuid.UUID             `json:"assignment_id"`
	CourierID        uuid.UUID             `json:"delivery_person_id"`
	OrderID          uuid.UUID             `json:"order_id"`
	Status           domain.DeliveryStatus `json:"status"`
	EstimatedArrival *time.Time            `json:"estimated_arrival"`
	Notes            *string               `json:"notes"`
}

func (StatusUpdated) Kind() Kind { return KindStatusUpdate }

func (e StatusUpdated) Courier() uuid.UUID { return e.CourierID }

func (e StatusUpdated) Audience() Audience {
	return Audience{Admin: true, Customer: true, Restaurant: true, CourierID: e.CourierID}
}

// OrderAssigned announces a new assignment to its courier.
type OrderAssigned struct {
	AssignmentID          uuid.UUID       `json:"assignment_id"`
	CourierID             uuid.UUID       `json:"delivery_person_id"`
	OrderID               uuid.UUID       `json:"order_id"`
	PickupAddress         json.RawMessage `json:"pickup_address"`
	DeliveryAddress       json.RawMessage `json:"delivery_address"`
	EstimatedPickupTime   *time.Time      `json:"estimated_pickup_time"`
	EstimatedDeliveryTime *time.Time      `json:"estimated_delivery_time"`
}

// NewOrderAssigned builds the event from a stored assignment.
func NewOrderAssigned(a domain.Assignment) OrderAssigned {
	return OrderAssigned{
		AssignmentID:          a.ID,
		CourierID:             a.CourierID,
		OrderID:               a.OrderID,
		PickupAddress:         a.PickupAddress,
		DeliveryAddress:       a.DeliveryAddress,
		EstimatedPickupTime:   a.EstimatedPickupAt,
		EstimatedDeliveryTime: a.EstimatedDeliveryAt,
	}
}

func (OrderAssigned) Kind() Kind { return KindOrderAssigned }

func (e OrderAssigned) Courier() uuid.UUID { return e.CourierID }

func (e OrderAssigned) Audience() Audience {
	return Audience{Admin: true, CourierID: e.CourierID}
}

// CourierOnline is published when a courier connects.
// Coordinates are absent when no position is known yet.
type CourierOnline struct {
	CourierID uuid.UUID `json:"delivery_person_id"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
}

func (CourierOnline) Kind() Kind { return KindCourierOnline }

func (e CourierOnline) Courier() uuid.UUID { return e.CourierID }

func (CourierOnline) Audience() Audience {
	return Audience{Admin: true, AllCouriers: true}
}

// CourierOffline is published when a courier connection closes.
type CourierOffline struct {
	CourierID uuid.UUID `json:"delivery_person_id"`
}

func (CourierOffline) Kind() Kind { return KindCourierOffline }

func (e CourierOffline) Courier() uuid.UUID { return e.CourierID }

func (CourierOffline) Audience() Audience {
	return Audience{Admin: true, AllCouriers: true}
}

// EmergencyAlert is a courier-raised safety alert.
type EmergencyAlert struct {
	CourierID uuid.UUID `json:"delivery_person_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (EmergencyAlert) Kind() Kind { return KindEmergencyAlert }

func (e EmergencyAlert) Courier() uuid.UUID { return e.CourierID }

func (EmergencyAlert) Audience() Audience {
	return Audience{Admin: true}
}

// Remote wraps an event that another process published to the events topic.
// It keeps the wrapped event's kind and audience.
type Remote struct {
	Event
	Origin string
}
