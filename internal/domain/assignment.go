package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Assignment binds one order to one courier.
type Assignment struct {
	ID              uuid.UUID
	OrderID         uuid.UUID
	CourierID       uuid.UUID
	RestaurantID    uuid.UUID
	CustomerID      uuid.UUID
	PickupAddress   json.RawMessage
	DeliveryAddress json.RawMessage
	Status          DeliveryStatus

	AssignedAt  time.Time
	AcceptedAt  *time.Time
	PickedUpAt  *time.Time
	DeliveredAt *time.Time

	EstimatedPickupAt   *time.Time
	EstimatedDeliveryAt *time.Time

	DistanceKm      *float64
	DeliveryFee     float64
	TipAmount       *float64
	Notes           *string
	ProofOfDelivery json.RawMessage

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Earnings is the amount credited to the courier on delivery.
func (a Assignment) Earnings() float64 {
	e := a.DeliveryFee
	if a.TipAmount != nil {
		e += *a.TipAmount
	}
	return e
}

// OrderDetails are the facts the order collaborator returns for dispatch.
type OrderDetails struct {
	OrderID         uuid.UUID
	RestaurantID    uuid.UUID
	CustomerID      uuid.UUID
	PickupAddress   json.RawMessage
	DeliveryAddress json.RawMessage
	DeliveryFee     float64
}

// StatusChange carries a requested transition.
// CourierID must match the stored courier unless the change is administrative.
type StatusChange struct {
	AssignmentID    uuid.UUID
	CourierID       uuid.UUID
	Status          DeliveryStatus
	Notes           *string
	ProofOfDelivery json.RawMessage
}

// AssignResult is the outcome of a successful dispatch.
// DistanceToPickupKm is nil when the chosen courier had no known position.
type AssignResult struct {
	Assignment         Assignment
	VehicleType        VehicleType
	DistanceToPickupKm *float64
}

// Analytics is the realtime admin snapshot.
type Analytics struct {
	ActiveDeliveries       int64   `json:"active_deliveries"`
	OnlineCouriers         int64   `json:"online_couriers"`
	CompletedToday         int64   `json:"completed_deliveries_today"`
	AverageDeliveryMinutes float64 `json:"average_delivery_time_minutes"`
	LiveConnections        int     `json:"live_connections"`
}
