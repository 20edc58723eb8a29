package handlers

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"courier-dispatch/internal/domain"
)

type assignRequest struct {
	OrderID            uuid.UUID  `json:"order_id"`
	PreferredCourierID *uuid.UUID `json:"preferred_delivery_person_id,omitempty"`
	MaxDistanceKm      *float64   `json:"max_distance_km,omitempty"`
}

type statusRequest struct {
	CourierID       uuid.UUID             `json:"delivery_person_id"`
	Status          domain.DeliveryStatus `json:"status"`
	Notes           *string               `json:"notes,omitempty"`
	ProofOfDelivery json.RawMessage       `json:"proof_of_delivery,omitempty"`
}

type cancelRequest struct {
	Status domain.DeliveryStatus `json:"status,omitempty"`
	Notes  *string               `json:"notes,omitempty"`
}

type assignmentResponse struct {
	ID                  uuid.UUID             `json:"id"`
	OrderID             uuid.UUID             `json:"order_id"`
	CourierID           uuid.UUID             `json:"delivery_person_id"`
	RestaurantID        uuid.UUID             `json:"restaurant_id"`
	CustomerID          uuid.UUID             `json:"customer_id"`
	PickupAddress       json.RawMessage       `json:"pickup_address"`
	DeliveryAddress     json.RawMessage       `json:"delivery_address"`
	Status              domain.DeliveryStatus `json:"status"`
	AssignedAt          time.Time             `json:"assigned_at"`
	AcceptedAt          *time.Time            `json:"accepted_at"`
	PickedUpAt          *time.Time            `json:"picked_up_at"`
	DeliveredAt         *time.Time            `json:"delivered_at"`
	EstimatedPickupAt   *time.Time            `json:"estimated_pickup_time"`
	EstimatedDeliveryAt *time.Time            `json:"estimated_delivery_time"`
	DistanceKm          *float64              `json:"distance_km"`
	DeliveryFee         float64               `json:"delivery_fee"`
	TipAmount           *float64              `json:"tip_amount"`
	Notes               *string               `json:"delivery_notes"`
	ProofOfDelivery     json.RawMessage       `json:"proof_of_delivery,omitempty"`
}

type assignResponse struct {
	Assignment         assignmentResponse `json:"assignment"`
	VehicleType        domain.VehicleType `json:"vehicle_type"`
	DistanceToPickupKm *float64           `json:"distance_to_pickup_km"`
}

func assignmentToResponse(a domain.Assignment) assignmentResponse {
	return assignmentResponse{
		ID:                  a.ID,
		OrderID:             a.OrderID,
		CourierID:           a.CourierID,
		RestaurantID:        a.RestaurantID,
		CustomerID:          a.CustomerID,
		PickupAddress:       a.PickupAddress,
		DeliveryAddress:     a.DeliveryAddress,
		Status:              a.Status,
		AssignedAt:          a.AssignedAt,
		AcceptedAt:          a.AcceptedAt,
		PickedUpAt:          a.PickedUpAt,
		DeliveredAt:         a.DeliveredAt,
		EstimatedPickupAt:   a.EstimatedPickupAt,
		EstimatedDeliveryAt: a.EstimatedDeliveryAt,
		DistanceKm:          a.DistanceKm,
		DeliveryFee:         a.DeliveryFee,
		TipAmount:           a.TipAmount,
		Notes:               a.Notes,
		ProofOfDelivery:     a.ProofOfDelivery,
	}
}

func assignResultToResponse(res domain.AssignResult) assignResponse {
	return assignResponse{
		Assignment:         assignmentToResponse(res.Assignment),
		VehicleType:        res.VehicleType,
		DistanceToPickupKm: res.DistanceToPickupKm,
	}
}
