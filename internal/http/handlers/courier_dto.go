package handlers

import (
	"time"

	"github.com/google/uuid"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/service/matcher"
)

type courierResponse struct {
	ID                   uuid.UUID          `json:"id"`
	Name                 string             `json:"name"`
	Phone                string             `json:"phone"`
	Email                *string            `json:"email,omitempty"`
	VehicleType          domain.VehicleType `json:"vehicle_type"`
	VehicleNumber        string             `json:"vehicle_number"`
	Latitude             *float64           `json:"current_latitude"`
	Longitude            *float64           `json:"current_longitude"`
	IsAvailable          bool               `json:"is_available"`
	IsVerified           bool               `json:"is_verified"`
	IsActive             bool               `json:"is_active"`
	TotalDeliveries      int                `json:"total_deliveries"`
	SuccessfulDeliveries int                `json:"successful_deliveries"`
	AverageDeliveryTime  *int               `json:"average_delivery_time"`
	Rating               float64            `json:"rating"`
	EarningsToday        float64            `json:"earnings_today"`
	EarningsThisMonth    float64            `json:"earnings_this_month"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

type registerCourierRequest struct {
	Name          string             `json:"name"`
	Phone         string             `json:"phone"`
	Email         *string            `json:"email,omitempty"`
	VehicleType   domain.VehicleType `json:"vehicle_type"`
	VehicleNumber string             `json:"vehicle_number"`
}

type availabilityRequest struct {
	IsAvailable *bool `json:"is_available"`
}

type locationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Speed     *float64 `json:"speed,omitempty"`
	Heading   *float64 `json:"heading,omitempty"`
}

type nearbyResponse struct {
	Courier          courierResponse `json:"delivery_person"`
	DistanceKm       float64         `json:"distance_km"`
	ArrivalEstimateM int             `json:"estimated_arrival_minutes"`
}

func (r registerCourierRequest) toModel() domain.NewCourier {
	return domain.NewCourier{
		Name:          r.Name,
		Phone:         r.Phone,
		Email:         r.Email,
		VehicleType:   r.VehicleType,
		VehicleNumber: r.VehicleNumber,
	}
}

func courierToResponse(c domain.Courier) courierResponse {
	resp := courierResponse{
		ID:                   c.ID,
		Name:                 c.Name,
		Phone:                c.Phone,
		Email:                c.Email,
		VehicleType:          c.VehicleType,
		VehicleNumber:        c.VehicleNumber,
		IsAvailable:          c.IsAvailable,
		IsVerified:           c.IsVerified,
		IsActive:             c.IsActive,
		TotalDeliveries:      c.Stats.TotalDeliveries,
		SuccessfulDeliveries: c.Stats.SuccessfulDeliveries,
		AverageDeliveryTime:  c.Stats.AverageDeliveryMinutes,
		Rating:               c.Stats.Rating,
		EarningsToday:        c.Stats.EarningsToday,
		EarningsThisMonth:    c.Stats.EarningsThisMonth,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
	if c.Location != nil {
		lat, lng := c.Location.Lat, c.Location.Lng
		resp.Latitude, resp.Longitude = &lat, &lng
	}
	return resp
}

func candidatesToResponse(list []matcher.Candidate) []nearbyResponse {
	out := make([]nearbyResponse, 0, len(list))
	for _, c := range list {
		out = append(out, nearbyResponse{
			Courier:          courierToResponse(c.Courier),
			DistanceKm:       c.DistanceKm,
			ArrivalEstimateM: c.ArrivalMinutes,
		})
	}
	return out
}
