package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// VehicleType represents the vehicle category of a courier.
type VehicleType string

// List of possible vehicle types
const (
	VehicleBicycle    VehicleType = "bicycle"
	VehicleMotorcycle VehicleType = "motorcycle"
	VehicleScooter    VehicleType = "scooter"
	VehicleCar        VehicleType = "car"
	VehicleVan        VehicleType = "van"
)

var allowedVehicleTypes = [...]VehicleType{
	VehicleBicycle, VehicleMotorcycle, VehicleScooter, VehicleCar, VehicleVan,
}

// VehicleTypes returns all known vehicle categories.
func VehicleTypes() []VehicleType {
	return allowedVehicleTypes[:]
}

// Valid checks if the VehicleType is valid
func (v VehicleType) Valid() bool {
	for _, t := range allowedVehicleTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Courier represents a delivery courier.
type Courier struct {
	ID            uuid.UUID
	Name          string
	Phone         string
	Email         *string
	VehicleType   VehicleType
	VehicleNumber string
	Location      *Coordinate
	IsAvailable   bool
	IsVerified    bool
	IsActive      bool
	Stats         CourierStats
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CourierStats carries lifetime performance counters of a courier.
// AverageDeliveryMinutes is nil until the first successful delivery.
type CourierStats struct {
	TotalDeliveries        int
	SuccessfulDeliveries   int
	AverageDeliveryMinutes *int
	Rating                 float64
	EarningsToday          float64
	EarningsThisMonth      float64
}

// Dispatchable reports whether the courier may receive a new assignment.
func (c Courier) Dispatchable() bool {
	return c.IsAvailable && c.IsVerified && c.IsActive
}

// NewCourier carries registration data for a courier.
type NewCourier struct {
	Name          string
	Phone         string
	Email         *string
	VehicleType   VehicleType
	VehicleNumber string
}

// rePhone is a regex to validate phone numbers
var rePhone = regexp.MustCompile(`^\+[0-9]{10,14}$`)

// ValidatePhone validates the phone number format
func ValidatePhone(s string) bool {
	return rePhone.MatchString(s)
}

// Validate checks registration data.
func (n NewCourier) Validate() bool {
	return strings.TrimSpace(n.Name) != "" &&
		ValidatePhone(n.Phone) &&
		n.VehicleType.Valid() &&
		strings.TrimSpace(n.VehicleNumber) != ""
}
