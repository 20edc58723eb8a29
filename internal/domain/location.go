package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Coordinate is a WGS84 point in degrees.
type Coordinate struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// Valid checks the coordinate is within latitude/longitude bounds.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// LocationUpdate is an append-only courier position fact.
type LocationUpdate struct {
	CourierID uuid.UUID
	Point     Coordinate
	Speed     *float64 // km/h
	Heading   *float64 // degrees
	Timestamp time.Time
}

// AddressPoint extracts latitude/longitude from an opaque address payload.
func AddressPoint(raw json.RawMessage) (Coordinate, bool) {
	if len(raw) == 0 {
		return Coordinate{}, false
	}
	var probe struct {
		Lat *float64 `json:"latitude"`
		Lng *float64 `json:"longitude"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.Lat == nil || probe.Lng == nil {
		return Coordinate{}, false
	}
	c := Coordinate{Lat: *probe.Lat, Lng: *probe.Lng}
	return c, c.Valid()
}

// Emergency is a courier distress report.
type Emergency struct {
	ID        uuid.UUID
	CourierID uuid.UUID
	Point     Coordinate
	Message   string
	RaisedAt  time.Time
}
