// Package geo holds great-circle helpers used by courier matching.
package geo

import (
	"math"

	"courier-dispatch/internal/domain"
)

// EarthRadiusKm is the mean Earth radius used by DistanceKm.
const EarthRadiusKm = 6371.0

// averageSpeedKmh is the assumed courier speed for arrival estimates.
const averageSpeedKmh = 25.0

// DistanceKm returns the haversine distance between two points in kilometers.
func DistanceKm(a, b domain.Coordinate) float64 {
	lat1 := degreesToRadians(a.Lat)
	lat2 := degreesToRadians(b.Lat)
	dlat := lat2 - lat1
	dlon := degreesToRadians(b.Lng - a.Lng)

	h := math.Pow(math.Sin(dlat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dlon/2), 2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// ArrivalMinutes estimates whole minutes to cover distanceKm at the average speed.
func ArrivalMinutes(distanceKm float64) int {
	if distanceKm <= 0 {
		return 0
	}
	return int(math.Floor(distanceKm / averageSpeedKmh * 60))
}

// Box is a latitude/longitude bounding box.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// BoundingBox returns a box that contains every point within radiusKm of center.
// Used to narrow candidate queries before exact haversine filtering.
func BoundingBox(center domain.Coordinate, radiusKm float64) Box {
	dLat := radiusKm / EarthRadiusKm * 180 / math.Pi
	box := Box{
		MinLat: math.Max(center.Lat-dLat, -90),
		MaxLat: math.Min(center.Lat+dLat, 90),
		MinLng: -180,
		MaxLng: 180,
	}
	cosLat := math.Cos(degreesToRadians(center.Lat))
	if box.MaxLat >= 90 || box.MinLat <= -90 || cosLat < 1e-9 {
		return box
	}
	// Widest longitude offset of the circle, reached north or south of the
	// center parallel.
	s := math.Sin(radiusKm/EarthRadiusKm) / cosLat
	if s >= 1 {
		return box
	}
	dLng := math.Asin(s) * 180 / math.Pi
	if center.Lng-dLng < -180 || center.Lng+dLng > 180 {
		return box
	}
	box.MinLng = center.Lng - dLng
	box.MaxLng = center.Lng + dLng
	return box
}

// Contains reports whether c lies inside the box.
func (b Box) Contains(c domain.Coordinate) bool {
	return c.Lat >= b.MinLat && c.Lat <= b.MaxLat && c.Lng >= b.MinLng && c.Lng <= b.MaxLng
}

func degreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
