// Package matcher ranks dispatchable couriers by great-circle distance.
package matcher

import (
	"context"
	"fmt"
	"sort"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/geo"
)

// DefaultLimit caps the number of ranked candidates.
const DefaultLimit = 10

// CourierSource lists dispatchable couriers whose position lies inside box.
type CourierSource interface {
	DispatchableWithin(ctx context.Context, box geo.Box) ([]domain.Courier, error)
}

// Candidate is a ranked courier.
type Candidate struct {
	Courier        domain.Courier
	DistanceKm     float64
	ArrivalMinutes int
}

// Matcher finds the nearest couriers to a point.
type Matcher struct {
	src   CourierSource
	limit int
}

// New creates a Matcher returning at most limit candidates.
func New(src CourierSource, limit int) *Matcher {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Matcher{src: src, limit: limit}
}

// Nearest returns available, verified, active couriers within radiusKm of at,
// closest first. An empty result is not an error.
func (m *Matcher) Nearest(ctx context.Context, at domain.Coordinate, radiusKm float64) ([]Candidate, error) {
	if !at.Valid() || radiusKm <= 0 {
		return nil, apperr.ErrInvalid
	}

	couriers, err := m.src.DispatchableWithin(ctx, geo.BoundingBox(at, radiusKm))
	if err != nil {
		return nil, fmt.Errorf("list couriers: %w: %w", apperr.ErrInternal, err)
	}

	out := make([]Candidate, 0, len(couriers))
	for _, c := range couriers {
		if !c.Dispatchable() || c.Location == nil {
			continue
		}
		d := geo.DistanceKm(at, *c.Location)
		if d > radiusKm {
			continue
		}
		out = append(out, Candidate{Courier: c, DistanceKm: d, ArrivalMinutes: geo.ArrivalMinutes(d)})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	if len(out) > m.limit {
		out = out[:m.limit]
	}
	return out, nil
}
