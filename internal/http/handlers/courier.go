package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

// CourierHandler serves HTTP endpoints for courier resources.
type CourierHandler struct {
	uc       CourierUsecase
	radiusKm float64
	logger   logx.Logger
}

// NewCourierHandler wires a CourierUsecase into HTTP handlers.
// radiusKm is the search radius used by Nearby when the query omits one.
func NewCourierHandler(logger logx.Logger, uc CourierUsecase, radiusKm float64) *CourierHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	if radiusKm <= 0 {
		radiusKm = 10
	}
	return &CourierHandler{uc: uc, radiusKm: radiusKm, logger: logger}
}

// Register handles POST /couriers.
func (h *CourierHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerCourierRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	c, err := h.uc.Register(r.Context(), req.toModel())
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	w.Header().Set("Location", "/couriers/"+c.ID.String())
	writeJSON(h.logger, w, r, http.StatusCreated, courierToResponse(c))
}

// Get handles GET /couriers/{id}.
func (h *CourierHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	c, err := h.uc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, courierToResponse(*c))
}

// Verify handles POST /couriers/{id}/verify.
func (h *CourierHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.uc.Verify(r.Context(), id); err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, map[string]string{"status": "verified"})
}

// Deactivate handles POST /couriers/{id}/deactivate.
func (h *CourierHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.uc.Deactivate(r.Context(), id); err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, map[string]string{"status": "deactivated"})
}

// SetAvailability handles PUT /couriers/{id}/availability.
func (h *CourierHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req availabilityRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	if req.IsAvailable == nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "is_available is required")
		return
	}
	if err := h.uc.SetAvailability(r.Context(), id, *req.IsAvailable); err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, map[string]bool{"is_available": *req.IsAvailable})
}

// UpdateLocation handles POST /couriers/{id}/location.
func (h *CourierHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req locationRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "latitude and longitude are required")
		return
	}

	err := h.uc.UpdateLocation(r.Context(), domain.LocationUpdate{
		CourierID: id,
		Point:     domain.Coordinate{Lat: *req.Latitude, Lng: *req.Longitude},
		Speed:     req.Speed,
		Heading:   req.Heading,
	})
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Nearby handles GET /couriers/nearby?lat=..&lng=..&radius_km=..
func (h *CourierHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	lat, okLat, errLat := floatQuery(r, "lat")
	lng, okLng, errLng := floatQuery(r, "lng")
	if errLat != nil || errLng != nil || !okLat || !okLng {
		writeError(h.logger, w, r, http.StatusBadRequest, "lat and lng are required numbers")
		return
	}
	radius, ok, err := floatQuery(r, "radius_km")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid radius_km")
		return
	}
	if !ok {
		radius = h.radiusKm
	}

	list, err := h.uc.Nearby(r.Context(), domain.Coordinate{Lat: lat, Lng: lng}, radius)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, candidatesToResponse(list))
}

func (h *CourierHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuidFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}
