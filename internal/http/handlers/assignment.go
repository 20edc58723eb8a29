package handlers

import (
	"net/http"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/service/dispatch"
)

// AssignmentHandler serves dispatch and lifecycle endpoints.
type AssignmentHandler struct {
	dispatch DispatchUsecase
	status   StatusUsecase
	logger   logx.Logger
}

// NewAssignmentHandler creates a new AssignmentHandler.
func NewAssignmentHandler(logger logx.Logger, d DispatchUsecase, s StatusUsecase) *AssignmentHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	return &AssignmentHandler{dispatch: d, status: s, logger: logger}
}

// Assign handles POST /assignments.
func (h *AssignmentHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	res, err := h.dispatch.AssignOrder(r.Context(), dispatch.Request{
		OrderID:            req.OrderID,
		PreferredCourierID: req.PreferredCourierID,
		MaxDistanceKm:      req.MaxDistanceKm,
	})
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusCreated, assignResultToResponse(res))
}

// UpdateStatus handles POST /assignments/{id}/status.
func (h *AssignmentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuidFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req statusRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	if !req.Status.Valid() {
		writeError(h.logger, w, r, http.StatusBadRequest, "unknown status")
		return
	}

	a, err := h.status.UpdateStatus(r.Context(), domain.StatusChange{
		AssignmentID:    id,
		CourierID:       req.CourierID,
		Status:          req.Status,
		Notes:           req.Notes,
		ProofOfDelivery: req.ProofOfDelivery,
	})
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, assignmentToResponse(a))
}

// Cancel handles POST /assignments/{id}/cancel. The body may ask for "failed" instead of "cancelled".
func (h *AssignmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuidFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req cancelRequest
	if r.ContentLength != 0 {
		if ok := decodeJSON(h.logger, w, r, &req); !ok {
			return
		}
	}
	if req.Status == "" {
		req.Status = domain.StatusCancelled
	}
	if !req.Status.Valid() {
		writeError(h.logger, w, r, http.StatusBadRequest, "unknown status")
		return
	}

	a, err := h.status.Cancel(r.Context(), id, req.Status, req.Notes)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, assignmentToResponse(a))
}
