package handlers

import (
	"net/http"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

// AdminHandler serves operator read models.
type AdminHandler struct {
	analytics AnalyticsUsecase
	conns     ConnectionServer
	logger    logx.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(logger logx.Logger, a AnalyticsUsecase, conns ConnectionServer) *AdminHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	return &AdminHandler{analytics: a, conns: conns, logger: logger}
}

type connectionsResponse struct {
	Total  int            `json:"total_connections"`
	ByRole map[string]int `json:"connections_by_type"`
}

// Connections handles GET /admin/connections.
func (h *AdminHandler) Connections(w http.ResponseWriter, r *http.Request) {
	counts := h.conns.CountByRole()
	resp := connectionsResponse{
		Total:  h.conns.Count(),
		ByRole: make(map[string]int, len(domain.Roles())),
	}
	for _, role := range domain.Roles() {
		resp.ByRole[role.String()] = counts[role]
	}
	writeJSON(h.logger, w, r, http.StatusOK, resp)
}

// Analytics handles GET /admin/analytics.
func (h *AdminHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	snap, err := h.analytics.Snapshot(r.Context())
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, snap)
}
