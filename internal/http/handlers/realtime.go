package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/http/ws"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/realtime"
)

// RealtimeHandler upgrades clients to live connections.
type RealtimeHandler struct {
	conns   ConnectionServer
	upgrade func(http.ResponseWriter, *http.Request) (realtime.Conn, error)
	logger  logx.Logger
}

// NewRealtimeHandler creates a handler upgrading with gorilla websocket.
func NewRealtimeHandler(logger logx.Logger, conns ConnectionServer) *RealtimeHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	return &RealtimeHandler{
		conns: conns,
		upgrade: func(w http.ResponseWriter, r *http.Request) (realtime.Conn, error) {
			return ws.Upgrade(w, r)
		},
		logger: logger,
	}
}

// Serve handles GET /ws?role=..&id=..
// Couriers must pass their id; other roles may omit it.
func (h *RealtimeHandler) Serve(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromQuery(r)
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := h.upgrade(w, r)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", logx.String("req_id", reqID(r.Context())), logx.Err(err))
		return
	}

	if err := h.conns.Serve(r.Context(), conn, id); err != nil {
		h.logger.Warn("connection ended with error",
			logx.String("role", id.Role.String()),
			logx.Err(err),
		)
	}
}

type queryError string

func (e queryError) Error() string { return string(e) }

func identityFromQuery(r *http.Request) (domain.Identity, error) {
	q := r.URL.Query()
	role, err := domain.ParseRole(q.Get("role"))
	if err != nil {
		return domain.Identity{}, queryError("invalid role")
	}
	id := domain.Identity{Role: role}

	if raw := strings.TrimSpace(q.Get("id")); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return domain.Identity{}, queryError("invalid id")
		}
		id.ID = parsed
	}
	if role == domain.RoleCourier && id.ID == uuid.Nil {
		return domain.Identity{}, queryError("courier connections require id")
	}
	return id, nil
}
