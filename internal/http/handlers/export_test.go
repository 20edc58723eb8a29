package handlers

import (
	"net/http"

	"courier-dispatch/internal/realtime"
)

// SetUpgrader replaces the websocket upgrade step.
func SetUpgrader(h *RealtimeHandler, fn func(http.ResponseWriter, *http.Request) (realtime.Conn, error)) {
	h.upgrade = fn
}
