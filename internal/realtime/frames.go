package realtime

import (
	"context"
	"encoding/json"
	"strings"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/events"
	"courier-dispatch/internal/logx"
)

// Client frame types
const (
	framePing      = "ping"
	framePong      = "pong"
	frameEmergency = "emergency"
)

type clientFrame struct {
	Type      string   `json:"type"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Message   *string  `json:"message"`
}

// handleFrame processes one client frame and returns an optional direct reply.
func (m *Manager) handleFrame(ctx context.Context, c Connection, data []byte) []byte {
	var f clientFrame
	if err := json.Unmarshal(data, &f); err != nil {
		m.logger.Debug("ignoring malformed frame", logx.String("conn_id", c.ID.String()))
		return nil
	}

	switch f.Type {
	case framePing:
		return events.Pong(m.now())
	case framePong:
		return nil
	case frameEmergency:
		m.handleEmergency(ctx, c, f)
		return nil
	default:
		m.logger.Debug("ignoring unknown frame", logx.String("conn_id", c.ID.String()), logx.String("type", f.Type))
		return nil
	}
}

func (m *Manager) handleEmergency(ctx context.Context, c Connection, f clientFrame) {
	// only couriers with a known identity may raise alerts
	if !c.Identity.IsCourier() || m.emergency == nil {
		return
	}
	if f.Latitude == nil || f.Longitude == nil || f.Message == nil || strings.TrimSpace(*f.Message) == "" {
		m.logger.Debug("ignoring incomplete emergency frame", logx.String("conn_id", c.ID.String()))
		return
	}
	at := domain.Coordinate{Lat: *f.Latitude, Lng: *f.Longitude}
	if !at.Valid() {
		return
	}
	if err := m.emergency.Raise(ctx, c.Identity.ID, at, *f.Message); err != nil {
		m.logger.Error("emergency alert not delivered",
			logx.String("courier_id", c.Identity.ID.String()),
			logx.Err(err),
		)
	}
}
