package events

import (
	"encoding/json"
	"fmt"
	"time"

	"courier-dispatch/internal/apperr"
)

// Encode renders e as a flat JSON object tagged with "type".
func Encode(e Event) ([]byte, error) {
	switch v := e.(type) {
	case Remote:
		return Encode(v.Event)
	case LocationUpdated, StatusUpdated, OrderAssigned, CourierOnline, CourierOffline, EmergencyAlert:
		return tagged(e.Kind(), e)
	default:
		return nil, fmt.Errorf("encode event %T: %w", e, apperr.ErrInvalid)
	}
}

func tagged(k Kind, v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", k, err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encode %s: %w", k, err)
	}
	kind, _ := json.Marshal(k)
	fields["type"] = kind
	return json.Marshal(fields)
}

// Decode parses a wire message produced by Encode.
func Decode(data []byte) (Event, error) {
	var probe struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode event: %w", apperr.ErrInvalid)
	}
	var (
		ev  Event
		err error
	)
	switch probe.Type {
	case KindLocationUpdate:
		ev, err = decodeAs[LocationUpdated](data)
	case KindStatusUpdate:
		ev, err = decodeAs[StatusUpdated](data)
	case KindOrderAssigned:
		ev, err = decodeAs[OrderAssigned](data)
	case KindCourierOnline:
		ev, err = decodeAs[CourierOnline](data)
	case KindCourierOffline:
		ev, err = decodeAs[CourierOffline](data)
	case KindEmergencyAlert:
		ev, err = decodeAs[EmergencyAlert](data)
	default:
		return nil, fmt.Errorf("decode event type %q: %w", probe.Type, apperr.ErrInvalid)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", probe.Type, apperr.ErrInvalid)
	}
	return ev, nil
}

func decodeAs[T Event](data []byte) (Event, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Pong is the heartbeat acknowledgement sent in reply to a client ping.
func Pong(now time.Time) []byte {
	out, _ := json.Marshal(struct {
		Type      string    `json:"type"`
		Timestamp time.Time `json:"timestamp"`
	}{Type: "pong", Timestamp: now.UTC()})
	return out
}
