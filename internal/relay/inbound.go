package relay

import (
	"context"
	"fmt"

	"courier-dispatch/internal/events"
	"courier-dispatch/internal/logx"
)

// Publisher accepts events for local fan-out.
type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// Inbound republishes events written to the topic by other processes into
// the local hub, wrapped as events.Remote.
type Inbound struct {
	origin string
	pub    Publisher
	logger logx.Logger
}

// NewInbound creates an Inbound for the process identified by origin.
func NewInbound(origin string, pub Publisher, logger logx.Logger) *Inbound {
	if logger == nil {
		logger = logx.Nop()
	}
	return &Inbound{
		origin: origin,
		pub:    pub,
		logger: logger.With(logx.String("component", "relay_inbound")),
	}
}

// Handle publishes one wire event written by origin. Records written by this
// process are ignored. Undecodable payloads return an apperr.ErrInvalid error.
func (in *Inbound) Handle(ctx context.Context, origin string, payload []byte) error {
	if origin == in.origin {
		return nil
	}
	ev, err := events.Decode(payload)
	if err != nil {
		return fmt.Errorf("inbound from %q: %w", origin, err)
	}
	if err := in.pub.Publish(ctx, events.Remote{Event: ev, Origin: origin}); err != nil {
		return fmt.Errorf("republish %s: %w", ev.Kind(), err)
	}
	in.logger.Debug("remote event republished",
		logx.String("kind", string(ev.Kind())),
		logx.String("origin", origin),
	)
	return nil
}
