// Package relay bridges the local hub and the shared events topic: Relay
// writes local events out, Inbound republishes events from other processes.
package relay

import (
	"context"
	"time"

	"courier-dispatch/internal/events"
	"courier-dispatch/internal/hub"
	"courier-dispatch/internal/logx"
)

// Source hands out hub subscriptions.
type Source interface {
	Subscribe() (*hub.Subscription, error)
}

// Writer writes one keyed record.
type Writer interface {
	Write(ctx context.Context, key, value []byte) error
}

const defaultWriteTimeout = 5 * time.Second

// Relay forwards every local hub event in its wire form, keyed by courier id.
// Events that arrived from the topic are not written back.
type Relay struct {
	src     Source
	out     Writer
	timeout time.Duration
	logger  logx.Logger
}

// New creates a relay. A non-positive timeout uses the default.
func New(src Source, out Writer, timeout time.Duration, logger logx.Logger) *Relay {
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Relay{
		src:     src,
		out:     out,
		timeout: timeout,
		logger:  logger.With(logx.String("component", "relay")),
	}
}

// Run forwards events until ctx is done or the hub closes.
func (r *Relay) Run(ctx context.Context) error {
	sub, err := r.src.Subscribe()
	if err != nil {
		return err
	}
	defer sub.Close()

	r.logger.Info("relay started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-sub.C():
			if !ok {
				r.logger.Info("relay stopped, hub closed")
				return nil
			}
			if _, remote := e.(events.Remote); remote {
				continue
			}
			r.forward(ctx, e)
		}
	}
}

func (r *Relay) forward(ctx context.Context, e events.Event) {
	payload, err := events.Encode(e)
	if err != nil {
		r.logger.Error("relay encode failed", logx.String("kind", string(e.Kind())), logx.Err(err))
		return
	}

	wctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.out.Write(wctx, []byte(e.Courier().String()), payload); err != nil {
		r.logger.Warn("relay write failed",
			logx.String("kind", string(e.Kind())),
			logx.String("courier_id", e.Courier().String()),
			logx.Err(err),
		)
		return
	}
	r.logger.Debug("relay event forwarded", logx.String("kind", string(e.Kind())))
}
