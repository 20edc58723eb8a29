package app

import (
	"context"
	"errors"
	"time"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/hub"
	"courier-dispatch/internal/transport/kafka"
)

type eventsInbound interface {
	Handle(ctx context.Context, origin string, payload []byte) error
}

// makeEventsKafka feeds events-topic records to the inbound bridge. Records
// that cannot be decoded, or that arrive after the hub closed, are skipped.
func makeEventsKafka(in eventsInbound, timeout time.Duration) kafka.RecordFunc {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return func(ctx context.Context, rec kafka.Record) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		err := in.Handle(ctx, rec.Header(kafka.OriginHeader), rec.Value)
		if errors.Is(err, apperr.ErrInvalid) || errors.Is(err, hub.ErrClosed) {
			return kafka.Permanent(err)
		}
		return err
	}
}
