// Package hub is the in-process publish/subscribe bus for domain events.
package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/events"
	"courier-dispatch/internal/logx"
)

// ErrClosed is returned by Publish and Subscribe after Close.
var ErrClosed = fmt.Errorf("hub closed: %w", apperr.ErrTransport)

// DefaultBuffer is the per-subscriber buffer when none is configured.
const DefaultBuffer = 256

// Hub fans each published event out to every subscriber.
// Publish never blocks on a slow subscriber: when a subscriber buffer is full
// its oldest pending event is dropped.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool

	buffer  int
	dropped prometheus.Counter
	logger  logx.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithBuffer sets the per-subscriber buffer size.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithDropCounter counts events dropped on full subscriber buffers.
func WithDropCounter(c prometheus.Counter) Option {
	return func(h *Hub) { h.dropped = c }
}

// New creates a running hub.
func New(logger logx.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = logx.Nop()
	}
	h := &Hub{
		subs:   make(map[uint64]*Subscription),
		buffer: DefaultBuffer,
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish delivers e to every current subscriber.
func (h *Hub) Publish(ctx context.Context, e events.Event) error {
	if e == nil {
		return fmt.Errorf("publish nil event: %w", apperr.ErrInvalid)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("publish %s: %w", e.Kind(), errors.Join(apperr.ErrTransport, err))
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return ErrClosed
	}
	for _, s := range h.subs {
		if s.offer(e) {
			if h.dropped != nil {
				h.dropped.Inc()
			}
			h.logger.Debug("hub subscriber buffer full, dropped oldest",
				logx.Int64("subscriber", int64(s.id)),
				logx.String("kind", string(e.Kind())),
			)
		}
	}
	return nil
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}
	h.nextID++
	s := &Subscription{
		id:  h.nextID,
		ch:  make(chan events.Event, h.buffer),
		hub: h,
	}
	h.subs[s.id] = s
	return s, nil
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close stops the hub and closes every subscription channel. Idempotent.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[uint64]*Subscription)
	h.mu.Unlock()

	for _, s := range subs {
		s.shut()
	}
	h.logger.Info("hub closed", logx.Int("subscribers", len(subs)))
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// Subscription is one subscriber's bounded event stream.
type Subscription struct {
	id  uint64
	hub *Hub

	mu     sync.Mutex
	ch     chan events.Event
	closed bool
}

// C returns the event stream. It is closed on Close or when the hub closes.
func (s *Subscription) C() <-chan events.Event { return s.ch }

// Close unsubscribes. Idempotent.
func (s *Subscription) Close() {
	s.hub.remove(s.id)
	s.shut()
}

func (s *Subscription) shut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// offer enqueues e, evicting the oldest pending events while the buffer is full.
// Reports whether anything was dropped.
func (s *Subscription) offer(e events.Event) (dropped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	for {
		select {
		case s.ch <- e:
			return dropped
		default:
		}
		select {
		case <-s.ch:
			dropped = true
		default:
		}
	}
}
