// Package realtime owns live connections: registration, per-connection
// duties, and role-scoped delivery of hub events.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/events"
	"courier-dispatch/internal/hub"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/ratelimit"
)

// Bus is the hub as seen by connections.
type Bus interface {
	Publish(ctx context.Context, e events.Event) error
	Subscribe() (*hub.Subscription, error)
}

// EmergencyReporter handles courier-originated emergency reports.
type EmergencyReporter interface {
	Raise(ctx context.Context, courierID uuid.UUID, at domain.Coordinate, message string) error
}

// Presence tracks which couriers are connected and where they were last seen.
type Presence interface {
	LastLocation(ctx context.Context, courierID uuid.UUID) (domain.Coordinate, bool, error)
	MarkOnline(ctx context.Context, courierID uuid.UUID) error
	MarkOffline(ctx context.Context, courierID uuid.UUID) error
}

// Observer receives connection telemetry.
type Observer interface {
	ConnectionsChanged(n int)
	FrameThrottled()
}

// Config holds per-connection settings.
type Config struct {
	// HeartbeatTimeout ends a connection that sends nothing for this long. 0 disables.
	HeartbeatTimeout time.Duration
	WriteTimeout     time.Duration
	OutboundBuffer   int
}

// Manager registers live connections and runs their duties.
type Manager struct {
	registry  *Registry
	bus       Bus
	emergency EmergencyReporter
	presence  Presence
	limiter   ratelimit.Limiter
	observer  Observer
	logger    logx.Logger
	cfg       Config
	now       func() time.Time

	mu       sync.Mutex
	closing  bool
	couriers map[uuid.UUID]*presenceRef
	wg       sync.WaitGroup
}

// presenceRef counts a courier's live connections. Announcements for one
// courier run under its lock so online and offline cannot reorder.
type presenceRef struct {
	conns    int
	online   bool
	announce sync.Mutex
}

// ErrShuttingDown is returned when a connection arrives after Wait began.
var ErrShuttingDown = errors.New("realtime: manager shutting down")

// Deps are the Manager collaborators. Emergency, Presence, Limiter and Observer are optional.
type Deps struct {
	Registry  *Registry
	Bus       Bus
	Emergency EmergencyReporter
	Presence  Presence
	Limiter   ratelimit.Limiter
	Observer  Observer
	Logger    logx.Logger
}

// NewManager creates a Manager.
func NewManager(d Deps, cfg Config) *Manager {
	if d.Registry == nil {
		d.Registry = NewRegistry()
	}
	if d.Limiter == nil {
		d.Limiter = ratelimit.Nop{}
	}
	if d.Logger == nil {
		d.Logger = logx.Nop()
	}
	if cfg.OutboundBuffer <= 0 {
		cfg.OutboundBuffer = 64
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &Manager{
		registry:  d.Registry,
		bus:       d.Bus,
		emergency: d.Emergency,
		presence:  d.Presence,
		limiter:   d.Limiter,
		observer:  d.Observer,
		logger:    d.Logger,
		cfg:       cfg,
		now:       time.Now,
		couriers:  make(map[uuid.UUID]*presenceRef),
	}
}

// Registry exposes the live connection registry for admin queries.
func (m *Manager) Registry() *Registry { return m.registry }

// Count returns the number of live connections.
func (m *Manager) Count() int { return m.registry.Count() }

// CountByRole returns live connection counts per role.
func (m *Manager) CountByRole() map[domain.Role]int { return m.registry.CountByRole() }

// Serve runs the connection until the peer leaves, a duty fails, or ctx ends.
// A normal close returns nil.
func (m *Manager) Serve(ctx context.Context, conn Conn, id domain.Identity) error {
	c, sub, err := m.open(ctx, id)
	if err != nil {
		_ = conn.Close()
		return err
	}
	return m.run(ctx, conn, c, sub)
}

// Register opens an in-memory session for id and serves it in the background.
// The session ends when it is closed, ctx ends, or the hub shuts down.
func (m *Manager) Register(ctx context.Context, id domain.Identity) (*Session, error) {
	c, sub, err := m.open(ctx, id)
	if err != nil {
		return nil, err
	}
	pc := newPipeConn(m.cfg.OutboundBuffer)
	s := &Session{ID: c.ID, conn: pc, stopped: make(chan struct{})}

	go func() {
		defer close(s.stopped)
		if err := m.run(ctx, pc, c, sub); err != nil {
			m.logger.Warn("session ended with error", logx.String("conn_id", c.ID.String()), logx.Err(err))
		}
	}()
	return s, nil
}

// Wait blocks until every served connection has been cleaned up or ctx ends.
// Connections opened after Wait is called fail with ErrShuttingDown.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	m.closing = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) open(ctx context.Context, id domain.Identity) (Connection, *hub.Subscription, error) {
	if !id.Valid() {
		return Connection{}, nil, fmt.Errorf("connection role %s: %w", id.Role, apperr.ErrInvalid)
	}
	sub, err := m.bus.Subscribe()
	if err != nil {
		return Connection{}, nil, fmt.Errorf("subscribe: %w", err)
	}

	// A successful open owns one wg slot, released when the connection is cleaned up.
	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		sub.Close()
		return Connection{}, nil, ErrShuttingDown
	}
	m.wg.Add(1)
	var ref *presenceRef
	if id.IsCourier() {
		ref = m.couriers[id.ID]
		if ref == nil {
			ref = &presenceRef{}
			m.couriers[id.ID] = ref
		}
		ref.conns++
	}
	m.mu.Unlock()

	c := Connection{ID: uuid.New(), Identity: id, ConnectedAt: m.now()}
	m.registry.Add(c)
	m.connectionsChanged()

	m.logger.Info("connection opened",
		logx.String("event", "connection_opened"),
		logx.String("conn_id", c.ID.String()),
		logx.String("role", id.Role.String()),
	)

	if ref != nil {
		ref.announce.Lock()
		m.mu.Lock()
		first := ref.conns > 0 && !ref.online
		if first {
			ref.online = true
		}
		m.mu.Unlock()
		if first {
			m.announceOnline(ctx, id.ID)
		}
		ref.announce.Unlock()
	}
	return c, sub, nil
}

func (m *Manager) run(ctx context.Context, conn Conn, c Connection, sub *hub.Subscription) error {
	defer m.close(ctx, conn, c, sub)

	out := make(chan []byte, m.cfg.OutboundBuffer)
	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, func() { _ = conn.Close() })
	defer stop()

	g.Go(func() error { return m.readLoop(gctx, conn, c, out) })
	g.Go(func() error { return m.broadcastLoop(gctx, c, sub, out) })
	g.Go(func() error { return m.writeLoop(gctx, conn, out) })

	err := g.Wait()
	if isNormalClose(err) {
		return nil
	}
	return fmt.Errorf("connection %s: %w", c.ID, errors.Join(apperr.ErrTransport, err))
}

func (m *Manager) close(ctx context.Context, conn Conn, c Connection, sub *hub.Subscription) {
	_ = conn.Close()
	sub.Close()
	m.limiter.Forget(c.ID.String())
	m.registry.Remove(c.ID)
	m.connectionsChanged()

	m.logger.Info("connection closed",
		logx.String("event", "connection_closed"),
		logx.String("conn_id", c.ID.String()),
		logx.String("role", c.Identity.Role.String()),
	)

	if c.Identity.IsCourier() {
		m.courierLeft(context.WithoutCancel(ctx), c.Identity.ID)
	}
	m.wg.Done()
}

// courierLeft announces the courier offline once its last connection is gone.
func (m *Manager) courierLeft(ctx context.Context, courierID uuid.UUID) {
	m.mu.Lock()
	ref := m.couriers[courierID]
	if ref == nil {
		m.mu.Unlock()
		return
	}
	ref.conns--
	m.mu.Unlock()

	ref.announce.Lock()
	defer ref.announce.Unlock()

	m.mu.Lock()
	last := ref.conns == 0 && ref.online
	if last {
		ref.online = false
	}
	m.mu.Unlock()
	if last {
		m.announceOffline(ctx, courierID)
	}

	m.mu.Lock()
	if ref.conns == 0 && !ref.online && m.couriers[courierID] == ref {
		delete(m.couriers, courierID)
	}
	m.mu.Unlock()
}

// readLoop handles client frames. Invalid and throttled frames are ignored.
func (m *Manager) readLoop(ctx context.Context, conn Conn, c Connection, out chan<- []byte) error {
	for {
		data, err := m.read(ctx, conn)
		if err != nil {
			return err
		}
		if !m.limiter.Allow(c.ID.String()) {
			if m.observer != nil {
				m.observer.FrameThrottled()
			}
			m.logger.Debug("inbound frame throttled", logx.String("conn_id", c.ID.String()))
			continue
		}
		reply := m.handleFrame(ctx, c, data)
		if reply == nil {
			continue
		}
		select {
		case out <- reply:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Manager) read(ctx context.Context, conn Conn) ([]byte, error) {
	if m.cfg.HeartbeatTimeout <= 0 {
		return conn.Read(ctx)
	}
	rctx, cancel := context.WithTimeoutCause(ctx, m.cfg.HeartbeatTimeout, errHeartbeat)
	defer cancel()
	data, err := conn.Read(rctx)
	if err != nil && context.Cause(rctx) == errHeartbeat {
		return nil, errHeartbeat
	}
	return data, err
}

// broadcastLoop forwards hub events that the connection may see.
func (m *Manager) broadcastLoop(ctx context.Context, c Connection, sub *hub.Subscription, out chan<- []byte) error {
	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				return hub.ErrClosed
			}
			if !events.Visible(ev, c.Identity) {
				continue
			}
			data, err := events.Encode(ev)
			if err != nil {
				m.logger.Error("encode event failed", logx.String("kind", string(ev.Kind())), logx.Err(err))
				continue
			}
			select {
			case out <- data:
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Manager) writeLoop(ctx context.Context, conn Conn, out <-chan []byte) error {
	for {
		select {
		case data := <-out:
			wctx, cancel := context.WithTimeout(ctx, m.cfg.WriteTimeout)
			err := conn.Write(wctx, data)
			cancel()
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Manager) announceOnline(ctx context.Context, courierID uuid.UUID) {
	ev := events.CourierOnline{CourierID: courierID}
	if m.presence != nil {
		if err := m.presence.MarkOnline(ctx, courierID); err != nil {
			m.logger.Warn("presence mark online failed", logx.String("courier_id", courierID.String()), logx.Err(err))
		}
		at, ok, err := m.presence.LastLocation(ctx, courierID)
		switch {
		case err != nil:
			m.logger.Warn("presence lookup failed", logx.String("courier_id", courierID.String()), logx.Err(err))
		case ok:
			ev.Latitude, ev.Longitude = &at.Lat, &at.Lng
		}
	}
	if err := m.bus.Publish(ctx, ev); err != nil {
		m.logger.Warn("publish courier online failed", logx.String("courier_id", courierID.String()), logx.Err(err))
	}
}

func (m *Manager) announceOffline(ctx context.Context, courierID uuid.UUID) {
	if m.presence != nil {
		if err := m.presence.MarkOffline(ctx, courierID); err != nil {
			m.logger.Warn("presence mark offline failed", logx.String("courier_id", courierID.String()), logx.Err(err))
		}
	}
	err := m.bus.Publish(ctx, events.CourierOffline{CourierID: courierID})
	if err != nil && !errors.Is(err, hub.ErrClosed) {
		m.logger.Warn("publish courier offline failed", logx.String("courier_id", courierID.String()), logx.Err(err))
	}
}

func (m *Manager) connectionsChanged() {
	if m.observer != nil {
		m.observer.ConnectionsChanged(m.registry.Count())
	}
}

var errHeartbeat = errors.New("heartbeat timeout")

func isNormalClose(err error) bool {
	return err == nil ||
		errors.Is(err, ErrConnClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, hub.ErrClosed) ||
		errors.Is(err, context.Canceled)
}
