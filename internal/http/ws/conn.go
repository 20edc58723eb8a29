// Package ws adapts gorilla websocket connections to realtime.Conn.
package ws

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"courier-dispatch/internal/realtime"
)

const (
	readLimit    = 64 << 10
	closeTimeout = time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browser clients connect from any origin; identity comes from the query.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Upgrade switches the request to the websocket protocol.
// On failure the upgrader has already answered the client.
func Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return New(c), nil
}

// Conn is a websocket transport. Reads and writes may run concurrently with each other and with Close.
type Conn struct {
	ws     *websocket.Conn
	wmu    sync.Mutex
	closed atomic.Bool
	once   sync.Once
}

// New wraps an established websocket connection.
func New(c *websocket.Conn) *Conn {
	c.SetReadLimit(readLimit)
	return &Conn{ws: c}
}

// Read returns the next text or binary frame.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() { _ = c.ws.SetReadDeadline(time.Now()) })
	defer stop()

	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, c.mapErr(ctx, err)
	}
	return data, nil
}

// Write sends one text frame, honoring the ctx deadline.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	if c.closed.Load() {
		return realtime.ErrConnClosed
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return c.mapErr(ctx, err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return c.mapErr(ctx, err)
	}
	return nil
}

// Close sends a normal close frame and releases the socket. Idempotent.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		c.closed.Store(true)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeTimeout))
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) mapErr(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case c.closed.Load():
		return realtime.ErrConnClosed
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		return io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return io.EOF
	default:
		return err
	}
}

var _ realtime.Conn = (*Conn)(nil)
