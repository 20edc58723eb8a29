package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrConnClosed is returned by Conn operations after the transport closed.
var ErrConnClosed = errors.New("connection closed")

// Conn is a message-oriented bidirectional transport.
// Read blocks until a frame arrives, ctx is done, or the transport closes.
// Close must be safe to call concurrently with Read and Write.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// pipeConn is an in-memory Conn backing sessions opened through Register.
type pipeConn struct {
	in   chan []byte
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func newPipeConn(buffer int) *pipeConn {
	return &pipeConn{
		in:   make(chan []byte, buffer),
		out:  make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func (p *pipeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-p.in:
		return msg, nil
	case <-p.done:
		return nil, ErrConnClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *pipeConn) Write(ctx context.Context, data []byte) error {
	select {
	case <-p.done:
		return ErrConnClosed
	default:
	}
	select {
	case p.out <- data:
		return nil
	case <-p.done:
		return ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeConn) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}

// Session is the caller's side of a registered connection.
type Session struct {
	ID uuid.UUID

	conn    *pipeConn
	stopped chan struct{}
}

// Send queues a client-originated frame.
func (s *Session) Send(ctx context.Context, frame []byte) error {
	select {
	case s.conn.in <- frame:
		return nil
	case <-s.conn.done:
		return ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Outbound carries filtered events and acknowledgements for the client.
func (s *Session) Outbound() <-chan []byte { return s.conn.out }

// Done is closed once the connection has been cleaned up.
func (s *Session) Done() <-chan struct{} { return s.stopped }

// Close ends the session.
func (s *Session) Close() error { return s.conn.Close() }
