package signal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/voxhall/voxhall/internal/core"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// WSConn is an indirection over *websocket.Conn to ease testing.
type WSConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(mt int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Conn is one participant's signaling endpoint. Outbound frames go through a
// buffered channel; a full buffer surfaces as ErrBackpressure and the frame
// is dropped rather than blocking the room actor. Sends race disconnects, so
// TrySend and Close share a mutex: a frame for a closed connection degrades
// to ErrClosed instead of hitting the closed channel.
type Conn struct {
	ws WSConn

	mu     sync.Mutex
	send   chan core.Frame
	closed bool
}

func NewConn(ws WSConn) *Conn {
	return &Conn{
		ws:   ws,
		send: make(chan core.Frame, 64),
	}
}

func (c *Conn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.ws.Close()
}

// writePump drains the send channel to the socket, pinging on pingPeriod to
// keep intermediaries from dropping the connection.
func (c *Conn) writePump(ctx context.Context, pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Str("module", "adapters.signal").Err(err).Msg("write pump exit")
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
