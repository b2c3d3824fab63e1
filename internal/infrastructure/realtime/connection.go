package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 128
)

var (
	ErrConnectionClosed = errors.New("realtime: connection closed")
	ErrBufferFull       = errors.New("realtime: connection buffer exceeded")
	// ErrFrameDropped is returned by Send when the buffer is held by a replay.
	ErrFrameDropped = errors.New("realtime: frame dropped during replay")
)

// Socket is the write side of a websocket that Connection drives.
// *websocket.Conn satisfies it.
type Socket interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Connection wraps a websocket and serialises outbound writes through a
// buffered channel drained by a single writer goroutine. Safe for concurrent use.
type Connection struct {
	ID          string
	UserID      int64
	ConnectedAt time.Time

	ws    Socket
	send  chan []byte
	once  sync.Once
	start sync.Once
	close chan struct{}

	replaying atomic.Int32
}

// NewConnection constructs a Connection for the given user.
func NewConnection(userID int64, ws Socket) *Connection {
	return &Connection{
		ID:          uuid.NewString(),
		UserID:      userID,
		ConnectedAt: time.Now(),
		ws:          ws,
		send:        make(chan []byte, sendBuffer),
		close:       make(chan struct{}),
	}
}

// Start launches the write loop. Extra calls are no-ops.
func (c *Connection) Start() {
	c.start.Do(func() { go c.writeLoop() })
}

// Send enqueues payload for delivery. A slow client whose buffer is full is
// disconnected to keep memory bounded. While a replay holds the buffer the
// frame is dropped instead; the unread replay still covers it.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.close:
		return ErrConnectionClosed
	default:
	}
	select {
	case <-c.close:
		return ErrConnectionClosed
	case c.send <- payload:
		return nil
	default:
		if c.replaying.Load() > 0 {
			return ErrFrameDropped
		}
		c.Close(websocket.CloseGoingAway, "send buffer full")
		return ErrBufferFull
	}
}

// SendWait enqueues payload, waiting for buffer space instead of dropping
// the client. Used for bulk replay on a fresh connection.
func (c *Connection) SendWait(ctx context.Context, payload []byte) error {
	select {
	case <-c.close:
		return ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	case c.send <- payload:
		return nil
	}
}

// BeginReplay marks the connection as draining a backlog through SendWait.
// Call the returned func when the replay ends.
func (c *Connection) BeginReplay() (end func()) {
	c.replaying.Add(1)
	var once sync.Once
	return func() { once.Do(func() { c.replaying.Add(-1) }) }
}

// Done is closed once the connection has been closed.
func (c *Connection) Done() <-chan struct{} {
	return c.close
}

// Close terminates the connection and stops the write loop.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.close)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.close:
			return
		case msg := <-c.send:
			if err := c.writeMessage(msg); err != nil {
				c.Close(websocket.CloseInternalServerErr, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.writePing(); err != nil {
				c.Close(websocket.CloseInternalServerErr, "ping failed")
				return
			}
		}
	}
}

func (c *Connection) writeMessage(payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *Connection) writePing() error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}
