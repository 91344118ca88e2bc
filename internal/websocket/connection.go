package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

// Connection wraps a websocket with a single writer goroutine. All
// outbound frames are enqueued to a buffered channel and written by one
// goroutine, so SendJSON is safe from any caller and never performs
// network I/O itself. When the buffer is full the frame is refused
// immediately rather than stalling the sender — the coordinator calls
// SendJSON while holding classroom state.
type Connection struct {
	id        string
	conn      *websocket.Conn
	writeCh   chan []byte
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection wraps conn and starts its writer goroutine. sendBuffer
// is the outbound queue depth per connection.
func NewConnection(conn *websocket.Conn, sendBuffer int) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:      uuid.New().String(),
		conn:    conn,
		writeCh: make(chan []byte, sendBuffer),
		ctx:     ctx,
		cancel:  cancel,
	}

	go c.writeLoop()

	return c
}

// ID returns the process-unique connection identifier.
func (c *Connection) ID() string {
	return c.id
}

// writeLoop is the single writer. On shutdown it flushes whatever is
// already queued — eviction signals are enqueued just before Close, and
// they should still reach the peer — then closes the socket.
func (c *Connection) writeLoop() {
	defer func() { _ = c.conn.Close() }()

	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-c.ctx.Done():
			c.flush()
			return
		}
	}
}

// flush makes a best-effort pass over frames queued before close.
func (c *Connection) flush() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}

// SendJSON enqueues a JSON frame. Fails fast with ErrSendBufferFull when
// the peer cannot keep up, and ErrConnectionClosed after Close.
func (c *Connection) SendJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		return ErrSendBufferFull
	}
}

// Close signals the writer goroutine to flush and close the socket.
// Safe to call multiple times and from any goroutine; it never blocks on
// the peer.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
	})
	return nil
}
