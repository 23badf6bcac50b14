package gateway

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Conn is one live client connection: a websocket plus a buffered outbound
// queue drained by a dedicated write goroutine. Its identity is unique for
// the connection's lifetime and never reused.
//
// currentRoom and nickname are touched only by the connection's own read
// goroutine (event handling and disconnect cleanup run there), so they need
// no lock.
type Conn struct {
	id           string
	sock         *websocket.Conn
	send         chan []byte
	writeTimeout time.Duration
	pongTimeout  time.Duration
	logger       *zap.Logger

	mu     sync.Mutex
	closed bool

	currentRoom string
	nickname    string
}

func newConn(id string, sock *websocket.Conn, sendBuffer int, writeTimeout, pongTimeout time.Duration, logger *zap.Logger) *Conn {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Conn{
		id:           id,
		sock:         sock,
		send:         make(chan []byte, sendBuffer),
		writeTimeout: writeTimeout,
		pongTimeout:  pongTimeout,
		logger:       logger,
	}
}

// ID returns the connection's unique identity.
func (c *Conn) ID() string { return c.id }

// Room returns the id of the room this connection is currently in, or "".
func (c *Conn) Room() string { return c.currentRoom }

// Push enqueues pre-encoded wire bytes for delivery. It never blocks: a
// closed connection or a full buffer returns an error, and the caller drops
// the frame. One stalled peer must not stall fan-out to the rest of a room.
func (c *Conn) Push(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("connection %s is closed", c.id)
	}
	select {
	case c.send <- data:
		return nil
	default:
		return fmt.Errorf("connection %s send buffer full", c.id)
	}
}

// close tears the connection down. Safe to call more than once.
func (c *Conn) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	if c.sock != nil {
		_ = c.sock.Close()
	}
}

// writePump drains the send queue onto the websocket and keeps the
// connection alive with pings. One goroutine per connection; it exits when
// the send channel closes or a write fails.
func (c *Conn) writePump() {
	pingPeriod := c.pongTimeout * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.sock.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.sock.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if !ok {
				_ = c.sock.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.sock.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.sock.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
