package hub

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultSendBuffer is the queue size used when NewConn is given a
// non-positive buffer.
const DefaultSendBuffer = 64

// Conn is one live hub connection. The transport drains Send and writes
// each frame to the socket.
type Conn struct {
	// ID is a generated identifier unique to this connection.
	ID string
	// UserID is the authenticated user behind the connection.
	UserID uint

	mu     sync.RWMutex
	send   chan []byte
	closed bool
}

// NewConn creates a connection handle with a bounded send queue.
func NewConn(userID uint, buffer int) *Conn {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Conn{
		ID:     uuid.NewString(),
		UserID: userID,
		send:   make(chan []byte, buffer),
	}
}

// Send returns the outbound queue. It is closed when the hub disconnects
// the connection.
func (c *Conn) Send() <-chan []byte {
	return c.send
}

// enqueue queues frame without blocking. It reports false when the queue is
// full or the connection has been closed.
func (c *Conn) enqueue(frame []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// close closes the send queue once.
func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Closed reports whether the connection's queue has been closed.
func (c *Conn) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
