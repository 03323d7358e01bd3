// Package network implements the TCP transport handed to RCON sessions:
// dialing with a connect timeout and per-operation read/write deadlines.
package network

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultDialTimeout  = 10 * time.Second
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 10 * time.Second
)

// Conn wraps a TCP connection to a game server's RCON port. It implements
// io.ReadWriter with deadlines applied per operation, so a hung server
// surfaces as an I/O error to the session instead of blocking forever.
// The RCON protocol itself defines no timers; this is where they live.
type Conn struct {
	mu     sync.Mutex
	conn   net.Conn
	logger zerolog.Logger

	readTimeout  time.Duration
	writeTimeout time.Duration

	connectedAt  time.Time
	lastActivity time.Time

	closed bool
}

// Dial opens a TCP connection to addr with the default timeouts.
func Dial(addr string) (*Conn, error) {
	return DialTimeout(addr, DefaultDialTimeout, DefaultReadTimeout, DefaultWriteTimeout)
}

// DialTimeout opens a TCP connection to addr with explicit timeouts.
// A zero read or write timeout disables the corresponding deadline.
func DialTimeout(addr string, dial, read, write time.Duration) (*Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, dial)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	now := time.Now()
	return &Conn{
		conn:         conn,
		readTimeout:  read,
		writeTimeout: write,
		connectedAt:  now,
		lastActivity: now,
		logger:       log.With().Str("component", "conn").Str("remote", conn.RemoteAddr().String()).Logger(),
	}, nil
}

// Read reads available bytes from the connection, blocking up to the
// configured read timeout.
func (c *Conn) Read(p []byte) (int, error) {
	if c.readTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}

	n, err := c.conn.Read(p)
	if n > 0 {
		c.touch()
	}
	return n, err
}

// Write writes bytes to the connection, blocking up to the configured
// write timeout.
func (c *Conn) Write(p []byte) (int, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return 0, fmt.Errorf("connection is closed")
	}

	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}

	n, err := c.conn.Write(p)
	if n > 0 {
		c.touch()
	}
	return n, err
}

// Close closes the connection. Safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.logger.Debug().Msg("connection closed")
	return c.conn.Close()
}

// IsClosed returns whether the connection has been closed.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// LastActivity returns the time of the last read/write activity.
func (c *Conn) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// ConnectedAt returns the time the connection was established.
func (c *Conn) ConnectedAt() time.Time {
	return c.connectedAt
}

// RemoteAddr returns the remote address of the connection.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
