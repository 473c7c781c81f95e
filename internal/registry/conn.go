// Package registry owns every live socket: it assigns connection ids,
// tracks identity state and exposes the iteration primitives the
// fan-out engine and liveness supervisor are built on.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/gosocket/gosocket"
)

// FloodLimit configures the per-connection inbound frame limiter. This
// guards the transport read loop; the per-identity action budget is a
// separate middleware concern.
type FloodLimit struct {
	FramesPerSecond rate.Limit
	Burst           int
	Enabled         bool
}

// DefaultFloodLimit allows 100 frames per second with burst of 200.
func DefaultFloodLimit() *FloodLimit {
	return &FloodLimit{
		FramesPerSecond: 100,
		Burst:           200,
		Enabled:         true,
	}
}

// NoFloodLimit disables the per-connection frame limiter.
func NoFloodLimit() *FloodLimit {
	return &FloodLimit{Enabled: false}
}

// Conn implements gosocket.Connection. The underlying websocket is
// exclusively owned here; all outbound frames go through the buffered
// send channel and a single write pump, so writes never interleave.
type Conn struct {
	id         string
	ws         *websocket.Conn
	remoteAddr string
	ctx        context.Context
	cancel     context.CancelFunc
	sendCh     chan []byte
	limiter    *rate.Limiter

	closeOnce sync.Once

	mu       sync.RWMutex
	closed   bool
	auth     *gosocket.Auth
	lastPong time.Time
}

func newConn(ws *websocket.Conn, remoteAddr string, fl *FloodLimit, now time.Time) *Conn {
	ctx, cancel := context.WithCancel(context.Background())

	var limiter *rate.Limiter
	if fl != nil && fl.Enabled {
		limiter = rate.NewLimiter(fl.FramesPerSecond, fl.Burst)
	}

	c := &Conn{
		id:         uuid.New().String(),
		ws:         ws,
		remoteAddr: remoteAddr,
		ctx:        ctx,
		cancel:     cancel,
		sendCh:     make(chan []byte, 256),
		limiter:    limiter,
		lastPong:   now,
	}

	go c.writePump()

	return c
}

// ID returns the server-assigned opaque connection id.
func (c *Conn) ID() string {
	return c.id
}

// RemoteAddr returns the client's remote network address.
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}

// Context returns the connection's lifecycle context.
func (c *Conn) Context() context.Context {
	return c.ctx
}

// Authenticated reports whether an identity is attached.
func (c *Conn) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.auth != nil
}

// UserID returns the authenticated user id, "" when anonymous.
func (c *Conn) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.auth == nil {
		return ""
	}
	return c.auth.ID
}

// Auth returns the attached identity, nil when anonymous.
func (c *Conn) Auth() *gosocket.Auth {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.auth
}

// setAuth is called by the registry only, under its index lock, so the
// byUser index and the connection's identity never disagree.
func (c *Conn) setAuth(auth *gosocket.Auth) {
	c.mu.Lock()
	c.auth = auth
	c.mu.Unlock()
}

// Send queues an encoded frame for delivery.
func (c *Conn) Send(ctx context.Context, frame []byte) error {
	if c.ctx.Err() != nil {
		return gosocket.ErrConnectionClosed
	}

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return gosocket.ErrConnectionClosed
	}

	// Hold the read lock while queueing to prevent a race with Close
	// closing sendCh.
	select {
	case c.sendCh <- frame:
		c.mu.RUnlock()
		return nil
	case <-ctx.Done():
		c.mu.RUnlock()
		return ctx.Err()
	case <-c.ctx.Done():
		c.mu.RUnlock()
		return gosocket.ErrConnectionClosed
	}
}

// Ping writes a ping control frame. Safe concurrently with the write
// pump; gorilla allows WriteControl alongside other writes.
func (c *Conn) Ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
}

// TouchPong records a pong answer for the liveness supervisor.
func (c *Conn) TouchPong(now time.Time) {
	c.mu.Lock()
	c.lastPong = now
	c.mu.Unlock()
}

// LastPong returns the time of the last pong (or of the accept).
func (c *Conn) LastPong() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPong
}

// AllowFrame checks the inbound flood limiter. True means the frame may
// be processed.
func (c *Conn) AllowFrame() bool {
	if c.limiter == nil {
		return true
	}
	return c.limiter.Allow()
}

// Close closes the connection gracefully.
func (c *Conn) Close(ctx context.Context) error {
	return c.CloseWithCode(ctx, websocket.CloseNormalClosure, "")
}

// CloseWithCode closes with a WebSocket close code and optional reason.
// Closing cancels any in-flight write to this connection.
func (c *Conn) CloseWithCode(ctx context.Context, code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		// A Send parked on a full queue holds the read lock; cancelling
		// first unblocks it so the write lock below can be taken.
		c.cancel()

		c.mu.Lock()
		c.closed = true
		close(c.sendCh)
		c.mu.Unlock()

		message := websocket.FormatCloseMessage(code, reason)
		deadline := time.Now().Add(time.Second)
		c.ws.WriteControl(websocket.CloseMessage, message, deadline)
		err = c.ws.Close()
	})
	return err
}

// IsAlive returns true while the connection is open.
func (c *Conn) IsAlive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

// SetPongHandler installs the transport pong callback.
func (c *Conn) SetPongHandler(handler func(appData string) error) {
	c.ws.SetPongHandler(handler)
}

// SetReadDeadline bounds the next transport read.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.ws.SetReadDeadline(t)
}

// ReadMessage blocks for the next inbound frame.
func (c *Conn) ReadMessage() (int, []byte, error) {
	return c.ws.ReadMessage()
}

// SetReadLimit caps inbound frame size at the transport.
func (c *Conn) SetReadLimit(limit int64) {
	c.ws.SetReadLimit(limit)
}

// writePump drains the send channel onto the socket. The single pump
// is what serializes outbound frames per connection.
func (c *Conn) writePump() {
	defer c.ws.Close()

	for {
		select {
		case frame, ok := <-c.sendCh:
			c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}
