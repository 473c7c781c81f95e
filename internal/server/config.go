package server

import (
	"net/http"
	"time"

	"github.com/gosocket/gosocket"
	"github.com/gosocket/gosocket/internal/registry"
	"github.com/gosocket/gosocket/internal/router"
)

const (
	// DefaultWSPath is the WebSocket upgrade endpoint.
	DefaultWSPath = "/ws"

	// DefaultPingInterval is the liveness ping cadence. Connections that
	// do not answer within twice the interval are evicted.
	DefaultPingInterval = 25 * time.Second
)

// CheckOriginFn validates the origin of an upgrade request.
type CheckOriginFn = func(r *http.Request) bool

// Config assembles a server. Zero values are filled in by norm.
type Config struct {
	// Addr is the WebSocket listen address.
	Addr string

	// WSPath is the upgrade endpoint path.
	WSPath string

	// HTTPAddr is the listen address of the HTTP ingress. Empty disables
	// the ingress; in-process Broadcast keeps working.
	HTTPAddr string

	// BroadcastPath overrides the ingress endpoint path.
	BroadcastPath string

	// IngressToken guards the ingress endpoint. Empty disables the
	// check.
	IngressToken string

	// SigningKey verifies client JWTs (HMAC). Nil means every
	// authenticate attempt fails.
	SigningKey []byte

	CheckOrigin CheckOriginFn

	// Handlers are the application's action handlers, routed alongside
	// the built-in actions.
	Handlers []gosocket.HandlerRegistration

	// Middleware is the global chain, run before any per-handler chain.
	Middleware []gosocket.Middleware

	BeforeJoin  gosocket.BeforeJoinFunc
	BeforeLeave gosocket.BeforeLeaveFunc

	// FloodLimit is the per-connection inbound frame limiter. Nil uses
	// the default.
	FloodLimit *registry.FloodLimit

	HandlerTimeout time.Duration
	PingInterval   time.Duration

	// ReadLimit caps one inbound frame in bytes.
	ReadLimit int64

	OnConnect    func(conn gosocket.Connection)
	OnDisconnect func(conn gosocket.Connection)
}

func (c *Config) norm() {
	if c.WSPath == "" {
		c.WSPath = DefaultWSPath
	}
	if c.BroadcastPath == "" {
		c.BroadcastPath = gosocket.DefaultBroadcastPath
	}
	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = router.DefaultHandlerTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = maxFrameSize
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = func(*http.Request) bool { return true }
	}
}

// grace is the pong window; a connection silent for longer is presumed
// dead.
func (c *Config) grace() time.Duration {
	return 2 * c.PingInterval
}
