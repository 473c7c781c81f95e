package gosocket

import "context"

// Server is a GoSocket server: a WebSocket endpoint that authenticates
// clients, tracks channel membership and routes inbound {action, data}
// frames to registered handlers, plus an HTTP ingress that accepts
// broadcast requests from an application backend.
//
// Example usage:
//
//	import "github.com/gosocket/gosocket/ws"
//
//	cfg := ws.NewConfig(":8080", ":8081", []byte("signing-key"), "ingress-token")
//	cfg.Handlers = []gosocket.HandlerRegistration{
//	    {Name: "order_status", Handler: orderStatusHandler, Middleware: []gosocket.Middleware{ws.AuthRequired()}},
//	}
//	server := ws.New(cfg)
//	server.Start(ctx)
type Server interface {
	// Start starts the WebSocket listener and the HTTP ingress and begins
	// accepting connections. The server runs until Stop is called or the
	// context is cancelled.
	//
	// Returns an error if the server is already running or if a listener
	// cannot bind.
	Start(ctx context.Context) error

	// Stop gracefully stops both listeners and closes all client
	// connections.
	Stop(ctx context.Context) error

	// Broadcast resolves the request's target set and delivers the event
	// to every resolved connection. This is the in-process equivalent of a
	// POST to the broadcast endpoint; the request is validated the same
	// way.
	Broadcast(ctx context.Context, req *BroadcastRequest) error

	// ConnectionCount returns the number of currently registered
	// connections.
	ConnectionCount() int
}

// Connection represents one connected WebSocket client as seen by
// handlers, middleware and the fan-out engine.
//
// The underlying socket is owned by the connection registry; a Connection
// only exposes identity, liveness and a serialized write path. Writes to
// the same connection never interleave.
type Connection interface {
	// ID returns the server-assigned opaque connection id. It is generated
	// on accept and constant for the lifetime of the connection.
	ID() string

	// RemoteAddr returns the client's remote network address.
	RemoteAddr() string

	// Authenticated reports whether an identity is attached to the
	// connection. Authenticated() == false implies UserID() == "".
	Authenticated() bool

	// UserID returns the authenticated user id, or "" for anonymous
	// connections.
	UserID() string

	// Context returns the connection's lifecycle context. It is cancelled
	// when the connection closes, cancelling any in-flight write to it.
	Context() context.Context

	// Send queues an already-encoded frame for delivery. The send is
	// non-blocking up to the per-connection queue capacity.
	//
	// Returns an error if the connection is closed or the context is
	// cancelled.
	Send(ctx context.Context, frame []byte) error

	// Close closes the connection gracefully.
	Close(ctx context.Context) error

	// CloseWithCode closes the connection with a specific WebSocket close
	// code and optional reason.
	CloseWithCode(ctx context.Context, code int, reason string) error

	// IsAlive returns true while the connection is open.
	IsAlive() bool
}

// Auth is the identity block the server attaches to inbound payloads.
// Clients never write it; the authentication gate is the sole writer.
type Auth struct {
	// ID is the authenticated user id. Middleware such as AuthRequired
	// checks this field.
	ID string `json:"id"`

	// UserID duplicates ID under the claim name the wire protocol uses.
	UserID string `json:"user_id"`

	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`

	// Claims carries any extra token claims verbatim.
	Claims map[string]any `json:"claims,omitempty"`
}

// Payload is what a handler receives for one inbound frame: the action
// name, the client-supplied data and the server-attached identity.
// Payloads are immutable once built; middleware may replace Data with a
// transformed copy but must not mutate shared state through it.
type Payload struct {
	Action string         `json:"action"`
	Data   map[string]any `json:"data"`
	Auth   *Auth          `json:"auth,omitempty"`

	// Conn is the originating connection, for replies. Nil when the
	// payload was not produced by a live connection (tests, replays).
	Conn Connection `json:"-"`
}

// Handler is server-side logic bound to a named inbound action.
//
// Handle runs on its own goroutine with a bounded timeout; returning an
// error (or panicking) produces an error frame on the originating
// connection and never terminates the connection or the server.
type Handler interface {
	// Name returns the action name this handler answers to. An empty name
	// means the handler is matched by its type basename.
	Name() string

	// Handle processes one payload.
	Handle(ctx context.Context, p *Payload) error
}

// HandlerFunc adapts a function to the Handler interface under an
// explicit name.
type HandlerFunc struct {
	ActionName string
	Fn         func(ctx context.Context, p *Payload) error
}

func (h HandlerFunc) Name() string { return h.ActionName }

func (h HandlerFunc) Handle(ctx context.Context, p *Payload) error { return h.Fn(ctx, p) }

// HandlerRegistration binds a handler into the router's static table.
// The table is assembled once at startup and immutable at runtime.
type HandlerRegistration struct {
	// Name is the exact action name. Empty falls back to the handler's
	// Name() alias, then to its type basename.
	Name string

	Handler Handler

	// Middleware is appended after the globally configured chain,
	// duplicates removed by middleware name, first occurrence wins.
	Middleware []Middleware

	// AutoLoad mirrors the registration manifest flag; registrations with
	// AutoLoad false are listed but not routed.
	AutoLoad bool
}

// Middleware is one stage of the onion wrapped around handler
// invocation. A stage either calls next (possibly with a transformed
// payload) or returns an error to abort the chain; an aborted chain
// produces an error frame and the handler is never invoked.
type Middleware interface {
	// Name identifies the stage for chain deduplication.
	Name() string

	Handle(ctx context.Context, p *Payload, next func(context.Context, *Payload) error) error
}

// BeforeJoinFunc is the access-control seam consulted before a
// connection is admitted to a private channel. Returning an error vetoes
// the join.
type BeforeJoinFunc func(conn Connection, channel string, data map[string]any) error

// BeforeLeaveFunc runs before a leave completes. It is observational and
// cannot veto.
type BeforeLeaveFunc func(conn Connection, channel string, data map[string]any)
