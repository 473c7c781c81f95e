package registry

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gosocket/gosocket"
	"github.com/gosocket/gosocket/internal/metrics"
)

// Registry is the single owner of live connections. It keeps a primary
// index by connection id and a secondary index by user id (populated by
// the authentication gate through SetIdentity), and emits lifecycle
// notifications consumed by the membership table and the liveness
// supervisor.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*Conn
	byUser map[string]map[string]*Conn

	flood *FloodLimit
	clock func() time.Time

	// Listener lists are fixed before the server starts accepting, so
	// they are read without the lock.
	onConnect    []func(*Conn)
	onDisconnect []func(*Conn)
}

// New creates an empty registry. A nil flood limit uses the default.
func New(flood *FloodLimit) *Registry {
	if flood == nil {
		flood = DefaultFloodLimit()
	}
	return &Registry{
		conns:  make(map[string]*Conn),
		byUser: make(map[string]map[string]*Conn),
		flood:  flood,
		clock:  time.Now,
	}
}

// SetClock injects a clock for tests.
func (r *Registry) SetClock(clock func() time.Time) {
	r.clock = clock
}

// OnConnect subscribes a connected-lifecycle listener. Must be called
// before the server starts accepting.
func (r *Registry) OnConnect(fn func(*Conn)) {
	r.onConnect = append(r.onConnect, fn)
}

// OnDisconnect subscribes a disconnected-lifecycle listener. Must be
// called before the server starts accepting.
func (r *Registry) OnDisconnect(fn func(*Conn)) {
	r.onDisconnect = append(r.onDisconnect, fn)
}

// Register takes ownership of an upgraded socket, assigns it an id and
// starts its write pump.
func (r *Registry) Register(ws *websocket.Conn, remoteAddr string) *Conn {
	c := newConn(ws, remoteAddr, r.flood, r.clock())

	r.mu.Lock()
	r.conns[c.id] = c
	r.mu.Unlock()

	metrics.Incr("connections", 1)
	for _, fn := range r.onConnect {
		fn(c)
	}
	return c
}

// Unregister removes and closes a connection. Unknown ids are a no-op
// so cleanup paths can race safely.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	c, ok := r.conns[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, id)
	r.dropUserIndexLocked(c)
	r.mu.Unlock()

	metrics.Decr("connections", 1)
	for _, fn := range r.onDisconnect {
		fn(c)
	}
	c.Close(context.Background())
}

// Get returns a connection by id.
func (r *Registry) Get(id string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// SetIdentity attaches (or overwrites) the identity of a connection and
// maintains the byUser index in the same critical section, so the two
// are never observed half-updated. A nil auth clears the identity.
func (r *Registry) SetIdentity(id string, auth *gosocket.Auth) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return false
	}

	r.dropUserIndexLocked(c)
	c.setAuth(auth)
	if auth != nil && auth.ID != "" {
		if r.byUser[auth.ID] == nil {
			r.byUser[auth.ID] = make(map[string]*Conn)
		}
		r.byUser[auth.ID][id] = c
	}
	return true
}

// dropUserIndexLocked removes the connection from the byUser index.
func (r *Registry) dropUserIndexLocked(c *Conn) {
	userID := c.UserID()
	if userID == "" {
		return
	}
	if mm := r.byUser[userID]; mm != nil {
		delete(mm, c.id)
		if len(mm) == 0 {
			delete(r.byUser, userID)
		}
	}
}

// ByUser returns all connections authenticated as userID.
func (r *Registry) ByUser(userID string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mm := r.byUser[userID]
	out := make([]*Conn, 0, len(mm))
	for _, c := range mm {
		out = append(out, c)
	}
	return out
}

// ForEach calls fn for every connection matching the predicate. It
// iterates a snapshot taken under the lock, so a removal mid-iteration
// never causes a crash or a double send.
func (r *Registry) ForEach(predicate func(*Conn) bool, fn func(*Conn)) {
	for _, c := range r.Snapshot() {
		if predicate == nil || predicate(c) {
			fn(c)
		}
	}
}

// Snapshot returns a point-in-time copy of all connections.
func (r *Registry) Snapshot() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll force-closes every connection, for server shutdown.
func (r *Registry) CloseAll() {
	for _, c := range r.Snapshot() {
		r.Unregister(c.ID())
	}
}
