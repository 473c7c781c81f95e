// Package fanout resolves broadcast requests to target connection sets
// and delivers one serialized frame to each of them.
package fanout

import (
	"context"
	"sync"

	"github.com/gosocket/gosocket"
	"github.com/gosocket/gosocket/internal/metrics"
	"github.com/gosocket/gosocket/internal/protocol"
	"github.com/gosocket/gosocket/logger"
)

// Connections is the slice of the registry the engine resolves against.
type Connections interface {
	Get(id string) (gosocket.Connection, bool)
	ByUser(userID string) []gosocket.Connection
	Snapshot() []gosocket.Connection
}

// Members is the slice of the membership table the engine resolves
// channel targets against.
type Members interface {
	MembersOf(channel string) []string
}

// Engine is the broadcast fan-out engine.
type Engine struct {
	conns   Connections
	members Members

	// evict is called with the id of a connection whose write failed,
	// so the owner can unregister it. May be nil.
	evict func(connID string)
}

// New creates an engine over the given sources.
func New(conns Connections, members Members, evict func(connID string)) *Engine {
	return &Engine{conns: conns, members: members, evict: evict}
}

// ResolveTargets computes the target set for a request. A missing
// client id or an empty user resolves to an empty set, not an error.
func (e *Engine) ResolveTargets(req *gosocket.BroadcastRequest) []gosocket.Connection {
	switch req.ResolveType() {
	case gosocket.BroadcastClient:
		if c, ok := e.conns.Get(req.ClientID); ok {
			return []gosocket.Connection{c}
		}
		return nil

	case gosocket.BroadcastUser:
		return e.conns.ByUser(req.UserID)

	case gosocket.BroadcastUserExcept:
		var out []gosocket.Connection
		for _, c := range e.conns.Snapshot() {
			if c.Authenticated() && c.UserID() != req.UserID {
				out = append(out, c)
			}
		}
		return out

	case gosocket.BroadcastAuthenticated:
		var out []gosocket.Connection
		for _, c := range e.conns.Snapshot() {
			if c.Authenticated() {
				out = append(out, c)
			}
		}
		return out

	case gosocket.BroadcastGlobal:
		return e.conns.Snapshot()

	case gosocket.BroadcastChannel:
		var out []gosocket.Connection
		for _, id := range e.members.MembersOf(req.Channel) {
			if c, ok := e.conns.Get(id); ok {
				out = append(out, c)
			}
		}
		return out
	}
	return nil
}

// Broadcast validates the request, serializes the event frame once and
// writes it to every resolved target. A write failure on one target is
// logged, marks that connection for eviction and never aborts delivery
// to the rest; only validation and encoding errors are returned.
func (e *Engine) Broadcast(ctx context.Context, req *gosocket.BroadcastRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	frame, err := protocol.Message(req.Event, req.Channel, req.Data)
	if err != nil {
		return err
	}

	targets := e.ResolveTargets(req)
	metrics.Mark("broadcasts", 1)

	var wg sync.WaitGroup
	for _, c := range targets {
		wg.Add(1)
		go func(c gosocket.Connection) {
			defer wg.Done()
			e.send(ctx, c, frame)
		}(c)
	}
	wg.Wait()
	return nil
}

func (e *Engine) send(ctx context.Context, c gosocket.Connection, frame []byte) {
	if err := c.Send(ctx, frame); err != nil {
		metrics.Mark("drops", 1)
		logger.Warnf("broadcast delivery failed conn=%s: %v", c.ID(), err)
		if e.evict != nil {
			e.evict(c.ID())
		}
	}
}
