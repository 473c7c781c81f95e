package server

import (
	"sync"
	"time"

	"github.com/gosocket/gosocket/internal/registry"
	"github.com/gosocket/gosocket/logger"
)

// supervisor is the liveness loop: it pings every open connection on a
// fixed cadence and evicts connections that have not answered with a
// pong within the grace window. Eviction here and transport errors are
// the only server-initiated disconnects.
type supervisor struct {
	reg      *registry.Registry
	interval time.Duration
	grace    time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

func newSupervisor(reg *registry.Registry, interval, grace time.Duration) *supervisor {
	return &supervisor{
		reg:      reg,
		interval: interval,
		grace:    grace,
		done:     make(chan struct{}),
	}
}

func (sv *supervisor) start() {
	go sv.run()
}

func (sv *supervisor) stop() {
	sv.stopOnce.Do(func() { close(sv.done) })
}

func (sv *supervisor) run() {
	ticker := time.NewTicker(sv.interval)
	defer ticker.Stop()

	for {
		select {
		case <-sv.done:
			return
		case now := <-ticker.C:
			sv.sweep(now)
		}
	}
}

// sweep runs one supervision round over a registry snapshot.
func (sv *supervisor) sweep(now time.Time) {
	sv.reg.ForEach(nil, func(c *registry.Conn) {
		if now.Sub(c.LastPong()) > sv.grace {
			logger.Warnf("liveness timeout conn=%s last_pong=%s", c.ID(), c.LastPong().Format(time.RFC3339))
			sv.reg.Unregister(c.ID())
			return
		}
		if err := c.Ping(); err != nil {
			logger.Warnf("ping failed conn=%s: %v", c.ID(), err)
			sv.reg.Unregister(c.ID())
		}
	})
}
