// Package router maps inbound actions to registered handlers through a
// middleware onion. The handler table is built once at startup from
// explicit registrations; there is no runtime discovery.
package router

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/gosocket/gosocket"
	"github.com/gosocket/gosocket/logger"
)

// DefaultHandlerTimeout bounds one handler invocation.
const DefaultHandlerTimeout = 10 * time.Second

type route struct {
	reg      gosocket.HandlerRegistration
	alias    string
	basename string
	chain    []gosocket.Middleware
}

// Router is the immutable action dispatch table.
type Router struct {
	routes  []*route
	byName  map[string]*route
	timeout time.Duration
}

// New builds the table. Registration order is the resolution scan
// order. Each route's middleware chain is resolved here, once: global
// stages first, then the handler's own, duplicates removed by name.
func New(global []gosocket.Middleware, regs []gosocket.HandlerRegistration, timeout time.Duration) *Router {
	if timeout <= 0 {
		timeout = DefaultHandlerTimeout
	}

	r := &Router{
		byName:  make(map[string]*route, len(regs)),
		timeout: timeout,
	}
	for _, reg := range regs {
		if reg.Handler == nil || !reg.AutoLoad {
			continue
		}
		rt := &route{
			reg:      reg,
			alias:    reg.Handler.Name(),
			basename: typeBasename(reg.Handler),
			chain:    dedupe(global, reg.Middleware),
		}
		r.routes = append(r.routes, rt)
		if reg.Name != "" {
			if _, dup := r.byName[reg.Name]; !dup {
				r.byName[reg.Name] = rt
			}
		}
	}
	return r
}

// Resolve finds the route for an action: exact registration name first,
// then the handler's declared alias, then its type basename. First
// match wins; the scan follows registration order.
func (r *Router) Resolve(action string) (gosocket.Handler, bool) {
	if rt, ok := r.resolve(action); ok {
		return rt.reg.Handler, true
	}
	return nil, false
}

func (r *Router) resolve(action string) (*route, bool) {
	if rt, ok := r.byName[action]; ok {
		return rt, true
	}
	for _, rt := range r.routes {
		if rt.alias != "" && rt.alias == action {
			return rt, true
		}
	}
	for _, rt := range r.routes {
		if rt.basename == action {
			return rt, true
		}
	}
	return nil, false
}

// Dispatch runs one payload through its route's middleware chain and
// handler. Every failure mode - unmatched action, chain abort, handler
// error, handler panic, handler timeout - comes back as an error for
// the caller to report to the originating connection; none of them are
// fatal to anything.
func (r *Router) Dispatch(ctx context.Context, p *gosocket.Payload) error {
	if p.Action == "" {
		return gosocket.ErrActionRequired
	}
	rt, ok := r.resolve(p.Action)
	if !ok {
		return gosocket.ErrHandlerNotFound
	}

	final := func(ctx context.Context, p *gosocket.Payload) error {
		return r.invoke(ctx, rt.reg.Handler, p)
	}

	next := final
	for i := len(rt.chain) - 1; i >= 0; i-- {
		stage, inner := rt.chain[i], next
		next = func(ctx context.Context, p *gosocket.Payload) error {
			return stage.Handle(ctx, p, inner)
		}
	}
	return next(ctx, p)
}

// invoke runs the handler on its own goroutine with a bounded timeout,
// so a hung handler cannot stall message processing for its connection
// beyond the budget, and converts panics into ordinary errors.
func (r *Router) invoke(ctx context.Context, h gosocket.Handler, p *gosocket.Payload) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Errorf("handler panic action=%s: %v", p.Action, rec)
				done <- fmt.Errorf("handler panic: %v", rec)
			}
		}()
		done <- h.Handle(ctx, p)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("handler timed out: %w", ctx.Err())
	}
}

// typeBasename is the class-basename fallback of the original handler
// resolution, computed once at table build.
func typeBasename(h gosocket.Handler) string {
	t := reflect.TypeOf(h)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return t.Name()
}
