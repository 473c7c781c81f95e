package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gosocket/gosocket"
)

func named(name string, fn func(ctx context.Context, p *gosocket.Payload) error) gosocket.HandlerFunc {
	if fn == nil {
		fn = func(context.Context, *gosocket.Payload) error { return nil }
	}
	return gosocket.HandlerFunc{ActionName: name, Fn: fn}
}

// OrderStatusHandler exists to exercise the type-basename fallback.
type OrderStatusHandler struct {
	calls int
}

func (h *OrderStatusHandler) Name() string { return "" }

func (h *OrderStatusHandler) Handle(ctx context.Context, p *gosocket.Payload) error {
	h.calls++
	return nil
}

// recordingMiddleware appends its tag to a shared trace.
type recordingMiddleware struct {
	tag   string
	trace *[]string
	fail  error
}

func (m recordingMiddleware) Name() string { return m.tag }

func (m recordingMiddleware) Handle(ctx context.Context, p *gosocket.Payload, next func(context.Context, *gosocket.Payload) error) error {
	*m.trace = append(*m.trace, m.tag)
	if m.fail != nil {
		return m.fail
	}
	return next(ctx, p)
}

func TestResolutionOrder(t *testing.T) {
	t.Parallel()

	aliased := named("aliased_action", nil)
	base := &OrderStatusHandler{}

	r := New(nil, []gosocket.HandlerRegistration{
		{Name: "explicit", Handler: named("shadowed_alias", nil), AutoLoad: true},
		{Handler: aliased, AutoLoad: true},
		{Handler: base, AutoLoad: true},
	}, 0)

	tests := []struct {
		action string
		found  bool
	}{
		{"explicit", true},       // registration name
		{"aliased_action", true}, // handler alias
		{"OrderStatusHandler", true}, // type basename fallback
		{"missing", false},
	}

	for _, tt := range tests {
		if _, ok := r.Resolve(tt.action); ok != tt.found {
			t.Errorf("Resolve(%q) found = %v, want %v", tt.action, ok, tt.found)
		}
	}
}

func TestExactNameBeatsAlias(t *testing.T) {
	t.Parallel()

	var hit string
	first := named("target", func(context.Context, *gosocket.Payload) error {
		hit = "alias"
		return nil
	})
	second := gosocket.HandlerFunc{ActionName: "", Fn: func(context.Context, *gosocket.Payload) error {
		hit = "exact"
		return nil
	}}

	// The second registration claims "target" as its exact name; exact
	// match wins over the earlier handler's alias.
	r := New(nil, []gosocket.HandlerRegistration{
		{Handler: first, AutoLoad: true},
		{Name: "target", Handler: second, AutoLoad: true},
	}, 0)

	if err := r.Dispatch(context.Background(), &gosocket.Payload{Action: "target"}); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if hit != "exact" {
		t.Errorf("dispatched to %q, want exact-name registration", hit)
	}
}

func TestDispatchUnknownAction(t *testing.T) {
	t.Parallel()

	r := New(nil, nil, 0)
	err := r.Dispatch(context.Background(), &gosocket.Payload{Action: "nope"})
	if !errors.Is(err, gosocket.ErrHandlerNotFound) {
		t.Errorf("Dispatch() = %v, want ErrHandlerNotFound", err)
	}
}

func TestDispatchEmptyAction(t *testing.T) {
	t.Parallel()

	r := New(nil, nil, 0)
	err := r.Dispatch(context.Background(), &gosocket.Payload{})
	if !errors.Is(err, gosocket.ErrActionRequired) {
		t.Errorf("Dispatch() = %v, want ErrActionRequired", err)
	}
}

func TestAutoLoadFalseIsNotRouted(t *testing.T) {
	t.Parallel()

	r := New(nil, []gosocket.HandlerRegistration{
		{Name: "manual", Handler: named("manual", nil), AutoLoad: false},
	}, 0)

	if _, ok := r.Resolve("manual"); ok {
		t.Error("registration with AutoLoad=false must not be routed")
	}
}

func TestMiddlewareOrderAndDedup(t *testing.T) {
	t.Parallel()

	var trace []string
	global := []gosocket.Middleware{
		recordingMiddleware{tag: "a", trace: &trace},
		recordingMiddleware{tag: "b", trace: &trace},
	}
	own := []gosocket.Middleware{
		recordingMiddleware{tag: "b", trace: &trace}, // duplicate, dropped
		recordingMiddleware{tag: "c", trace: &trace},
	}

	handled := false
	r := New(global, []gosocket.HandlerRegistration{{
		Name: "act",
		Handler: named("act", func(context.Context, *gosocket.Payload) error {
			handled = true
			return nil
		}),
		Middleware: own,
		AutoLoad:   true,
	}}, 0)

	if err := r.Dispatch(context.Background(), &gosocket.Payload{Action: "act"}); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if !handled {
		t.Fatal("handler did not run")
	}
	want := []string{"a", "b", "c"}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace = %v, want %v", trace, want)
		}
	}
}

func TestMiddlewareShortCircuit(t *testing.T) {
	t.Parallel()

	var trace []string
	abort := errors.New("nope")
	global := []gosocket.Middleware{
		recordingMiddleware{tag: "first", trace: &trace},
		recordingMiddleware{tag: "gate", trace: &trace, fail: abort},
		recordingMiddleware{tag: "after", trace: &trace},
	}

	handled := false
	r := New(global, []gosocket.HandlerRegistration{{
		Name: "act",
		Handler: named("act", func(context.Context, *gosocket.Payload) error {
			handled = true
			return nil
		}),
		AutoLoad: true,
	}}, 0)

	err := r.Dispatch(context.Background(), &gosocket.Payload{Action: "act"})
	if !errors.Is(err, abort) {
		t.Fatalf("Dispatch() = %v, want the abort error", err)
	}
	if handled {
		t.Error("handler ran after a chain abort")
	}
	if len(trace) != 2 || trace[1] != "gate" {
		t.Errorf("trace = %v, want [first gate]", trace)
	}
}

func TestAuthRequiredMiddleware(t *testing.T) {
	t.Parallel()

	r := New([]gosocket.Middleware{AuthRequired()}, []gosocket.HandlerRegistration{
		{Name: "act", Handler: named("act", nil), AutoLoad: true},
	}, 0)

	err := r.Dispatch(context.Background(), &gosocket.Payload{Action: "act"})
	if !errors.Is(err, gosocket.ErrAuthRequired) {
		t.Errorf("anonymous Dispatch() = %v, want ErrAuthRequired", err)
	}

	err = r.Dispatch(context.Background(), &gosocket.Payload{
		Action: "act",
		Auth:   &gosocket.Auth{ID: "42"},
	})
	if err != nil {
		t.Errorf("authenticated Dispatch() = %v, want nil", err)
	}
}

func TestHandlerErrorIsContained(t *testing.T) {
	t.Parallel()

	boom := errors.New("business logic failed")
	r := New(nil, []gosocket.HandlerRegistration{{
		Name:     "act",
		Handler:  named("act", func(context.Context, *gosocket.Payload) error { return boom }),
		AutoLoad: true,
	}}, 0)

	if err := r.Dispatch(context.Background(), &gosocket.Payload{Action: "act"}); !errors.Is(err, boom) {
		t.Errorf("Dispatch() = %v, want the handler error", err)
	}
}

func TestHandlerPanicIsContained(t *testing.T) {
	t.Parallel()

	r := New(nil, []gosocket.HandlerRegistration{{
		Name:     "act",
		Handler:  named("act", func(context.Context, *gosocket.Payload) error { panic("kaboom") }),
		AutoLoad: true,
	}}, 0)

	err := r.Dispatch(context.Background(), &gosocket.Payload{Action: "act"})
	if err == nil {
		t.Fatal("Dispatch() should surface the panic as an error")
	}
}

func TestHandlerTimeout(t *testing.T) {
	t.Parallel()

	r := New(nil, []gosocket.HandlerRegistration{{
		Name: "slow",
		Handler: named("slow", func(ctx context.Context, p *gosocket.Payload) error {
			<-ctx.Done()
			return ctx.Err()
		}),
		AutoLoad: true,
	}}, 50*time.Millisecond)

	start := time.Now()
	err := r.Dispatch(context.Background(), &gosocket.Payload{Action: "slow"})
	if err == nil {
		t.Fatal("Dispatch() should time out")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("dispatch blocked for %v, want the 50ms budget", elapsed)
	}
}
