package router

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gosocket/gosocket"
)

func TestLimiterBudget(t *testing.T) {
	t.Parallel()

	now := time.Unix(1000, 0)
	l := NewLimiter(60, 60*time.Second)
	l.SetClock(func() time.Time { return now })

	for i := 0; i < 60; i++ {
		if !l.Allow("42") {
			t.Fatalf("attempt %d within budget was denied", i+1)
		}
	}
	// The 61st action inside the window fails.
	if l.Allow("42") {
		t.Fatal("61st attempt within the window was allowed")
	}
	// A denied attempt does not consume budget either.
	if l.Allow("42") {
		t.Fatal("denied attempts must not increment the counter")
	}

	// The first action after the window elapses succeeds.
	now = now.Add(60 * time.Second)
	if !l.Allow("42") {
		t.Fatal("first attempt after window elapse was denied")
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	t.Parallel()

	now := time.Unix(1000, 0)
	l := NewLimiter(1, time.Minute)
	l.SetClock(func() time.Time { return now })

	if !l.Allow("a") {
		t.Fatal("first attempt for a denied")
	}
	if l.Allow("a") {
		t.Fatal("second attempt for a allowed")
	}
	if !l.Allow("b") {
		t.Fatal("b must not share a's budget")
	}
}

func TestLimiterDefaults(t *testing.T) {
	t.Parallel()

	l := NewLimiter(0, 0)
	if l.max != DefaultMaxAttempts || l.window != DefaultWindow {
		t.Errorf("defaults = (%d, %v), want (%d, %v)", l.max, l.window, DefaultMaxAttempts, DefaultWindow)
	}
}

func TestLimiterAtomicUnderConcurrency(t *testing.T) {
	t.Parallel()

	l := NewLimiter(100, time.Minute)

	var allowed int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if l.Allow("burst") {
					atomic.AddInt64(&allowed, 1)
				}
			}
		}()
	}
	wg.Wait()

	// 1000 concurrent attempts against a budget of 100: exactly 100
	// pass, or the check-increment is not atomic.
	if allowed != 100 {
		t.Errorf("allowed = %d, want exactly 100", allowed)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Parallel()

	mw := RateLimit(2, time.Minute)
	next := func(context.Context, *gosocket.Payload) error { return nil }

	authed := &gosocket.Payload{Action: "act", Auth: &gosocket.Auth{ID: "42"}}
	for i := 0; i < 2; i++ {
		if err := mw.Handle(context.Background(), authed, next); err != nil {
			t.Fatalf("attempt %d failed: %v", i+1, err)
		}
	}
	if err := mw.Handle(context.Background(), authed, next); !errors.Is(err, gosocket.ErrRateLimited) {
		t.Errorf("over-budget Handle() = %v, want ErrRateLimited", err)
	}

	// Anonymous traffic uses its own shared bucket, untouched by user
	// 42's spend.
	anon := &gosocket.Payload{Action: "act"}
	if err := mw.Handle(context.Background(), anon, next); err != nil {
		t.Errorf("anonymous Handle() = %v, want nil", err)
	}
}

func TestRateLimitAbortsBeforeHandler(t *testing.T) {
	t.Parallel()

	calls := 0
	r := New([]gosocket.Middleware{RateLimit(1, time.Minute)}, []gosocket.HandlerRegistration{{
		Name: "act",
		Handler: named("act", func(context.Context, *gosocket.Payload) error {
			calls++
			return nil
		}),
		AutoLoad: true,
	}}, 0)

	p := &gosocket.Payload{Action: "act", Auth: &gosocket.Auth{ID: "42"}}
	if err := r.Dispatch(context.Background(), p); err != nil {
		t.Fatalf("first Dispatch() error: %v", err)
	}
	if err := r.Dispatch(context.Background(), p); !errors.Is(err, gosocket.ErrRateLimited) {
		t.Fatalf("second Dispatch() = %v, want ErrRateLimited", err)
	}
	if calls != 1 {
		t.Errorf("handler ran %d times, want 1", calls)
	}
}
