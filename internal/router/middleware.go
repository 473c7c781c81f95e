package router

import (
	"context"
	"time"

	"github.com/gosocket/gosocket"
)

// authRequired fails the chain unless an identity is attached to the
// payload.
type authRequired struct{}

func (authRequired) Name() string { return "authenticate" }

func (authRequired) Handle(ctx context.Context, p *gosocket.Payload, next func(context.Context, *gosocket.Payload) error) error {
	if p.Auth == nil || p.Auth.ID == "" {
		return gosocket.ErrAuthRequired
	}
	return next(ctx, p)
}

// AuthRequired returns the built-in authentication-required middleware.
func AuthRequired() gosocket.Middleware {
	return authRequired{}
}

// anonymousKey buckets unauthenticated traffic under one shared rate
// budget, matching the wrapper's "anonymous" cache key.
const anonymousKey = "anonymous"

type rateLimit struct {
	limiter *Limiter
}

func (rateLimit) Name() string { return "rate_limit" }

func (m rateLimit) Handle(ctx context.Context, p *gosocket.Payload, next func(context.Context, *gosocket.Payload) error) error {
	key := anonymousKey
	if p.Auth != nil && p.Auth.ID != "" {
		key = p.Auth.ID
	}
	if !m.limiter.Allow(key) {
		return gosocket.ErrRateLimited
	}
	return next(ctx, p)
}

// RateLimit returns the built-in per-identity rate limit middleware.
// One middleware value carries one shared counter table, so place a
// single instance in the global chain rather than constructing one per
// handler.
func RateLimit(maxAttempts int, window time.Duration) gosocket.Middleware {
	return rateLimit{limiter: NewLimiter(maxAttempts, window)}
}

// dedupe concatenates the global chain with a handler's own list,
// removing duplicates by middleware name while preserving first-seen
// order.
func dedupe(global, own []gosocket.Middleware) []gosocket.Middleware {
	out := make([]gosocket.Middleware, 0, len(global)+len(own))
	seen := make(map[string]struct{}, len(global)+len(own))
	for _, m := range append(append([]gosocket.Middleware{}, global...), own...) {
		if m == nil {
			continue
		}
		if _, dup := seen[m.Name()]; dup {
			continue
		}
		seen[m.Name()] = struct{}{}
		out = append(out, m)
	}
	return out
}
