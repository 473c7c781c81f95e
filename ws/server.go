// Package ws is the constructor facade: it builds a gosocket.Server
// from a ServerConfig without exposing the internal packages.
package ws

import (
	"net/http"
	"time"

	"github.com/gosocket/gosocket"
	"github.com/gosocket/gosocket/internal/registry"
	"github.com/gosocket/gosocket/internal/router"
	"github.com/gosocket/gosocket/internal/server"
)

type ServerConfig = server.Config
type CheckOriginFn = server.CheckOriginFn
type FloodLimit = registry.FloodLimit

// New creates a GoSocket server. Nothing listens until Start.
//
// Example:
//
//	cfg := ws.NewConfig(":8080", ":8081", []byte("signing-key"), "ingress-token")
//	cfg.Handlers = []gosocket.HandlerRegistration{
//	    {Name: "order_status", Handler: orderStatus, Middleware: []gosocket.Middleware{ws.AuthRequired()}, AutoLoad: true},
//	}
//	srv := ws.New(cfg)
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
func New(cfg ServerConfig) gosocket.Server {
	return server.New(cfg)
}

// NewConfig builds a config with the common knobs set: the WebSocket
// listen address, the HTTP ingress address (empty disables the
// ingress), the JWT signing key and the ingress bearer token. Everything
// else can be set on the returned value before calling New.
func NewConfig(addr, httpAddr string, signingKey []byte, ingressToken string) ServerConfig {
	return ServerConfig{
		Addr:         addr,
		HTTPAddr:     httpAddr,
		SigningKey:   signingKey,
		IngressToken: ingressToken,
	}
}

// AllOrigins returns a checkOrigin function that allows all origins.
// Development only.
func AllOrigins() CheckOriginFn {
	return func(r *http.Request) bool {
		return true
	}
}

// AuthRequired returns the middleware that rejects anonymous payloads.
func AuthRequired() gosocket.Middleware {
	return router.AuthRequired()
}

// RateLimit returns the per-identity action budget middleware.
// Non-positive arguments fall back to 60 attempts per 60 seconds.
func RateLimit(maxAttempts int, window time.Duration) gosocket.Middleware {
	return router.RateLimit(maxAttempts, window)
}

// DefaultFloodLimit allows 100 inbound frames per second with burst of
// 200.
func DefaultFloodLimit() *FloodLimit {
	return registry.DefaultFloodLimit()
}

// NoFloodLimit disables the per-connection frame limiter.
func NoFloodLimit() *FloodLimit {
	return registry.NoFloodLimit()
}
