// Package gosocket provides a WebSocket broadcast server for web
// applications: clients connect, optionally authenticate with a signed
// token, join named channels, and send {action, data} frames that are
// routed through a middleware chain to registered handlers, while the
// application backend pushes events to precisely targeted sets of
// connections over an authenticated HTTP endpoint.
//
// # Architecture
//
// The server is built from a few cooperating parts:
//
//   - a connection registry owning every live socket and its identity
//     state
//   - a channel membership table (channel -> connections and the reverse
//     index), with a before-join authorization hook for private channels
//   - an authentication gate validating HMAC-signed JWT bearer tokens
//   - an action router mapping the inbound "action" field to a handler
//     through an onion of middleware stages
//   - a broadcast fan-out engine resolving a request's target set (one
//     client, one user, all authenticated, everyone except one user,
//     everyone, or a channel) and writing the frame to each target
//   - a liveness supervisor pinging every connection and evicting the
//     ones that stop answering
//
// # Quick Start
//
//	import (
//	    "github.com/gosocket/gosocket"
//	    "github.com/gosocket/gosocket/ws"
//	)
//
//	cfg := ws.NewConfig(":8080", ":8081", []byte(signingKey), ingressToken)
//	cfg.Handlers = []gosocket.HandlerRegistration{{
//	    Name:       "order_status",
//	    Handler:    orderStatus,
//	    Middleware: []gosocket.Middleware{ws.AuthRequired()},
//	    AutoLoad:   true,
//	}}
//	server := ws.New(cfg)
//	server.Start(ctx)
//
// # Wire Protocol
//
// Clients send JSON text frames:
//
//	{"action": "join_channel", "data": {"channel": "general", "private": false}}
//
// The server answers with typed frames: "pong", "authenticated",
// "error", "channel_joined", "channel_left" and "message" (broadcast
// delivery, carrying the event name and data). Built-in actions are
// ping, authenticate, join_channel, leave_channel and send_message;
// everything else is resolved against the registered handler table.
//
// # Broadcasting
//
// The application backend POSTs to the broadcast endpoint (default
// /api/broadcast) with a bearer token:
//
//	{"event": "order_updated", "user_id": "42", "data": {...}}
//
// Target selection honors, in order: an explicit broadcast_type, a
// client_id, a user_id (user_except when exclude_current_user is set),
// broadcast_to_everyone, and finally the channel name.
//
// # Guarantees
//
//   - frames from a single connection are processed in receipt order
//   - writes to a single connection never interleave
//   - a handler error, panic, bad credential or malformed frame is
//     answered with an "error" frame and never terminates the connection
//   - the only server-initiated disconnect is a liveness timeout
//   - rate limiting is per identity: 60 actions per 60s window by
//     default, checked atomically per key
package gosocket
