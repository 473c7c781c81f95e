package server

import (
	"context"
	"fmt"

	"github.com/gosocket/gosocket"
	"github.com/gosocket/gosocket/internal/channels"
	"github.com/gosocket/gosocket/internal/protocol"
)

// builtinRegistrations routes the protocol's built-in actions through
// the same table as application handlers, so middleware and resolution
// rules apply uniformly. None of them carry per-handler middleware; in
// particular authenticate must stay reachable for anonymous
// connections.
func (s *Server) builtinRegistrations() []gosocket.HandlerRegistration {
	mk := func(name string, fn func(ctx context.Context, p *gosocket.Payload) error) gosocket.HandlerRegistration {
		return gosocket.HandlerRegistration{
			Name:     name,
			Handler:  gosocket.HandlerFunc{ActionName: name, Fn: fn},
			AutoLoad: true,
		}
	}
	return []gosocket.HandlerRegistration{
		mk(gosocket.ActionPing, s.handlePing),
		mk(gosocket.ActionAuthenticate, s.handleAuthenticate),
		mk(gosocket.ActionJoinChannel, s.handleJoinChannel),
		mk(gosocket.ActionLeaveChannel, s.handleLeaveChannel),
		mk(gosocket.ActionSendMessage, s.handleSendMessage),
	}
}

// handlePing answers with exactly one pong to the same connection.
func (s *Server) handlePing(ctx context.Context, p *gosocket.Payload) error {
	return p.Conn.Send(ctx, protocol.Pong())
}

// handleAuthenticate verifies data.token and attaches the identity. A
// bad credential is answered with an error frame; the connection stays
// open and may retry.
func (s *Server) handleAuthenticate(ctx context.Context, p *gosocket.Payload) error {
	// The gate's errors already carry the invalid-token sentinel.
	a, err := s.gate.Authenticate(p.Conn.ID(), dataString(p.Data, "token"))
	if err != nil {
		return err
	}
	return p.Conn.Send(ctx, protocol.Authenticated(a.UserID))
}

// handleJoinChannel admits the connection into data.channel. The
// private flag mirrors the client library; the private: name prefix
// forces it regardless.
func (s *Server) handleJoinChannel(ctx context.Context, p *gosocket.Payload) error {
	channel := dataString(p.Data, "channel")
	private, _ := p.Data["private"].(bool)

	if err := s.table.Join(p.Conn, channel, private, p.Data); err != nil {
		return err
	}
	return p.Conn.Send(ctx, protocol.ChannelJoined(channel))
}

func (s *Server) handleLeaveChannel(ctx context.Context, p *gosocket.Payload) error {
	channel := dataString(p.Data, "channel")
	if channel == "" {
		return gosocket.ErrChannelRequired
	}

	s.table.Leave(p.Conn, channel, p.Data)
	return p.Conn.Send(ctx, protocol.ChannelLeft(channel))
}

// handleSendMessage publishes into a channel the connection has joined.
// Everything in data except the channel name travels with the event.
func (s *Server) handleSendMessage(ctx context.Context, p *gosocket.Payload) error {
	channel := dataString(p.Data, "channel")
	if channel == "" {
		return gosocket.ErrChannelRequired
	}
	if !s.table.Contains(channel, p.Conn.ID()) {
		return fmt.Errorf("%w: not a member of %s", gosocket.ErrForbidden, channel)
	}
	if channels.IsPrivate(channel, false) && !p.Conn.Authenticated() {
		return gosocket.ErrAuthRequired
	}

	event := dataString(p.Data, "event")
	if event == "" {
		event = gosocket.FrameMessage
	}

	payload := make(map[string]any, len(p.Data))
	for k, v := range p.Data {
		if k == "channel" || k == "event" {
			continue
		}
		payload[k] = v
	}
	if p.Conn.UserID() != "" {
		payload["user_id"] = p.Conn.UserID()
	}

	return s.engine.Broadcast(ctx, &gosocket.BroadcastRequest{
		Event:   event,
		Channel: channel,
		Data:    payload,
	})
}

func dataString(data map[string]any, key string) string {
	v, _ := data[key].(string)
	return v
}
