// Package protocol implements the JSON wire format exchanged with
// clients: inbound {action, data} frames and the typed server frames
// (pong, authenticated, error, channel_joined, channel_left, message).
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/gosocket/gosocket"
)

// MaxFrameSize caps one inbound frame at 1MB.
const MaxFrameSize = 1 << 20

// Inbound is one decoded client frame. Token is only honored as part of
// the authenticate flow; the auth block of a payload is always
// server-attached.
type Inbound struct {
	Action string         `json:"action"`
	Data   map[string]any `json:"data"`
	Token  string         `json:"token,omitempty"`
}

// DecodeInbound parses a raw client frame. A frame that is not a JSON
// object yields ErrMalformedFrame; a frame without an action yields
// ErrActionRequired. Both are answered on the originating connection
// only and are not fatal to it.
func DecodeInbound(data []byte) (*Inbound, error) {
	if len(data) > MaxFrameSize {
		return nil, fmt.Errorf("%w: frame of %d bytes exceeds %d", gosocket.ErrMalformedFrame, len(data), MaxFrameSize)
	}

	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", gosocket.ErrMalformedFrame, err)
	}
	if in.Action == "" {
		return nil, gosocket.ErrActionRequired
	}
	if in.Data == nil {
		in.Data = map[string]any{}
	}
	return &in, nil
}

// ServerFrame is the envelope of every server-to-client frame.
type ServerFrame struct {
	Type    string         `json:"type"`
	UserID  string         `json:"user_id,omitempty"`
	Message string         `json:"message,omitempty"`
	Channel string         `json:"channel,omitempty"`
	Event   string         `json:"event,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Pong answers a ping. Exactly one pong per ping, never broadcast.
func Pong() []byte {
	return mustMarshal(ServerFrame{Type: gosocket.FramePong})
}

// Authenticated acknowledges a successful authenticate action.
func Authenticated(userID string) []byte {
	return mustMarshal(ServerFrame{Type: gosocket.FrameAuthenticated, UserID: userID})
}

// Error reports a per-message failure to the originating connection.
func Error(message string) []byte {
	return mustMarshal(ServerFrame{Type: gosocket.FrameError, Message: message})
}

// ChannelJoined acknowledges a join.
func ChannelJoined(channel string) []byte {
	return mustMarshal(ServerFrame{Type: gosocket.FrameChannelJoined, Channel: channel})
}

// ChannelLeft acknowledges a leave.
func ChannelLeft(channel string) []byte {
	return mustMarshal(ServerFrame{Type: gosocket.FrameChannelLeft, Channel: channel})
}

// Message builds one broadcast delivery frame. The frame is serialized
// once here and the same bytes are written to every resolved target.
func Message(event, channel string, data map[string]any) ([]byte, error) {
	frame, err := json.Marshal(ServerFrame{
		Type:    gosocket.FrameMessage,
		Event:   event,
		Channel: channel,
		Data:    data,
	})
	if err != nil {
		return nil, fmt.Errorf("encode message frame: %w", err)
	}
	return frame, nil
}

// mustMarshal is for fixed-shape frames built from strings only, whose
// marshalling cannot fail.
func mustMarshal(f ServerFrame) []byte {
	b, err := json.Marshal(f)
	if err != nil {
		panic(err)
	}
	return b
}
