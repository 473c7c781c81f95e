package gosocket

// BroadcastType selects the target set of a broadcast request.
type BroadcastType string

const (
	BroadcastClient        BroadcastType = "client"
	BroadcastUser          BroadcastType = "user"
	BroadcastUserExcept    BroadcastType = "user_except"
	BroadcastAuthenticated BroadcastType = "authenticated"
	BroadcastGlobal        BroadcastType = "global"
	BroadcastChannel       BroadcastType = "channel"
)

// BroadcastRequest is one inbound broadcast from the application
// backend, via the HTTP ingress or Server.Broadcast. It is validated
// before fan-out and never mutated.
type BroadcastRequest struct {
	Event               string         `json:"event"`
	Channel             string         `json:"channel,omitempty"`
	UserID              string         `json:"user_id,omitempty"`
	ClientID            string         `json:"client_id,omitempty"`
	Data                map[string]any `json:"data,omitempty"`
	BroadcastToEveryone bool           `json:"broadcast_to_everyone,omitempty"`
	ExcludeCurrentUser  bool           `json:"exclude_current_user,omitempty"`
	Type                BroadcastType  `json:"broadcast_type,omitempty"`
}

// ResolveType decides the effective broadcast type when a caller sets
// several hints at once. An explicit type always wins; then a client id,
// then a user id (user_except when the exclude flag is also set), then
// broadcast_to_everyone; channel targeting is the fallback.
func (r *BroadcastRequest) ResolveType() BroadcastType {
	switch {
	case r.Type != "":
		return r.Type
	case r.ClientID != "":
		return BroadcastClient
	case r.UserID != "" && r.ExcludeCurrentUser:
		return BroadcastUserExcept
	case r.UserID != "":
		return BroadcastUser
	case r.BroadcastToEveryone:
		return BroadcastGlobal
	default:
		return BroadcastChannel
	}
}

// Validate reports whether the request can be fanned out at all.
func (r *BroadcastRequest) Validate() error {
	if r.Event == "" {
		return ErrEventRequired
	}
	switch r.ResolveType() {
	case BroadcastClient:
		if r.ClientID == "" {
			return ErrTargetRequired
		}
	case BroadcastUser, BroadcastUserExcept:
		if r.UserID == "" {
			return ErrTargetRequired
		}
	case BroadcastChannel:
		if r.Channel == "" {
			return ErrTargetRequired
		}
	case BroadcastAuthenticated, BroadcastGlobal:
	default:
		return ErrUnknownBroadcastType
	}
	return nil
}
