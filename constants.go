package gosocket

// Built-in action names understood by every GoSocket server.
const (
	ActionPing         = "ping"
	ActionAuthenticate = "authenticate"
	ActionJoinChannel  = "join_channel"
	ActionLeaveChannel = "leave_channel"
	ActionSendMessage  = "send_message"
)

// Server-to-client frame types.
const (
	FramePong          = "pong"
	FrameAuthenticated = "authenticated"
	FrameError         = "error"
	FrameChannelJoined = "channel_joined"
	FrameChannelLeft   = "channel_left"
	FrameMessage       = "message"
)

// ChannelPrivatePrefix marks a channel name as access-controlled.
const ChannelPrivatePrefix = "private:"

// DefaultBroadcastPath is the HTTP ingress endpoint unless configured
// otherwise.
const DefaultBroadcastPath = "/api/broadcast"
