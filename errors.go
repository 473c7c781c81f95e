package gosocket

import "errors"

// Error taxonomy. All per-message errors are reported to the originating
// connection and are fatal neither to the connection nor to the process.
var (
	// ErrMalformedFrame is a protocol error: the inbound frame was not
	// valid JSON.
	ErrMalformedFrame = errors.New("invalid message format")

	// ErrActionRequired rejects frames with an empty action field before
	// they reach any handler.
	ErrActionRequired = errors.New("action is required")

	// ErrInvalidToken is returned by the authentication gate for a bad or
	// unverifiable credential. The connection stays usable.
	ErrInvalidToken = errors.New("invalid authentication token")

	// ErrAuthRequired marks a private-channel join or an AuthRequired
	// middleware check attempted without an authenticated identity.
	ErrAuthRequired = errors.New("authentication required")

	// ErrForbidden is a before-join hook veto.
	ErrForbidden = errors.New("channel access forbidden")

	// ErrRateLimited aborts the middleware chain when the per-identity
	// action budget is exhausted.
	ErrRateLimited = errors.New("rate limit exceeded, too many requests")

	// ErrHandlerNotFound is an unmatched action.
	ErrHandlerNotFound = errors.New("no handler found")

	// ErrChannelRequired rejects channel operations without a channel
	// name.
	ErrChannelRequired = errors.New("channel name is required")

	// ErrTokenRequired rejects authenticate actions without a token.
	ErrTokenRequired = errors.New("token is required for authentication")

	ErrEventRequired        = errors.New("event is required")
	ErrTargetRequired       = errors.New("broadcast target is required")
	ErrUnknownBroadcastType = errors.New("unknown broadcast type")

	// ErrConnectionClosed is returned by Send on a closed connection.
	ErrConnectionClosed = errors.New("connection is closed")

	// ErrServerAlreadyRunning is returned by Start on a running server.
	ErrServerAlreadyRunning = errors.New("server already running")
)
