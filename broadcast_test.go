package gosocket

import (
	"errors"
	"testing"
)

// TestResolveTypePrecedence verifies the hint precedence when several
// target fields are set at once.
func TestResolveTypePrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  BroadcastRequest
		want BroadcastType
	}{
		{
			name: "explicit type wins over everything",
			req: BroadcastRequest{
				Type:                BroadcastAuthenticated,
				ClientID:            "c1",
				UserID:              "u1",
				BroadcastToEveryone: true,
				Channel:             "general",
			},
			want: BroadcastAuthenticated,
		},
		{
			name: "client id beats user id",
			req:  BroadcastRequest{ClientID: "c1", UserID: "u1"},
			want: BroadcastClient,
		},
		{
			name: "user id with exclude flag is user_except",
			req:  BroadcastRequest{UserID: "u1", ExcludeCurrentUser: true},
			want: BroadcastUserExcept,
		},
		{
			name: "user id alone is user",
			req:  BroadcastRequest{UserID: "u1", BroadcastToEveryone: true},
			want: BroadcastUser,
		},
		{
			name: "broadcast_to_everyone beats channel",
			req:  BroadcastRequest{BroadcastToEveryone: true, Channel: "general"},
			want: BroadcastGlobal,
		},
		{
			name: "channel is the fallback",
			req:  BroadcastRequest{Channel: "general"},
			want: BroadcastChannel,
		},
		{
			name: "empty request still falls back to channel",
			req:  BroadcastRequest{},
			want: BroadcastChannel,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.req.ResolveType(); got != tt.want {
				t.Errorf("ResolveType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBroadcastRequestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     BroadcastRequest
		wantErr error
	}{
		{
			name:    "missing event",
			req:     BroadcastRequest{Channel: "general"},
			wantErr: ErrEventRequired,
		},
		{
			name:    "client type without client id",
			req:     BroadcastRequest{Event: "e", Type: BroadcastClient},
			wantErr: ErrTargetRequired,
		},
		{
			name:    "user type without user id",
			req:     BroadcastRequest{Event: "e", Type: BroadcastUser},
			wantErr: ErrTargetRequired,
		},
		{
			name:    "channel fallback without channel",
			req:     BroadcastRequest{Event: "e"},
			wantErr: ErrTargetRequired,
		},
		{
			name:    "unknown explicit type",
			req:     BroadcastRequest{Event: "e", Type: BroadcastType("nearby")},
			wantErr: ErrUnknownBroadcastType,
		},
		{
			name: "global needs no target",
			req:  BroadcastRequest{Event: "e", BroadcastToEveryone: true},
		},
		{
			name: "authenticated needs no target",
			req:  BroadcastRequest{Event: "e", Type: BroadcastAuthenticated},
		},
		{
			name: "valid user broadcast",
			req:  BroadcastRequest{Event: "order_updated", UserID: "42"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.req.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
