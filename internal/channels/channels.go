// Package channels tracks channel membership: which connections joined
// which named channels, with private-channel access control delegated to
// a before-join hook.
package channels

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gosocket/gosocket"
	"github.com/gosocket/gosocket/internal/metrics"
)

// Table is the channel membership table. Both directions of the
// relation live under one mutex, so a connection's channel set and a
// channel's member set can never be observed disagreeing. Channels are
// created lazily on first join and garbage-collected when their last
// member leaves; a join after collection simply recreates them.
type Table struct {
	mu      sync.Mutex
	members map[string]map[string]struct{}
	joined  map[string]map[string]struct{}
	private map[string]bool

	beforeJoin  gosocket.BeforeJoinFunc
	beforeLeave gosocket.BeforeLeaveFunc
}

// New creates an empty table. Both hooks may be nil.
func New(beforeJoin gosocket.BeforeJoinFunc, beforeLeave gosocket.BeforeLeaveFunc) *Table {
	return &Table{
		members:     make(map[string]map[string]struct{}),
		joined:      make(map[string]map[string]struct{}),
		private:     make(map[string]bool),
		beforeJoin:  beforeJoin,
		beforeLeave: beforeLeave,
	}
}

// IsPrivate reports whether a channel name requires authentication,
// either by the private: prefix or by the explicit flag of the join.
func IsPrivate(channel string, explicit bool) bool {
	return explicit || strings.HasPrefix(channel, gosocket.ChannelPrivatePrefix)
}

// Join admits a connection into a channel. Joining an already-joined
// channel succeeds silently. Private channels require an authenticated
// connection and pass the before-join hook, which may veto.
func (t *Table) Join(conn gosocket.Connection, channel string, isPrivate bool, data map[string]any) error {
	if channel == "" {
		return gosocket.ErrChannelRequired
	}

	// A live channel keeps the privacy it was created with, so a later
	// join cannot sidestep the gate by omitting the flag.
	private := IsPrivate(channel, isPrivate) || t.storedPrivate(channel)
	if private && !conn.Authenticated() {
		return gosocket.ErrAuthRequired
	}

	// The hook is external code; run it before touching the table so a
	// slow authorizer never holds the membership lock.
	if private && t.beforeJoin != nil {
		if err := t.beforeJoin(conn, channel, data); err != nil {
			return fmt.Errorf("%w: %v", gosocket.ErrForbidden, err)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.members[channel] == nil {
		t.members[channel] = make(map[string]struct{})
		t.private[channel] = private
		metrics.Incr("channels", 1)
	}
	if t.joined[conn.ID()] == nil {
		t.joined[conn.ID()] = make(map[string]struct{})
	}
	t.members[channel][conn.ID()] = struct{}{}
	t.joined[conn.ID()][channel] = struct{}{}
	return nil
}

// storedPrivate reports the privacy bit a live channel was created
// with. A collected channel reports false; the next join re-creates it.
func (t *Table) storedPrivate(channel string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.private[channel]
}

// Leave removes a connection from a channel. Leaving a channel the
// connection never joined succeeds silently. The before-leave hook is
// observational only.
func (t *Table) Leave(conn gosocket.Connection, channel string, data map[string]any) {
	if channel == "" {
		return
	}

	if t.beforeLeave != nil {
		t.beforeLeave(conn, channel, data)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(conn.ID(), channel)
}

// Purge removes a connection from every channel it joined, on
// disconnect. Wired to the registry's disconnected notification.
func (t *Table) Purge(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for channel := range t.joined[connID] {
		t.removeLocked(connID, channel)
	}
}

func (t *Table) removeLocked(connID, channel string) {
	if mm := t.members[channel]; mm != nil {
		delete(mm, connID)
		if len(mm) == 0 {
			delete(t.members, channel)
			delete(t.private, channel)
			metrics.Decr("channels", 1)
		}
	}
	if cc := t.joined[connID]; cc != nil {
		delete(cc, channel)
		if len(cc) == 0 {
			delete(t.joined, connID)
		}
	}
}

// MembersOf returns a copy of the member set of a channel.
func (t *Table) MembersOf(channel string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	mm := t.members[channel]
	out := make([]string, 0, len(mm))
	for id := range mm {
		out = append(out, id)
	}
	return out
}

// ChannelsOf returns a copy of the channel set of a connection.
func (t *Table) ChannelsOf(connID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	cc := t.joined[connID]
	out := make([]string, 0, len(cc))
	for channel := range cc {
		out = append(out, channel)
	}
	return out
}

// Contains reports membership of one connection in one channel.
func (t *Table) Contains(channel, connID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.members[channel][connID]
	return ok
}

// Len returns the number of live channels.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.members)
}
