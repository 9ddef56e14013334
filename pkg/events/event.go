// Package events is the pub/sub bus between the channel core and the
// transport front-ends. Structural changes (channels created or removed,
// players moving) are emitted as structured events; each subscriber (the
// protocol notifier, loggers, the web status page) encodes them per
// transport.
package events

import "github.com/sorajate/soliloque-server/pkg/chandb"

// EventType classifies events for transport-specific encoding.
type EventType int

const (
	EvChannelCreated EventType = iota
	EvChannelRemoved
	EvPlayerJoined  // player entered a channel
	EvPlayerLeft    // player left a channel
	EvPlayerMoved   // player switched channels
)

// String returns a human-readable name for the event type.
func (t EventType) String() string {
	switch t {
	case EvChannelCreated:
		return "channel_created"
	case EvChannelRemoved:
		return "channel_removed"
	case EvPlayerJoined:
		return "player_joined"
	case EvPlayerLeft:
		return "player_left"
	case EvPlayerMoved:
		return "player_moved"
	default:
		return "unknown"
	}
}

// Event is one structural change. Channel is the channel concerned (the
// new channel for joins/moves); From is the vacated channel on a move,
// nil otherwise. Player is nil for channel lifecycle events.
type Event struct {
	Type    EventType
	Channel *chandb.Channel
	From    *chandb.Channel
	Player  *chandb.Player
}
