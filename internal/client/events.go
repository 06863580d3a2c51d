// internal/client/events.go
package client

import (
	"errors"
	"time"

	"github.com/anvar-m/judgement/internal/game"
)

// ErrBusy rejects an action while the client is not idle: a write is in
// flight, a transient notice is showing, or play is suspended for a
// disconnected peer.
var ErrBusy = errors.New("client: action rejected while busy")

// EventType names the user-facing transitions the synchronization layer
// derives from snapshots. The renderer consumes these; the layer itself
// never touches a screen.
type EventType string

const (
	EventStateChanged EventType = "state_changed"
	EventBidPlaced    EventType = "bid_placed"
	EventTrickWon     EventType = "trick_won"
	EventGameEnded    EventType = "game_ended"
	EventSuspended    EventType = "suspended"
	EventResumed      EventType = "resumed"
	EventPeerEvicted  EventType = "peer_evicted"
	EventWriteFailed  EventType = "write_failed"
)

// Event is one derived transition. Fields are set per type: PlayerID and
// PlayerName for bid/trick/presence events, Bid for EventBidPlaced,
// Countdown for EventSuspended, Ranking for EventGameEnded, Err for
// EventWriteFailed.
type Event struct {
	Type       EventType
	PlayerID   string
	PlayerName string
	Bid        int
	Countdown  time.Duration
	Ranking    []game.Ranked
	Err        error
}
