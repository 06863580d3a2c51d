// internal/models/player.go
package models

// Player presence status values as written to the shared store.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Player is one participant's record under lobbies/{code}/players/{id}.
// IDs are client-generated (unix millis + random suffix) and stable for
// the session; Seat is assigned once at game start and defines turn order.
type Player struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
	JoinedAt int64  `json:"joinedAt"`
	LastSeen int64  `json:"lastSeen"`
	Status   string `json:"status"`
	Seat     int    `json:"seat"`
}

// Online reports whether the player's presence flag says online.
func (p Player) Online() bool {
	return p.Status == StatusOnline
}
