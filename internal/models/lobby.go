// internal/models/lobby.go
package models

// Reaction is an ephemeral emoji/chat event under lobbies/{code}/reactions.
// The sender prunes its own reaction a few seconds after writing it.
type Reaction struct {
	Type       string `json:"type"` // "emoji" or "message"
	Emoji      string `json:"emoji,omitempty"`
	Message    string `json:"message,omitempty"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Timestamp  int64  `json:"timestamp"`
}

// RematchSignal at lobbies/{code}/rematch tells every subscribed client to
// migrate to a freshly created lobby carrying the same roster.
type RematchSignal struct {
	NewLobbyCode string `json:"newLobbyCode"`
	Timestamp    int64  `json:"timestamp"`
}
