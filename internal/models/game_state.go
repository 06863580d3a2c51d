// internal/models/game_state.go
package models

// GameStatus is the lifecycle phase of the shared game document.
type GameStatus string

const (
	StatusWaitingDeal GameStatus = "waiting_deal"
	StatusBidding     GameStatus = "bidding"
	StatusPlaying     GameStatus = "playing"
	StatusEnded       GameStatus = "ended"
)

// RoundResult is one player's line in a completed round's history entry.
type RoundResult struct {
	Bid    int `json:"bid"`
	Won    int `json:"won"`
	Points int `json:"points"`
}

// RoundRecord captures one completed round for the scorecard.
type RoundRecord struct {
	Round   int                    `json:"round"`
	Players map[string]RoundResult `json:"players"`
}

// GameState is the single authoritative document at lobbies/{code}/game.
// The store has no schema; every client validates and repairs a snapshot
// through Normalize before trusting it. Empty strings stand in for the
// store's nulls on LeadSuit, CurrentBidder and CurrentPlayer.
type GameState struct {
	Players       []Player          `json:"players"`
	DealerID      string            `json:"dealerId"`
	HostID        string            `json:"hostId"`
	Round         int               `json:"round"`
	CardsPerRound int               `json:"cardsPerRound"`
	Trump         string            `json:"trump"`
	Hands         map[string][]Card `json:"hands"`
	Bids          map[string]int    `json:"bids"`
	TricksWon     map[string]int    `json:"tricksWon"`
	Trick         []TrickPlay       `json:"trick"`
	LeadSuit      string            `json:"leadSuit"`
	CurrentBidder string            `json:"currentBidder"`
	CurrentPlayer string            `json:"currentPlayer"`
	Status        GameStatus        `json:"status"`
	Scores        map[string]int    `json:"scores"`
	RoundHistory  []RoundRecord     `json:"roundHistory"`
	ScoringRule   string            `json:"scoringRule"`
}

// Normalize repairs a freshly-decoded snapshot. The store collapses empty
// maps to absence, so every map field may arrive nil; downstream code
// indexes them freely and must never see a nil map.
func (g *GameState) Normalize() {
	if g.Hands == nil {
		g.Hands = map[string][]Card{}
	}
	if g.Bids == nil {
		g.Bids = map[string]int{}
	}
	if g.TricksWon == nil {
		g.TricksWon = map[string]int{}
	}
	if g.Scores == nil {
		g.Scores = map[string]int{}
	}
	if g.Trick == nil {
		g.Trick = []TrickPlay{}
	}
	if g.RoundHistory == nil {
		g.RoundHistory = []RoundRecord{}
	}
}

// CardsThisRound is the hand size for the current round. Zero or below
// means the game must terminate instead of dealing.
func (g *GameState) CardsThisRound() int {
	return g.CardsPerRound - g.Round + 1
}

// SeatIndex returns the player's position in fixed seat order, or -1.
func (g *GameState) SeatIndex(playerID string) int {
	for i, p := range g.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

// NextSeat returns the id of the player one seat clockwise of playerID.
func (g *GameState) NextSeat(playerID string) string {
	idx := g.SeatIndex(playerID)
	if idx < 0 || len(g.Players) == 0 {
		return ""
	}
	return g.Players[(idx+1)%len(g.Players)].ID
}

// PlayerByID returns the seat snapshot for playerID, or nil.
func (g *GameState) PlayerByID(playerID string) *Player {
	idx := g.SeatIndex(playerID)
	if idx < 0 {
		return nil
	}
	return &g.Players[idx]
}

// Clone returns a deep copy. Clients mutate a clone during validation and
// only publish it to the store once the mutation is accepted.
func (g *GameState) Clone() *GameState {
	out := *g
	out.Players = append([]Player(nil), g.Players...)
	out.Trick = append([]TrickPlay(nil), g.Trick...)
	out.Hands = make(map[string][]Card, len(g.Hands))
	for id, hand := range g.Hands {
		out.Hands[id] = append([]Card(nil), hand...)
	}
	out.Bids = make(map[string]int, len(g.Bids))
	for id, b := range g.Bids {
		out.Bids[id] = b
	}
	out.TricksWon = make(map[string]int, len(g.TricksWon))
	for id, w := range g.TricksWon {
		out.TricksWon[id] = w
	}
	out.Scores = make(map[string]int, len(g.Scores))
	for id, s := range g.Scores {
		out.Scores[id] = s
	}
	out.RoundHistory = make([]RoundRecord, len(g.RoundHistory))
	for i, rec := range g.RoundHistory {
		cp := rec
		cp.Players = make(map[string]RoundResult, len(rec.Players))
		for id, res := range rec.Players {
			cp.Players[id] = res
		}
		out.RoundHistory[i] = cp
	}
	return &out
}
