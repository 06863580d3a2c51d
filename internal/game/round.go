// internal/game/round.go
package game

import (
	"sort"

	"github.com/anvar-m/judgement/internal/models"
)

// AllHandsEmpty reports whether every seated player is out of cards, the
// trigger for round settlement.
func AllHandsEmpty(g *models.GameState) bool {
	for _, p := range g.Players {
		if len(g.Hands[p.ID]) > 0 {
			return false
		}
	}
	return true
}

// SettleRound scores the finished round and advances g to the next one,
// mutating it in place. Only the dealer's client publishes the result.
// Missing bids and trick counts score as zero so an evicted player's round
// still settles cleanly.
func SettleRound(g *models.GameState, rule ScoreFunc) {
	record := models.RoundRecord{
		Round:   g.Round,
		Players: make(map[string]models.RoundResult, len(g.Players)),
	}
	for _, p := range g.Players {
		bid := g.Bids[p.ID]
		won := g.TricksWon[p.ID]
		points := rule(bid, won)
		g.Scores[p.ID] += points
		record.Players[p.ID] = models.RoundResult{Bid: bid, Won: won, Points: points}
	}
	g.RoundHistory = append(g.RoundHistory, record)

	g.Round++
	if g.CardsThisRound() <= 0 {
		g.Status = models.StatusEnded
		g.Hands = map[string][]models.Card{}
		g.Trick = []models.TrickPlay{}
		g.LeadSuit = ""
		g.CurrentBidder = ""
		g.CurrentPlayer = ""
		return
	}
	g.DealerID = g.NextSeat(g.DealerID)
	g.Trump = TrumpForRound(g.Round)
	g.Hands = map[string][]models.Card{}
	g.Bids = map[string]int{}
	g.TricksWon = map[string]int{}
	g.Trick = []models.TrickPlay{}
	g.LeadSuit = ""
	g.CurrentBidder = ""
	g.CurrentPlayer = ""
	g.Status = models.StatusWaitingDeal
}

// Ranked is one line of the final standings.
type Ranked struct {
	Player models.Player
	Score  int
}

// FinalRanking orders players by descending cumulative score. Ties keep
// original join order, which seat assignment preserves. Pure and derived;
// rankings are never written back to the shared document.
func FinalRanking(g *models.GameState) []Ranked {
	out := make([]Ranked, len(g.Players))
	for i, p := range g.Players {
		out[i] = Ranked{Player: p, Score: g.Scores[p.ID]}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// EvictPlayer removes a player from every game structure, mutating g in
// place. Turn ownership passes one seat clockwise before removal so the
// game keeps moving; dealership falls to the first remaining seat. Evicting
// an already-absent player is a no-op, which lets multiple observers race
// to evict the same peer.
func EvictPlayer(g *models.GameState, playerID string) {
	idx := g.SeatIndex(playerID)
	if idx < 0 {
		return
	}
	if g.CurrentPlayer == playerID {
		g.CurrentPlayer = g.NextSeat(playerID)
	}
	if g.CurrentBidder == playerID {
		g.CurrentBidder = g.NextSeat(playerID)
	}
	g.Players = append(g.Players[:idx:idx], g.Players[idx+1:]...)
	delete(g.Hands, playerID)
	delete(g.Bids, playerID)
	delete(g.TricksWon, playerID)
	delete(g.Scores, playerID)
	if g.DealerID == playerID && len(g.Players) > 0 {
		g.DealerID = g.Players[0].ID
	}
}
