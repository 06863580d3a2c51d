// internal/game/bidding.go
package game

import "github.com/anvar-m/judgement/internal/models"

// SubmitBid validates and applies one bid to g, mutating it in place.
// Callers validate against a clone and publish only on success.
//
// The anti-sum rule binds the positionally last bidder, whoever that is,
// not the dealer: total bids may never equal the round's card count, so at
// least one player is guaranteed to miss their bid.
func SubmitBid(g *models.GameState, playerID string, bid int) error {
	if g.Status != models.StatusBidding {
		return ErrWrongPhase
	}
	if g.CurrentBidder == "" {
		return ErrNoActiveTurn
	}
	if g.CurrentBidder != playerID {
		return ErrNotYourTurn
	}
	cards := g.CardsThisRound()
	if bid < 0 || bid > cards {
		return ErrBidOutOfRange
	}
	if len(g.Bids) == len(g.Players)-1 {
		sum := bid
		for _, b := range g.Bids {
			sum += b
		}
		if sum == cards {
			return ErrAntiSumBid
		}
	}

	g.Bids[playerID] = bid
	if len(g.Bids) == len(g.Players) {
		// Play starts where bidding did, clockwise of the dealer.
		g.Status = models.StatusPlaying
		g.CurrentBidder = ""
		g.CurrentPlayer = g.NextSeat(g.DealerID)
		return nil
	}
	g.CurrentBidder = g.NextSeat(playerID)
	return nil
}
