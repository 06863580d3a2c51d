// internal/game/trick.go
package game

import "github.com/anvar-m/judgement/internal/models"

// PlayCard validates and applies one card play to g, mutating it in place.
// Callers validate against a clone and publish only on success.
//
// When the play completes the trick, CurrentPlayer is cleared rather than
// advanced. That null is the trick-complete signal every observer keys on;
// the dealer's client assigns the next leader after resolving the winner.
func PlayCard(g *models.GameState, playerID string, card models.Card) error {
	if g.Status != models.StatusPlaying {
		return ErrWrongPhase
	}
	if g.CurrentPlayer == "" {
		return ErrNoActiveTurn
	}
	if g.CurrentPlayer != playerID {
		return ErrNotYourTurn
	}
	hand := g.Hands[playerID]
	held := -1
	for i, c := range hand {
		if c.Equal(card) {
			held = i
			break
		}
	}
	if held < 0 {
		return ErrCardNotHeld
	}
	if g.LeadSuit != "" && card.Suit != g.LeadSuit && holdsSuit(hand, g.LeadSuit) {
		return ErrMustFollowSuit
	}

	g.Hands[playerID] = append(append([]models.Card{}, hand[:held]...), hand[held+1:]...)
	if len(g.Trick) == 0 {
		g.LeadSuit = card.Suit
	}
	g.Trick = append(g.Trick, models.TrickPlay{PlayerID: playerID, Card: card})
	if len(g.Trick) == len(g.Players) {
		g.CurrentPlayer = ""
		return nil
	}
	g.CurrentPlayer = g.NextSeat(playerID)
	return nil
}

func holdsSuit(hand []models.Card, suit string) bool {
	for _, c := range hand {
		if c.Suit == suit {
			return true
		}
	}
	return false
}

// trickCategory ranks a played card's class: trump beats follows-lead
// beats off-suit. Within a class, rank value decides.
func trickCategory(card models.Card, trump, leadSuit string) int {
	switch card.Suit {
	case trump:
		return 2
	case leadSuit:
		return 1
	default:
		return 0
	}
}

// TrickWinner returns the id of the player whose card takes the trick.
// Every client runs this for display; only the dealer commits the result.
// Two structurally equal cards in one trick mean the shared document is
// corrupt, never a legal game state, so that is reported as an error
// instead of picking an arbitrary winner.
func TrickWinner(trick []models.TrickPlay, trump, leadSuit string) (string, error) {
	if len(trick) == 0 {
		return "", ErrCorruptTrick
	}
	seen := make(map[string]bool, len(trick))
	winner := trick[0]
	for i, play := range trick {
		key := play.Card.Key()
		if seen[key] {
			return "", ErrCorruptTrick
		}
		seen[key] = true
		if i == 0 {
			continue
		}
		wc := trickCategory(winner.Card, trump, leadSuit)
		pc := trickCategory(play.Card, trump, leadSuit)
		if pc > wc || (pc == wc && play.Card.Value > winner.Card.Value) {
			winner = play
		}
	}
	return winner.PlayerID, nil
}
