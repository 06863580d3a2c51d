// internal/models/card.go
package models

// Card is one of the 52 cards in a Judgement deck. Identity is by value:
// two cards with the same suit and rank are the same card, regardless of
// where their bytes came from. Value is the rank strength (2..14, ace high).
type Card struct {
	Suit  string `json:"suit"`
	Rank  string `json:"rank"`
	Value int    `json:"value"`
}

// Key returns the stable match key used for by-value card identity,
// e.g. "Q♥". Hands and tricks never contain two cards with the same key.
func (c Card) Key() string {
	return c.Rank + c.Suit
}

// Equal reports structural equality on suit and rank. Value is derived
// from rank and deliberately ignored so a malformed snapshot can't make
// a held card unplayable.
func (c Card) Equal(other Card) bool {
	return c.Suit == other.Suit && c.Rank == other.Rank
}

// TrickPlay is one card laid into the trick in progress.
type TrickPlay struct {
	PlayerID string `json:"playerId"`
	Card     Card   `json:"card"`
}
