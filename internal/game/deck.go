// internal/game/deck.go
package game

import (
	"math/rand"
	"sort"

	"github.com/anvar-m/judgement/internal/models"
)

// Suits in fixed display and trump-rotation order.
var Suits = []string{"♠", "♥", "♦", "♣"}

// Ranks in ascending strength order; values run 2..14, ace high.
var Ranks = []string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}

// NewDeck returns all 52 cards, Fisher-Yates shuffled with the given source.
func NewDeck(rng *rand.Rand) []models.Card {
	deck := make([]models.Card, 0, 52)
	for _, suit := range Suits {
		for i, rank := range Ranks {
			deck = append(deck, models.Card{Suit: suit, Rank: rank, Value: i + 2})
		}
	}
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}

// TrumpForRound returns the trump suit for round n. Trump is cyclic and
// fully determined by the round number.
func TrumpForRound(n int) string {
	return Suits[n%len(Suits)]
}

// Deal partitions the top of the deck across the players, one card at a
// time in seat order starting clockwise of the dealer, for cardsThisRound
// iterations or until the deck runs out. Hands come back sorted by suit
// group then ascending rank value.
func Deal(players []models.Player, dealerID string, cardsThisRound int, deck []models.Card) map[string][]models.Card {
	hands := make(map[string][]models.Card, len(players))
	for _, p := range players {
		hands[p.ID] = []models.Card{}
	}
	start := 0
	for i, p := range players {
		if p.ID == dealerID {
			start = (i + 1) % len(players)
			break
		}
	}
	next := 0
	for i := 0; i < cardsThisRound; i++ {
		for j := 0; j < len(players); j++ {
			if next >= len(deck) {
				break
			}
			p := players[(start+j)%len(players)]
			hands[p.ID] = append(hands[p.ID], deck[next])
			next++
		}
	}
	for id := range hands {
		sortHand(hands[id])
	}
	return hands
}

func suitOrder(suit string) int {
	for i, s := range Suits {
		if s == suit {
			return i
		}
	}
	return len(Suits)
}

func sortHand(hand []models.Card) {
	sort.SliceStable(hand, func(i, j int) bool {
		if hand[i].Suit != hand[j].Suit {
			return suitOrder(hand[i].Suit) < suitOrder(hand[j].Suit)
		}
		return hand[i].Value < hand[j].Value
	})
}
