// internal/game/errors.go
package game

import "errors"

// Rule violations are detected locally, before any store write, and shown
// inline to the acting player only. Callers match these sentinels instead
// of parsing messages.
var (
	ErrNotYourTurn    = errors.New("not your turn")
	ErrNoActiveTurn   = errors.New("no active turn holder")
	ErrWrongPhase     = errors.New("action not valid in this game phase")
	ErrBidOutOfRange  = errors.New("bid outside the valid range for this round")
	ErrAntiSumBid     = errors.New("last bid may not make total bids equal the card count")
	ErrCardNotHeld    = errors.New("card is not in your hand")
	ErrMustFollowSuit = errors.New("must follow the lead suit")
	ErrCorruptTrick   = errors.New("trick contains a duplicate card")
	ErrUnknownPlayer  = errors.New("player is not seated in this game")
)
