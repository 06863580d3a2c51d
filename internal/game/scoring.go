// internal/game/scoring.go
package game

// ScoreFunc maps one player's round outcome to points. Pure; the active
// rule is chosen once before game start and fixed for the whole game.
type ScoreFunc func(bid, won int) int

// DefaultRule is used when a lobby names no rule, or an unknown one.
const DefaultRule = "classic"

var scoringRules = map[string]ScoreFunc{
	"classic":     scoreClassic,
	"high_stakes": scoreHighStakes,
	"aggressive":  scoreAggressive,
	"casual":      scoreCasual,
}

// RuleByName returns the named scoring rule, falling back to classic for
// unknown names so a malformed document never stalls settlement.
func RuleByName(name string) ScoreFunc {
	if fn, ok := scoringRules[name]; ok {
		return fn
	}
	return scoringRules[DefaultRule]
}

// RuleNames lists the selectable scoring rules.
func RuleNames() []string {
	return []string{"classic", "high_stakes", "aggressive", "casual"}
}

func scoreClassic(bid, won int) int {
	switch {
	case won == bid:
		return 20
	case won < bid:
		return 0
	default:
		return won
	}
}

func scoreHighStakes(bid, won int) int {
	switch {
	case won == bid:
		return bid * 10
	case won < bid:
		return 0
	default:
		return bid
	}
}

func scoreAggressive(bid, won int) int {
	switch {
	case won == bid:
		return bid*10 + 10
	case won < bid:
		return -(bid - won) * 5
	default:
		return bid
	}
}

func scoreCasual(bid, won int) int {
	diff := bid - won
	if diff < 0 {
		diff = -diff
	}
	switch {
	case won == bid:
		return bid*5 + 15
	case diff == 1:
		return won * 3
	default:
		return won
	}
}
