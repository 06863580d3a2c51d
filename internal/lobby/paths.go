// internal/lobby/paths.go
package lobby

import "fmt"

// Document layout under the shared store. All game coordination happens
// beneath lobbies/{code}.

func LobbyPath(code string) string {
	return fmt.Sprintf("lobbies/%s", code)
}

func PlayersPath(code string) string {
	return fmt.Sprintf("lobbies/%s/players", code)
}

func PlayerPath(code, playerID string) string {
	return fmt.Sprintf("lobbies/%s/players/%s", code, playerID)
}

func GamePath(code string) string {
	return fmt.Sprintf("lobbies/%s/game", code)
}

func ReactionsPath(code string) string {
	return fmt.Sprintf("lobbies/%s/reactions", code)
}

func ReactionPath(code, key string) string {
	return fmt.Sprintf("lobbies/%s/reactions/%s", code, key)
}

func RematchPath(code string) string {
	return fmt.Sprintf("lobbies/%s/rematch", code)
}
