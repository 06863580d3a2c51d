// internal/lobby/ids.go
package lobby

import (
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewLobbyCode returns a 6-character shareable code. Uniqueness is
// probabilistic only; codes are not reserved or checked for collisions,
// which is acceptable at private-lobby scale.
func NewLobbyCode(rng *rand.Rand) string {
	var b strings.Builder
	for i := 0; i < 6; i++ {
		b.WriteByte(codeAlphabet[rng.Intn(len(codeAlphabet))])
	}
	return b.String()
}

// NewPlayerID returns an opaque id stable for the session: unix millis
// plus a random suffix, unique enough within one lobby's lifetime.
func NewPlayerID() string {
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + suffix
}

// NewReactionKey returns a push-style key for the reactions stream.
func NewReactionKey() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
}
