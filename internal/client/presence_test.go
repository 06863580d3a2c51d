// internal/client/presence_test.go
package client

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anvar-m/judgement/internal/lobby"
	"github.com/anvar-m/judgement/internal/models"
	"github.com/anvar-m/judgement/internal/store"
)

func startClientWith(t *testing.T, st store.Store, self models.Player, grace, wait time.Duration) (*Client, *eventRecorder) {
	t.Helper()
	rec := &eventRecorder{}
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	c := New(st, store.NewSession(st), testLobby, self, logger, Options{
		NoticeDuration:    10 * time.Millisecond,
		PreResolveDelay:   5 * time.Millisecond,
		RoundAdvanceDelay: 5 * time.Millisecond,
		GracePeriod:       grace,
		ReconnectWait:     wait,
		Rand:              rand.New(rand.NewSource(7)),
		Notify:            rec.record,
	})
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { c.Stop(context.Background()) })
	return c, rec
}

func setPeerStatus(t *testing.T, st store.Store, id, status string) {
	t.Helper()
	err := st.Update(context.Background(), lobby.PlayerPath(testLobby, id), map[string]any{
		"status":   status,
		"lastSeen": time.Now().UnixMilli(),
	})
	require.NoError(t, err)
}

// TestReconnectWithinGraceIsSilent: a peer that comes back before the
// grace timer expires causes no user-facing interruption.
func TestReconnectWithinGraceIsSilent(t *testing.T) {
	st := store.NewMemoryStore()
	players := testPlayers(2)
	seedLobby(t, st, players, nil)

	c1, rec := startClientWith(t, st, players[0], 250*time.Millisecond, 10*time.Second)
	waitFor(t, func() bool { return c1.Phase() == PhaseIdle }, "client idle after start")

	setPeerStatus(t, st, "p2", models.StatusOffline)
	setPeerStatus(t, st, "p2", models.StatusOnline)

	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, PhaseIdle, c1.Phase())
	assert.Zero(t, rec.countOf(EventSuspended))
}

// TestSuspensionAndResume: grace expiry suspends play with a countdown;
// the peer reconnecting lifts the suspension with no state mutated.
func TestSuspensionAndResume(t *testing.T) {
	st := store.NewMemoryStore()
	players := testPlayers(3)
	g := freshGame(players, 3)
	g.Status = models.StatusBidding
	g.CurrentBidder = "p1"
	seedLobby(t, st, players, g)

	c1, rec := startClientWith(t, st, players[0], 15*time.Millisecond, 10*time.Second)
	waitFor(t, func() bool { return c1.Game() != nil }, "initial snapshot")

	setPeerStatus(t, st, "p2", models.StatusOffline)
	waitFor(t, func() bool { return c1.Phase() == PhaseSuspendedForReconnect }, "grace expiry suspends")

	ev, ok := rec.lastOf(EventSuspended)
	require.True(t, ok)
	assert.Equal(t, "p2", ev.PlayerID)
	assert.Equal(t, 10*time.Second, ev.Countdown)

	// Even the turn holder is locked out while suspended.
	assert.ErrorIs(t, c1.SubmitBid(1), ErrBusy)

	before := c1.Game()
	setPeerStatus(t, st, "p2", models.StatusOnline)
	waitFor(t, func() bool { return c1.Phase() == PhaseIdle }, "reconnect resumes play")
	assert.Equal(t, 1, rec.countOf(EventResumed))
	assert.Equal(t, before.Bids, c1.Game().Bids, "no game state changed during the wait")
	assert.Equal(t, "p1", c1.Game().CurrentBidder)
}

// TestEvictionAfterCountdown: a peer offline through grace plus countdown
// is stripped from the roster and every game structure, and the turn
// advances past them.
func TestEvictionAfterCountdown(t *testing.T) {
	st := store.NewMemoryStore()
	players := testPlayers(3)
	g := freshGame(players, 3)
	g.Status = models.StatusPlaying
	g.CurrentPlayer = "p2"
	g.Hands = map[string][]models.Card{
		"p1": {{Suit: "♥", Rank: "5", Value: 5}},
		"p2": {{Suit: "♥", Rank: "6", Value: 6}},
		"p3": {{Suit: "♥", Rank: "7", Value: 7}},
	}
	g.Bids = map[string]int{"p1": 1, "p2": 1, "p3": 1}
	seedLobby(t, st, players, g)

	c1, rec := startClientWith(t, st, players[0], 10*time.Millisecond, 25*time.Millisecond)
	waitFor(t, func() bool { return c1.Game() != nil }, "initial snapshot")

	setPeerStatus(t, st, "p2", models.StatusOffline)
	waitFor(t, func() bool { return rec.countOf(EventPeerEvicted) > 0 }, "countdown expiry evicts")

	waitFor(t, func() bool {
		g := c1.Game()
		return g != nil && g.SeatIndex("p2") == -1
	}, "evicted player leaves the game document")

	g2 := c1.Game()
	assert.NotContains(t, g2.Hands, "p2")
	assert.NotContains(t, g2.Bids, "p2")
	assert.NotContains(t, g2.TricksWon, "p2")
	assert.NotContains(t, g2.Scores, "p2")
	assert.Equal(t, "p3", g2.CurrentPlayer, "turn passes to the next remaining seat")

	v, err := st.Get(context.Background(), lobby.PlayerPath(testLobby, "p2"))
	require.NoError(t, err)
	assert.Nil(t, v, "player record removed from the lobby")

	waitFor(t, func() bool { return c1.Phase() == PhaseIdle }, "play resumes after eviction")
}

// TestOwnOfflineFlagIgnored: the monitor only watches peers; a client's
// own compensating offline write must not suspend itself.
func TestOwnOfflineFlagIgnored(t *testing.T) {
	st := store.NewMemoryStore()
	players := testPlayers(2)
	seedLobby(t, st, players, nil)

	c1, rec := startClientWith(t, st, players[0], 10*time.Millisecond, 20*time.Millisecond)
	waitFor(t, func() bool { return c1.Phase() == PhaseIdle }, "client idle after start")

	setPeerStatus(t, st, "p1", models.StatusOffline)
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, rec.countOf(EventSuspended))
	assert.Zero(t, rec.countOf(EventPeerEvicted))
}
