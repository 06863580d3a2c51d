// internal/lobby/lobby_test.go
package lobby

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anvar-m/judgement/internal/models"
	"github.com/anvar-m/judgement/internal/store"
)

func testService() (*Service, *store.MemoryStore) {
	st := store.NewMemoryStore()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewService(st, logger, rand.New(rand.NewSource(42))), st
}

func TestLobbyCodeFormat(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		code := NewLobbyCode(rng)
		require.Len(t, code, 6)
		for _, r := range code {
			assert.Contains(t, codeAlphabet, string(r))
		}
	}
}

func TestCreateAndJoin(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()

	code, host, err := svc.Create(ctx, "Ana", "cat")
	require.NoError(t, err)
	require.NotEmpty(t, host.ID)
	assert.Equal(t, models.StatusOnline, host.Status)

	guest, err := svc.Join(ctx, code, "Ben", "dog")
	require.NoError(t, err)
	assert.NotEqual(t, host.ID, guest.ID)

	players, err := svc.Players(ctx, code)
	require.NoError(t, err)
	assert.Len(t, players, 2)
}

func TestJoinUnknownLobbyFails(t *testing.T) {
	svc, _ := testService()
	_, err := svc.Join(context.Background(), "NOPE00", "Ana", "cat")
	assert.ErrorIs(t, err, ErrLobbyNotFound)
}

func TestJoinRejectsDuplicateOnlineName(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()
	code, _, err := svc.Create(ctx, "Ana", "cat")
	require.NoError(t, err)

	_, err = svc.Join(ctx, code, "Ana", "fox")
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

// TestRejoinByNameReclaimsOfflinePlayer: a returning browser gets its old
// id and seat back instead of a fresh player record.
func TestRejoinByNameReclaimsOfflinePlayer(t *testing.T) {
	svc, st := testService()
	ctx := context.Background()
	code, _, err := svc.Create(ctx, "Ana", "cat")
	require.NoError(t, err)
	guest, err := svc.Join(ctx, code, "Ben", "dog")
	require.NoError(t, err)

	require.NoError(t, st.Update(ctx, PlayerPath(code, guest.ID), map[string]any{
		"status": models.StatusOffline,
	}))
	// Mid-game rejoin is exactly the case this exists for.
	_, err = svc.StartGame(ctx, code, 5, "classic")
	require.NoError(t, err)

	back, err := svc.Join(ctx, code, "Ben", "owl")
	require.NoError(t, err)
	assert.Equal(t, guest.ID, back.ID, "id is reclaimed, not re-minted")
	assert.Equal(t, "owl", back.Avatar)
	assert.Equal(t, models.StatusOnline, back.Status)

	players, err := svc.Players(ctx, code)
	require.NoError(t, err)
	assert.Len(t, players, 2)
}

func TestJoinBlockedMidGame(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()
	code, _, err := svc.Create(ctx, "Ana", "cat")
	require.NoError(t, err)
	_, err = svc.Join(ctx, code, "Ben", "dog")
	require.NoError(t, err)
	_, err = svc.StartGame(ctx, code, 5, "classic")
	require.NoError(t, err)

	_, err = svc.Join(ctx, code, "Cleo", "bat")
	assert.ErrorIs(t, err, ErrGameInProgress)
}

func TestStartGameRequiresTwoPlayers(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()
	code, _, err := svc.Create(ctx, "Ana", "cat")
	require.NoError(t, err)

	_, err = svc.StartGame(ctx, code, 5, "classic")
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)
}

func TestStartGameSeatsAndClamps(t *testing.T) {
	svc, st := testService()
	ctx := context.Background()
	code, host, err := svc.Create(ctx, "Ana", "cat")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond) // distinct joinedAt ordering
	guest, err := svc.Join(ctx, code, "Ben", "dog")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	third, err := svc.Join(ctx, code, "Cleo", "bat")
	require.NoError(t, err)

	g, err := svc.StartGame(ctx, code, 99, "high_stakes")
	require.NoError(t, err)

	assert.Equal(t, 17, g.CardsPerRound, "oversized request clamps to deck/N")
	require.Len(t, g.Players, 3)
	assert.Equal(t, []string{host.ID, guest.ID, third.ID},
		[]string{g.Players[0].ID, g.Players[1].ID, g.Players[2].ID},
		"seats follow join order")
	for i, p := range g.Players {
		assert.Equal(t, i, p.Seat)
	}
	assert.Equal(t, g.DealerID, g.HostID)
	assert.NotEqual(t, -1, g.SeatIndex(g.DealerID))
	assert.Equal(t, 1, g.Round)
	assert.Equal(t, models.StatusWaitingDeal, g.Status)
	assert.Equal(t, "high_stakes", g.ScoringRule)

	v, err := st.Get(ctx, GamePath(code))
	require.NoError(t, err)
	require.NotNil(t, v, "game document written to the store")
}

func TestLeaveRemovesPlayerAndGameKeys(t *testing.T) {
	svc, st := testService()
	ctx := context.Background()
	code, host, err := svc.Create(ctx, "Ana", "cat")
	require.NoError(t, err)
	guest, err := svc.Join(ctx, code, "Ben", "dog")
	require.NoError(t, err)
	_, err = svc.StartGame(ctx, code, 3, "classic")
	require.NoError(t, err)
	require.NoError(t, st.Update(ctx, GamePath(code), map[string]any{
		"bids/" + guest.ID:  2,
		"hands/" + guest.ID: []map[string]any{{"suit": "♥", "rank": "4", "value": 4}},
	}))

	require.NoError(t, svc.Leave(ctx, code, guest.ID))

	players, err := svc.Players(ctx, code)
	require.NoError(t, err)
	assert.NotContains(t, players, guest.ID)
	assert.Contains(t, players, host.ID)

	v, err := st.Get(ctx, GamePath(code)+"/bids/"+guest.ID)
	require.NoError(t, err)
	assert.Nil(t, v)
	v, err = st.Get(ctx, GamePath(code)+"/hands/"+guest.ID)
	require.NoError(t, err)
	assert.Nil(t, v)
}

// TestRematchMigratesRoster: the new lobby carries every player, flipped
// online, and the old lobby gets the migration signal.
func TestRematchMigratesRoster(t *testing.T) {
	svc, st := testService()
	ctx := context.Background()
	code, _, err := svc.Create(ctx, "Ana", "cat")
	require.NoError(t, err)
	guest, err := svc.Join(ctx, code, "Ben", "dog")
	require.NoError(t, err)
	require.NoError(t, st.Update(ctx, PlayerPath(code, guest.ID), map[string]any{
		"status": models.StatusOffline,
	}))

	newCode, err := svc.Rematch(ctx, code)
	require.NoError(t, err)
	require.NotEqual(t, code, newCode)

	migrated, err := svc.Players(ctx, newCode)
	require.NoError(t, err)
	require.Len(t, migrated, 2)
	for _, p := range migrated {
		assert.Equal(t, models.StatusOnline, p.Status, "roster migrates fully online")
	}

	v, err := st.Get(ctx, RematchPath(code))
	require.NoError(t, err)
	var sig models.RematchSignal
	require.NoError(t, store.Decode(v, &sig))
	assert.Equal(t, newCode, sig.NewLobbyCode)
}

func TestReactionLifecycle(t *testing.T) {
	svc, st := testService()
	ctx := context.Background()
	code, host, err := svc.Create(ctx, "Ana", "cat")
	require.NoError(t, err)

	key, err := svc.SendReaction(ctx, code, models.Reaction{
		Type:       "emoji",
		Emoji:      "🎉",
		PlayerID:   host.ID,
		PlayerName: host.Name,
		Timestamp:  time.Now().UnixMilli(),
	})
	require.NoError(t, err)

	v, err := st.Get(ctx, ReactionPath(code, key))
	require.NoError(t, err)
	require.NotNil(t, v)

	require.NoError(t, svc.PruneReaction(ctx, code, key))
	v, err = st.Get(ctx, ReactionPath(code, key))
	require.NoError(t, err)
	assert.Nil(t, v)
}
