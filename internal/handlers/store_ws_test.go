// internal/handlers/store_ws_test.go
package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anvar-m/judgement/internal/store"
)

func dialTestServer(t *testing.T, st store.Store) (*websocket.Conn, context.Context) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	srv := httptest.NewServer(NewStoreHandler(st, logger))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: []string{"judgement-store"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn, ctx
}

// readUntil drains messages until one with the wanted op arrives, so the
// assertions do not depend on snapshot/ack interleaving.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, op string) wsResponse {
	t.Helper()
	for {
		var resp wsResponse
		require.NoError(t, wsjson.Read(ctx, conn, &resp))
		if resp.Op == op {
			return resp
		}
	}
}

func TestGatewaySetGetWatch(t *testing.T) {
	st := store.NewMemoryStore()
	conn, ctx := dialTestServer(t, st)

	require.NoError(t, wsjson.Write(ctx, conn, wsRequest{Op: "watch", ID: "1", Path: "lobbies/L/game"}))
	snap := readUntil(t, ctx, conn, "snapshot")
	assert.Equal(t, "lobbies/L/game", snap.Path)
	assert.Nil(t, snap.Value, "initial snapshot of an absent path is null")

	require.NoError(t, wsjson.Write(ctx, conn, wsRequest{
		Op: "set", ID: "2", Path: "lobbies/L/game",
		Value: map[string]any{"round": 1, "status": "bidding"},
	}))
	snap = readUntil(t, ctx, conn, "snapshot")
	require.NotNil(t, snap.Value)
	assert.Equal(t, "bidding", snap.Value.(map[string]any)["status"])

	require.NoError(t, wsjson.Write(ctx, conn, wsRequest{
		Op: "update", ID: "3", Path: "lobbies/L/game",
		Fields: map[string]any{"status": "playing"},
	}))
	snap = readUntil(t, ctx, conn, "snapshot")
	m := snap.Value.(map[string]any)
	assert.Equal(t, "playing", m["status"])
	assert.Equal(t, float64(1), m["round"], "merge-update left the sibling")

	require.NoError(t, wsjson.Write(ctx, conn, wsRequest{Op: "get", ID: "4", Path: "lobbies/L/game"}))
	ack := readUntil(t, ctx, conn, "ack")
	for ack.ID != "4" {
		ack = readUntil(t, ctx, conn, "ack")
	}
	assert.Equal(t, "playing", ack.Value.(map[string]any)["status"])
}

func TestGatewayRejectsUnknownOp(t *testing.T) {
	st := store.NewMemoryStore()
	conn, ctx := dialTestServer(t, st)

	require.NoError(t, wsjson.Write(ctx, conn, wsRequest{Op: "frobnicate", ID: "1"}))
	resp := readUntil(t, ctx, conn, "error")
	assert.Contains(t, resp.Error, "unknown op")
}

// TestDisconnectHookFiresOnSocketDrop: the compensating presence write
// lands after the connection closes without a clean leave.
func TestDisconnectHookFiresOnSocketDrop(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, "lobbies/L/players/p1", map[string]any{"status": "online"}))

	conn, dialCtx := dialTestServer(t, st)
	require.NoError(t, wsjson.Write(dialCtx, conn, wsRequest{
		Op: "on_disconnect", ID: "1", Path: "lobbies/L/players/p1",
		Fields: map[string]any{"status": "offline"},
	}))
	readUntil(t, dialCtx, conn, "ack")

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool {
		v, err := st.Get(ctx, "lobbies/L/players/p1")
		if err != nil || v == nil {
			return false
		}
		return v.(map[string]any)["status"] == "offline"
	}, 3*time.Second, 10*time.Millisecond, "disconnect hook should flip presence offline")
}
