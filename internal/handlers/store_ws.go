// internal/handlers/store_ws.go
package handlers

import (
	"context"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/anvar-m/judgement/internal/store"
)

// wsRequest is one client operation against the shared store.
type wsRequest struct {
	Op     string         `json:"op"` // watch, unwatch, get, set, update, on_disconnect
	ID     string         `json:"id,omitempty"`
	Path   string         `json:"path,omitempty"`
	Value  any            `json:"value,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

// wsResponse is an ack, an error, or a watch snapshot.
type wsResponse struct {
	Op    string `json:"op"` // ack, error, snapshot
	ID    string `json:"id,omitempty"`
	Path  string `json:"path,omitempty"`
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// StoreHandler bridges browser websockets to a store backend: each
// connection gets a Session whose disconnect hooks fire when the socket
// drops, which is what flips a vanished player's presence flag offline.
type StoreHandler struct {
	st  store.Store
	log *logrus.Logger
}

func NewStoreHandler(st store.Store, log *logrus.Logger) *StoreHandler {
	return &StoreHandler{st: st, log: log}
}

func (h *StoreHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{"judgement-store"},
	})
	if err != nil {
		h.log.WithError(err).Warn("websocket accept failed")
		return
	}

	sessionID := uuid.NewString()
	log := h.log.WithFields(logrus.Fields{
		"session": sessionID,
		"remote":  r.RemoteAddr,
	})
	log.Info("store session opened")

	ctx, cancel := context.WithCancel(r.Context())
	sess := store.NewSession(h.st)
	c := &wsConn{
		conn:    conn,
		st:      h.st,
		sess:    sess,
		log:     log,
		out:     make(chan wsResponse, 64),
		watches: map[string]store.CancelFunc{},
		cancel:  cancel,
	}

	go c.writePump(ctx)
	c.readLoop(ctx)

	c.teardown()
	// The socket is gone; disconnect hooks run on a fresh context.
	sess.Close(context.Background())
	_ = conn.Close(websocket.StatusNormalClosure, "")
	log.Info("store session closed")
}

type wsConn struct {
	conn   *websocket.Conn
	st     store.Store
	sess   *store.Session
	log    *logrus.Entry
	out    chan wsResponse
	cancel context.CancelFunc

	mu      sync.Mutex
	watches map[string]store.CancelFunc
	closed  bool
}

func (c *wsConn) readLoop(ctx context.Context) {
	for {
		var req wsRequest
		if err := wsjson.Read(ctx, c.conn, &req); err != nil {
			return
		}
		c.handle(ctx, req)
	}
}

func (c *wsConn) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.out:
			if err := wsjson.Write(ctx, c.conn, msg); err != nil {
				c.cancel()
				return
			}
		}
	}
}

// send enqueues a message for the write pump. A full buffer means the
// client cannot keep up with its own subscriptions; the connection is
// dropped and the browser reconnects with fresh snapshots.
func (c *wsConn) send(msg wsResponse) {
	select {
	case c.out <- msg:
	default:
		c.log.Warn("slow consumer, dropping connection")
		c.cancel()
	}
}

func (c *wsConn) handle(ctx context.Context, req wsRequest) {
	switch req.Op {
	case "watch":
		c.watch(req)
	case "unwatch":
		c.unwatch(req)
	case "get":
		v, err := c.st.Get(ctx, req.Path)
		c.ack(req, v, err)
	case "set":
		c.ack(req, nil, c.st.Set(ctx, req.Path, req.Value))
	case "update":
		c.ack(req, nil, c.st.Update(ctx, req.Path, req.Fields))
	case "on_disconnect":
		c.sess.OnDisconnectUpdate(req.Path, req.Fields)
		c.ack(req, nil, nil)
	default:
		c.send(wsResponse{Op: "error", ID: req.ID, Error: "unknown op: " + req.Op})
	}
}

func (c *wsConn) watch(req wsRequest) {
	c.mu.Lock()
	if _, exists := c.watches[req.Path]; exists {
		c.mu.Unlock()
		c.ack(req, nil, nil)
		return
	}
	c.mu.Unlock()

	path := req.Path
	cancelWatch, err := c.st.Watch(path, func(snap store.Snapshot) {
		c.send(wsResponse{Op: "snapshot", Path: snap.Path, Value: snap.Value})
	})
	if err != nil {
		c.ack(req, nil, err)
		return
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancelWatch()
		return
	}
	c.watches[path] = cancelWatch
	c.mu.Unlock()
	c.ack(req, nil, nil)
}

func (c *wsConn) unwatch(req wsRequest) {
	c.mu.Lock()
	cancelWatch := c.watches[req.Path]
	delete(c.watches, req.Path)
	c.mu.Unlock()
	if cancelWatch != nil {
		cancelWatch()
	}
	c.ack(req, nil, nil)
}

func (c *wsConn) ack(req wsRequest, value any, err error) {
	if err != nil {
		c.send(wsResponse{Op: "error", ID: req.ID, Path: req.Path, Error: err.Error()})
		return
	}
	c.send(wsResponse{Op: "ack", ID: req.ID, Path: req.Path, Value: value})
}

func (c *wsConn) teardown() {
	c.mu.Lock()
	c.closed = true
	watches := c.watches
	c.watches = map[string]store.CancelFunc{}
	c.mu.Unlock()
	for _, cancelWatch := range watches {
		cancelWatch()
	}
}
