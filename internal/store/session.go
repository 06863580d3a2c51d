// internal/store/session.go
package store

import (
	"context"
	"sync"
)

// Session tracks one connected client's disconnect hooks. The gateway
// opens a Session per websocket connection and closes it when the
// connection drops, firing every registered compensating update. This is
// how a vanished browser still flips its own presence flag to offline.
type Session struct {
	st Store

	mu     sync.Mutex
	hooks  []disconnectHook
	closed bool
}

type disconnectHook struct {
	path   string
	fields map[string]any
}

// NewSession binds a session to a store backend.
func NewSession(st Store) *Session {
	return &Session{st: st}
}

// OnDisconnectUpdate registers a merge-update to apply when the session
// closes. Hooks registered after Close are dropped.
func (s *Session) OnDisconnectUpdate(path string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.hooks = append(s.hooks, disconnectHook{path: path, fields: fields})
}

// Close fires every registered hook exactly once, best effort: a failed
// hook doesn't block the rest. The peers' grace timers cover the case
// where none of them land.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	hooks := s.hooks
	s.hooks = nil
	s.mu.Unlock()

	for _, h := range hooks {
		_ = s.st.Update(ctx, h.path, h.fields)
	}
}
