// internal/client/presence.go
package client

import (
	"context"
	"sync"
	"time"

	"github.com/anvar-m/judgement/internal/game"
	"github.com/anvar-m/judgement/internal/lobby"
	"github.com/anvar-m/judgement/internal/models"
)

type peerStage int

const (
	stageGrace peerStage = iota
	stageCountdown
)

type peerTimer struct {
	stage peerStage
	timer *time.Timer
}

// presenceMonitor watches peers' online flags off the players snapshots.
// A peer gone offline gets a silent grace period; if it expires the game
// suspends with a visible countdown; if that expires too, the peer is
// evicted. Timers are wall-clock and local to each observing client, so
// several clients may race to evict the same peer. The eviction writes are
// idempotent, which makes the race harmless.
type presenceMonitor struct {
	c *Client

	mu      sync.Mutex
	timers  map[string]*peerTimer
	stopped bool
}

func newPresenceMonitor(c *Client) *presenceMonitor {
	return &presenceMonitor{c: c, timers: map[string]*peerTimer{}}
}

func (m *presenceMonitor) stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	for id, t := range m.timers {
		t.timer.Stop()
		delete(m.timers, id)
	}
}

// observe reconciles timers against a fresh players snapshot.
func (m *presenceMonitor) observe(players map[string]models.Player) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	var resumed bool
	for id, p := range players {
		if id == m.c.self.ID {
			continue
		}
		id := id
		t := m.timers[id]
		switch {
		case !p.Online() && t == nil:
			m.timers[id] = &peerTimer{
				stage: stageGrace,
				timer: time.AfterFunc(m.c.opts.GracePeriod, func() { m.graceExpired(id) }),
			}
		case p.Online() && t != nil:
			t.timer.Stop()
			delete(m.timers, id)
			if t.stage == stageCountdown {
				resumed = true
			}
		}
	}
	// A peer that vanished from the roster entirely was evicted or left.
	for id, t := range m.timers {
		if _, ok := players[id]; !ok {
			t.timer.Stop()
			delete(m.timers, id)
			if t.stage == stageCountdown {
				resumed = true
			}
		}
	}
	anyCountdown := m.anyCountdownLocked()
	m.mu.Unlock()

	if resumed && !anyCountdown {
		m.resume()
	}
}

func (m *presenceMonitor) anyCountdownLocked() bool {
	for _, t := range m.timers {
		if t.stage == stageCountdown {
			return true
		}
	}
	return false
}

// graceExpired escalates a still-offline peer from the silent grace wait
// to the visible countdown, suspending play for this client.
func (m *presenceMonitor) graceExpired(id string) {
	m.mu.Lock()
	t, ok := m.timers[id]
	if m.stopped || !ok || t.stage != stageGrace {
		m.mu.Unlock()
		return
	}
	t.stage = stageCountdown
	t.timer = time.AfterFunc(m.c.opts.ReconnectWait, func() { m.countdownExpired(id) })
	m.mu.Unlock()

	m.c.mu.Lock()
	if m.c.phase != PhaseSuspendedForReconnect {
		m.c.phase = PhaseSuspendedForReconnect
	}
	name := id
	if p, ok := m.c.players[id]; ok {
		name = p.Name
	}
	m.c.mu.Unlock()

	m.c.log.WithField("peer", id).Warn("peer offline past grace period, suspending play")
	m.c.opts.Notify(Event{
		Type:       EventSuspended,
		PlayerID:   id,
		PlayerName: name,
		Countdown:  m.c.opts.ReconnectWait,
	})
}

// countdownExpired evicts the peer: drop their player record and strip
// them out of every game structure. Any observing client may get here
// first; removing an already-absent key is a no-op.
func (m *presenceMonitor) countdownExpired(id string) {
	m.mu.Lock()
	t, ok := m.timers[id]
	if m.stopped || !ok || t.stage != stageCountdown {
		m.mu.Unlock()
		return
	}
	delete(m.timers, id)
	anyCountdown := m.anyCountdownLocked()
	m.mu.Unlock()

	ctx := context.Background()
	if err := m.c.st.Delete(ctx, lobby.PlayerPath(m.c.code, id)); err != nil {
		m.c.log.WithError(err).Warn("eviction player delete failed")
	}
	if g := m.c.Game(); g != nil {
		game.EvictPlayer(g, id)
		if err := m.c.st.Set(ctx, lobby.GamePath(m.c.code), g); err != nil {
			m.c.log.WithError(err).Warn("eviction game write failed")
		}
	}
	m.c.log.WithField("peer", id).Warn("peer evicted after reconnect countdown")
	m.c.opts.Notify(Event{Type: EventPeerEvicted, PlayerID: id})

	if !anyCountdown {
		m.resume()
	}
}

// resume lifts the suspension once no countdown remains. Nothing was
// mutated during the wait, so play picks up exactly where it stopped.
func (m *presenceMonitor) resume() {
	m.c.mu.Lock()
	if m.c.phase == PhaseSuspendedForReconnect {
		m.c.phase = PhaseIdle
	}
	m.c.mu.Unlock()
	m.c.opts.Notify(Event{Type: EventResumed})
}
