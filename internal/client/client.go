// internal/client/client.go

// Package client is the per-participant synchronization layer. One Client
// runs inside each connected participant's session, subscribes to the
// lobby's shared documents, validates local actions before writing, and
// carries out the designated-writer duties when this participant is the
// dealer. All cross-client coordination happens through the store; two
// Clients never share memory.
//
// The designated-writer convention, in one place so it stays auditable:
//   - the current turn holder writes bid and card-play state,
//   - the dealer's client writes trick resolution, the deal, and the
//     round settlement,
//   - nobody writes anything for a pure re-render.
// The store is last-write-wins with no conflict detection; this convention
// is the only thing keeping two clients off the same fields.
package client

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anvar-m/judgement/internal/game"
	"github.com/anvar-m/judgement/internal/lobby"
	"github.com/anvar-m/judgement/internal/models"
	"github.com/anvar-m/judgement/internal/store"
)

// Phase is the client-local state machine. It replaces the pile of
// independent booleans (card in flight, trick animating, waiting for a
// reconnect) whose interactions were the historical source of bugs.
type Phase int

const (
	// PhaseIdle accepts user actions, subject to turn validation.
	PhaseIdle Phase = iota
	// PhaseAwaitingWriteAck has a write outstanding; further actions are
	// rejected until its completion callback runs, success or failure.
	PhaseAwaitingWriteAck
	// PhaseDisplayingTransientMessage is showing a trick-winner or
	// round-transition notice; actions are rejected so a nearly
	// simultaneous snapshot cannot stomp the display.
	PhaseDisplayingTransientMessage
	// PhaseSuspendedForReconnect blocks all play while a disconnected
	// peer's countdown runs.
	PhaseSuspendedForReconnect
)

// Options tunes a Client. Zero values take the defaults below; tests set
// tiny durations.
type Options struct {
	NoticeDuration    time.Duration // trick-winner notice display time
	PreResolveDelay   time.Duration // pause before round settlement
	RoundAdvanceDelay time.Duration // pause before the dealer deals
	GracePeriod       time.Duration // silent wait after a peer goes offline
	ReconnectWait     time.Duration // visible countdown before eviction
	Rand              *rand.Rand
	Notify            func(Event)
}

func (o *Options) defaults() {
	if o.NoticeDuration == 0 {
		o.NoticeDuration = 2 * time.Second
	}
	if o.PreResolveDelay == 0 {
		o.PreResolveDelay = time.Second
	}
	if o.RoundAdvanceDelay == 0 {
		o.RoundAdvanceDelay = time.Second
	}
	if o.GracePeriod == 0 {
		o.GracePeriod = 30 * time.Second
	}
	if o.ReconnectWait == 0 {
		o.ReconnectWait = 300 * time.Second
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if o.Notify == nil {
		o.Notify = func(Event) {}
	}
}

// Client owns one participant's view of a lobby.
type Client struct {
	st   store.Store
	sess *store.Session
	log  *logrus.Entry
	code string
	self models.Player
	opts Options

	mu      sync.Mutex
	phase   Phase
	game    *models.GameState
	players map[string]models.Player
	closed  bool

	// Diff baselines for snapshot reconciliation. Transitions fire on
	// change only, which is what makes duplicate delivery harmless.
	prevTrickLen      int
	prevCurrentPlayer string
	prevStatus        models.GameStatus
	prevBidKeys       map[string]bool
	seenGame          bool

	// lastDealtRound stops the dealer from dealing the same round twice
	// when the waiting_deal snapshot is redelivered.
	lastDealtRound int

	// noticeGen invalidates scheduled notice and settlement timers that a
	// newer snapshot has superseded.
	noticeGen int64

	presence *presenceMonitor
	cancels  []store.CancelFunc
}

// New builds a Client for one participant. The session carries the
// disconnect hook that flips this player offline if the connection drops.
func New(st store.Store, sess *store.Session, code string, self models.Player, log *logrus.Logger, opts Options) *Client {
	opts.defaults()
	c := &Client{
		st:   st,
		sess: sess,
		log: log.WithFields(logrus.Fields{
			"lobby":  code,
			"player": self.ID,
		}),
		code:        code,
		self:        self,
		opts:        opts,
		players:     map[string]models.Player{},
		prevBidKeys: map[string]bool{},
	}
	c.presence = newPresenceMonitor(c)
	return c
}

// Start announces presence, registers the offline compensating write, and
// subscribes to the lobby's player list and game document.
func (c *Client) Start(ctx context.Context) error {
	now := time.Now().UnixMilli()
	err := c.st.Update(ctx, lobby.PlayerPath(c.code, c.self.ID), map[string]any{
		"status":   models.StatusOnline,
		"lastSeen": now,
	})
	if err != nil {
		return err
	}
	if c.sess != nil {
		c.sess.OnDisconnectUpdate(lobby.PlayerPath(c.code, c.self.ID), map[string]any{
			"status":   models.StatusOffline,
			"lastSeen": now,
		})
	}

	cancelPlayers, err := c.st.Watch(lobby.PlayersPath(c.code), c.onPlayersSnapshot)
	if err != nil {
		return err
	}
	cancelGame, err := c.st.Watch(lobby.GamePath(c.code), c.onGameSnapshot)
	if err != nil {
		cancelPlayers()
		return err
	}
	c.mu.Lock()
	c.cancels = append(c.cancels, cancelPlayers, cancelGame)
	c.mu.Unlock()
	return nil
}

// Stop detaches subscriptions and announces offline, the clean-shutdown
// equivalent of the disconnect hook.
func (c *Client) Stop(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.noticeGen++
	cancels := c.cancels
	c.cancels = nil
	c.mu.Unlock()

	c.presence.stop()
	for _, cancel := range cancels {
		cancel()
	}
	_ = c.st.Update(ctx, lobby.PlayerPath(c.code, c.self.ID), map[string]any{
		"status":   models.StatusOffline,
		"lastSeen": time.Now().UnixMilli(),
	})
}

// Phase returns the current client-local phase.
func (c *Client) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Game returns a copy of the last game snapshot, nil before the first one.
func (c *Client) Game() *models.GameState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.game == nil {
		return nil
	}
	return c.game.Clone()
}

// SubmitBid validates the bid against the local snapshot and, if accepted,
// publishes it. Rule violations never reach the store.
func (c *Client) SubmitBid(bid int) error {
	c.mu.Lock()
	if c.phase != PhaseIdle {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.game == nil {
		c.mu.Unlock()
		return game.ErrWrongPhase
	}
	next := c.game.Clone()
	if err := game.SubmitBid(next, c.self.ID, bid); err != nil {
		c.mu.Unlock()
		return err
	}
	c.phase = PhaseAwaitingWriteAck
	c.mu.Unlock()

	fields := map[string]any{"bids/" + c.self.ID: bid}
	if next.Status == models.StatusPlaying {
		fields["status"] = string(models.StatusPlaying)
		fields["currentBidder"] = nil
		fields["currentPlayer"] = next.CurrentPlayer
	} else {
		fields["currentBidder"] = next.CurrentBidder
	}
	c.publish(fields)
	return nil
}

// PlayCard validates the play against the local snapshot and, if accepted,
// publishes it. A play already in flight is rejected before validation.
func (c *Client) PlayCard(card models.Card) error {
	c.mu.Lock()
	if c.phase != PhaseIdle {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.game == nil {
		c.mu.Unlock()
		return game.ErrWrongPhase
	}
	next := c.game.Clone()
	if err := game.PlayCard(next, c.self.ID, card); err != nil {
		c.mu.Unlock()
		return err
	}
	c.phase = PhaseAwaitingWriteAck
	c.mu.Unlock()

	fields := map[string]any{
		"hands/" + c.self.ID: next.Hands[c.self.ID],
		"trick":              next.Trick,
		"leadSuit":           next.LeadSuit,
	}
	if next.CurrentPlayer == "" {
		fields["currentPlayer"] = nil
	} else {
		fields["currentPlayer"] = next.CurrentPlayer
	}
	c.publish(fields)
	return nil
}

// publish issues a fire-and-forget merge-update against the game document.
// The in-flight guard clears in the completion callback whether the write
// landed or not, so a failure never locks the user out of retrying.
func (c *Client) publish(fields map[string]any) {
	go func() {
		err := c.st.Update(context.Background(), lobby.GamePath(c.code), fields)
		c.mu.Lock()
		if c.phase == PhaseAwaitingWriteAck {
			c.phase = PhaseIdle
		}
		c.mu.Unlock()
		if err != nil {
			c.log.WithError(err).Warn("game write failed")
			c.opts.Notify(Event{Type: EventWriteFailed, Err: err})
		}
	}()
}

func (c *Client) onPlayersSnapshot(snap store.Snapshot) {
	players := map[string]models.Player{}
	if snap.Value != nil {
		if err := store.Decode(snap.Value, &players); err != nil {
			c.log.WithError(err).Warn("dropping malformed players snapshot")
			return
		}
	}
	c.mu.Lock()
	c.players = players
	c.mu.Unlock()

	c.presence.observe(players)
	c.opts.Notify(Event{Type: EventStateChanged})
}

// onGameSnapshot is the reconciliation heart: diff the snapshot against
// the previous baselines, decide which transition (if any) this client
// fires, and whether it is the designated writer for the follow-up. The
// snapshot is always ground truth; local flags that contradict it lose.
func (c *Client) onGameSnapshot(snap store.Snapshot) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if snap.Value == nil {
		c.game = nil
		c.seenGame = false
		c.prevTrickLen = 0
		c.prevCurrentPlayer = ""
		c.prevStatus = ""
		c.prevBidKeys = map[string]bool{}
		c.lastDealtRound = 0
		c.mu.Unlock()
		c.opts.Notify(Event{Type: EventStateChanged})
		return
	}

	var g models.GameState
	if err := store.Decode(snap.Value, &g); err != nil {
		c.mu.Unlock()
		c.log.WithError(err).Warn("dropping malformed game snapshot")
		return
	}
	g.Normalize()

	first := !c.seenGame
	statusChanged := first || g.Status != c.prevStatus
	turnVanished := c.prevCurrentPlayer != "" && g.CurrentPlayer == ""
	trickCleared := c.prevTrickLen > 0 && len(g.Trick) == 0
	var newBids []string
	for id := range g.Bids {
		if !c.prevBidKeys[id] {
			newBids = append(newBids, id)
		}
	}

	c.game = &g
	c.seenGame = true
	c.prevTrickLen = len(g.Trick)
	c.prevCurrentPlayer = g.CurrentPlayer
	c.prevStatus = g.Status
	c.prevBidKeys = make(map[string]bool, len(g.Bids))
	for id := range g.Bids {
		c.prevBidKeys[id] = true
	}

	isDealer := g.DealerID == c.self.ID
	trickComplete := g.Status == models.StatusPlaying &&
		len(g.Trick) > 0 && len(g.Trick) == len(g.Players) &&
		g.CurrentPlayer == "" && (turnVanished || first)

	var after []func()

	switch {
	case trickComplete:
		winner, err := game.TrickWinner(g.Trick, g.Trump, g.LeadSuit)
		if err != nil {
			c.log.WithError(err).Error("refusing to resolve corrupt trick")
			break
		}
		if c.phase == PhaseIdle || c.phase == PhaseAwaitingWriteAck {
			c.phase = PhaseDisplayingTransientMessage
		}
		c.noticeGen++
		gen := c.noticeGen
		winnerName := winner
		if p := g.PlayerByID(winner); p != nil {
			winnerName = p.Name
		}
		after = append(after, func() {
			c.opts.Notify(Event{Type: EventTrickWon, PlayerID: winner, PlayerName: winnerName})
		})
		time.AfterFunc(c.opts.NoticeDuration, func() { c.noticeExpired(gen, winner, isDealer) })
		if isDealer {
			won := g.TricksWon[winner] + 1
			after = append(after, func() {
				c.writeGame(map[string]any{"tricksWon/" + winner: won})
			})
		}

	case statusChanged && g.Status == models.StatusWaitingDeal:
		if isDealer && c.lastDealtRound != g.Round {
			c.lastDealtRound = g.Round
			snapshot := g.Clone()
			time.AfterFunc(c.opts.RoundAdvanceDelay, func() { c.deal(snapshot) })
		}

	case statusChanged && g.Status == models.StatusEnded:
		ranking := game.FinalRanking(&g)
		after = append(after, func() {
			c.opts.Notify(Event{Type: EventGameEnded, Ranking: ranking})
		})
	}

	if trickCleared && g.CurrentPlayer == "" && c.phase == PhaseIdle {
		// Window between trick-clear and next-leader assignment: hold the
		// notice so no stale turn indicator flashes.
		c.phase = PhaseDisplayingTransientMessage
		c.noticeGen++
		gen := c.noticeGen
		time.AfterFunc(c.opts.NoticeDuration, func() { c.noticeExpired(gen, "", false) })
	}
	if !first {
		for _, id := range newBids {
			id := id
			bid := g.Bids[id]
			name := id
			if p := g.PlayerByID(id); p != nil {
				name = p.Name
			}
			after = append(after, func() {
				c.opts.Notify(Event{Type: EventBidPlaced, PlayerID: id, PlayerName: name, Bid: bid})
			})
		}
	}
	c.mu.Unlock()

	for _, fn := range after {
		fn()
	}
	c.opts.Notify(Event{Type: EventStateChanged})
}

// noticeExpired ends the transient-message window. When this client is the
// dealer it then performs the follow-up authoritative write: hand the lead
// to the trick winner, or begin round settlement once every hand is empty.
func (c *Client) noticeExpired(gen int64, winner string, dealer bool) {
	c.mu.Lock()
	if c.closed || gen != c.noticeGen {
		c.mu.Unlock()
		return
	}
	if c.phase == PhaseDisplayingTransientMessage {
		c.phase = PhaseIdle
	}
	g := c.game
	var snapshot *models.GameState
	if g != nil {
		snapshot = g.Clone()
	}
	c.mu.Unlock()

	if !dealer || winner == "" || snapshot == nil || snapshot.Status != models.StatusPlaying {
		return
	}
	if game.AllHandsEmpty(snapshot) {
		time.AfterFunc(c.opts.PreResolveDelay, func() { c.settleRound(gen) })
		return
	}
	c.writeGame(map[string]any{
		"trick":         nil,
		"leadSuit":      nil,
		"currentPlayer": winner,
	})
}

// settleRound scores the finished round and publishes the next round's
// starting state in one overwrite. Dealer only.
func (c *Client) settleRound(gen int64) {
	c.mu.Lock()
	if c.closed || gen != c.noticeGen || c.game == nil {
		c.mu.Unlock()
		return
	}
	next := c.game.Clone()
	c.mu.Unlock()

	if next.Status != models.StatusPlaying {
		return
	}
	game.SettleRound(next, game.RuleByName(next.ScoringRule))
	if err := c.st.Set(context.Background(), lobby.GamePath(c.code), next); err != nil {
		c.log.WithError(err).Warn("round settlement write failed")
		c.opts.Notify(Event{Type: EventWriteFailed, Err: err})
	}
}

// deal shuffles and partitions the new round's hands, then opens bidding.
// Dealer only; bids reset here so the bid map is empty exactly when the
// deal lands.
func (c *Client) deal(g *models.GameState) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	rng := c.opts.Rand
	c.mu.Unlock()

	deck := game.NewDeck(rng)
	hands := game.Deal(g.Players, g.DealerID, g.CardsThisRound(), deck)
	fields := map[string]any{
		"hands":         hands,
		"bids":          nil,
		"trick":         nil,
		"leadSuit":      nil,
		"trump":         game.TrumpForRound(g.Round),
		"status":        string(models.StatusBidding),
		"currentBidder": g.NextSeat(g.DealerID),
		"currentPlayer": nil,
	}
	c.writeGame(fields)
}

func (c *Client) writeGame(fields map[string]any) {
	if err := c.st.Update(context.Background(), lobby.GamePath(c.code), fields); err != nil {
		c.log.WithError(err).Warn("game write failed")
		c.opts.Notify(Event{Type: EventWriteFailed, Err: err})
	}
}
