// internal/lobby/lobby.go
package lobby

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anvar-m/judgement/internal/game"
	"github.com/anvar-m/judgement/internal/models"
	"github.com/anvar-m/judgement/internal/store"
)

var (
	ErrLobbyNotFound     = errors.New("lobby: no such lobby")
	ErrGameInProgress    = errors.New("lobby: game already started, new players cannot join")
	ErrNotEnoughPlayers  = errors.New("lobby: need at least two players to start")
	ErrAlreadyRegistered = errors.New("lobby: a player with that name is already online here")
)

// Service performs lobby lifecycle operations against the shared store.
// It is client-side logic: every participant runs one, there is no
// privileged lobby server.
type Service struct {
	st  store.Store
	log *logrus.Logger
	rng *rand.Rand
}

func NewService(st store.Store, log *logrus.Logger, rng *rand.Rand) *Service {
	return &Service{st: st, log: log, rng: rng}
}

// Create makes a fresh lobby with the creator as its only player.
func (s *Service) Create(ctx context.Context, name, avatar string) (string, models.Player, error) {
	code := NewLobbyCode(s.rng)
	p := newPlayer(name, avatar)
	if err := s.st.Set(ctx, PlayerPath(code, p.ID), p); err != nil {
		return "", models.Player{}, fmt.Errorf("lobby: create %s: %w", code, err)
	}
	s.log.WithFields(logrus.Fields{"lobby": code, "player": p.ID}).Info("lobby created")
	return code, p, nil
}

// Join registers a player in an existing lobby. A returning player is
// recognized by name: if an offline player with the same name is present,
// their seat and id are reclaimed rather than a new record created, which
// is what lets a refreshed browser resume mid-game. Brand-new joins are
// rejected once the game document exists.
func (s *Service) Join(ctx context.Context, code, name, avatar string) (models.Player, error) {
	players, err := s.Players(ctx, code)
	if err != nil {
		return models.Player{}, err
	}
	if len(players) == 0 {
		return models.Player{}, ErrLobbyNotFound
	}

	for _, existing := range players {
		if existing.Name != name {
			continue
		}
		if existing.Online() {
			return models.Player{}, ErrAlreadyRegistered
		}
		existing.Avatar = avatar
		existing.Status = models.StatusOnline
		existing.LastSeen = time.Now().UnixMilli()
		if err := s.st.Set(ctx, PlayerPath(code, existing.ID), existing); err != nil {
			return models.Player{}, fmt.Errorf("lobby: rejoin %s: %w", code, err)
		}
		s.log.WithFields(logrus.Fields{"lobby": code, "player": existing.ID}).Info("player rejoined")
		return existing, nil
	}

	gameDoc, err := s.st.Get(ctx, GamePath(code))
	if err != nil {
		return models.Player{}, fmt.Errorf("lobby: join %s: %w", code, err)
	}
	if gameDoc != nil {
		return models.Player{}, ErrGameInProgress
	}

	p := newPlayer(name, avatar)
	if err := s.st.Set(ctx, PlayerPath(code, p.ID), p); err != nil {
		return models.Player{}, fmt.Errorf("lobby: join %s: %w", code, err)
	}
	s.log.WithFields(logrus.Fields{"lobby": code, "player": p.ID}).Info("player joined")
	return p, nil
}

// Leave removes the player's record and their per-player keys from the
// game document in one merge-update, so a game in progress keeps going
// without them. Nil field values are deletions.
func (s *Service) Leave(ctx context.Context, code, playerID string) error {
	fields := map[string]any{
		"players/" + playerID:        nil,
		"game/hands/" + playerID:     nil,
		"game/bids/" + playerID:      nil,
		"game/tricksWon/" + playerID: nil,
	}
	if err := s.st.Update(ctx, LobbyPath(code), fields); err != nil {
		return fmt.Errorf("lobby: leave %s: %w", code, err)
	}
	s.log.WithFields(logrus.Fields{"lobby": code, "player": playerID}).Info("player left")
	return nil
}

// StartGame writes the initial GameState. Any lobby member may start; the
// randomly chosen starting dealer doubles as hostId. Seats follow join
// order and cardsPerRound is clamped so the deck covers every hand.
func (s *Service) StartGame(ctx context.Context, code string, cardsPerRound int, scoringRule string) (*models.GameState, error) {
	players, err := s.Players(ctx, code)
	if err != nil {
		return nil, err
	}
	if len(players) < 2 {
		return nil, ErrNotEnoughPlayers
	}

	seated := make([]models.Player, 0, len(players))
	for _, p := range players {
		seated = append(seated, p)
	}
	sort.SliceStable(seated, func(i, j int) bool {
		if seated[i].JoinedAt != seated[j].JoinedAt {
			return seated[i].JoinedAt < seated[j].JoinedAt
		}
		return seated[i].ID < seated[j].ID
	})
	for i := range seated {
		seated[i].Seat = i
	}

	maxCards := 52 / len(seated)
	if cardsPerRound < 1 || cardsPerRound > maxCards {
		cardsPerRound = maxCards
	}
	dealer := seated[s.rng.Intn(len(seated))]

	g := &models.GameState{
		Players:       seated,
		DealerID:      dealer.ID,
		HostID:        dealer.ID,
		Round:         1,
		CardsPerRound: cardsPerRound,
		Trump:         game.TrumpForRound(1),
		Hands:         map[string][]models.Card{},
		Bids:          map[string]int{},
		TricksWon:     map[string]int{},
		Trick:         []models.TrickPlay{},
		Status:        models.StatusWaitingDeal,
		Scores:        map[string]int{},
		RoundHistory:  []models.RoundRecord{},
		ScoringRule:   scoringRule,
	}
	for _, p := range seated {
		g.Scores[p.ID] = 0
	}
	if err := s.st.Set(ctx, GamePath(code), g); err != nil {
		return nil, fmt.Errorf("lobby: start game in %s: %w", code, err)
	}
	s.log.WithFields(logrus.Fields{
		"lobby":   code,
		"players": len(seated),
		"dealer":  dealer.ID,
		"rule":    scoringRule,
	}).Info("game started")
	return g, nil
}

// Rematch creates a fresh lobby carrying the full roster, then signals the
// old lobby so every subscribed client migrates. All migrated players are
// written as online with a fresh lastSeen so no stale grace timer fires in
// the new lobby.
func (s *Service) Rematch(ctx context.Context, oldCode string) (string, error) {
	players, err := s.Players(ctx, oldCode)
	if err != nil {
		return "", err
	}
	if len(players) == 0 {
		return "", ErrLobbyNotFound
	}

	newCode := NewLobbyCode(s.rng)
	now := time.Now().UnixMilli()
	roster := make(map[string]models.Player, len(players))
	for id, p := range players {
		p.Status = models.StatusOnline
		p.LastSeen = now
		roster[id] = p
	}
	if err := s.st.Set(ctx, PlayersPath(newCode), roster); err != nil {
		return "", fmt.Errorf("lobby: rematch roster %s: %w", newCode, err)
	}
	sig := models.RematchSignal{NewLobbyCode: newCode, Timestamp: now}
	if err := s.st.Set(ctx, RematchPath(oldCode), sig); err != nil {
		return "", fmt.Errorf("lobby: rematch signal %s: %w", oldCode, err)
	}
	s.log.WithFields(logrus.Fields{"old": oldCode, "new": newCode}).Info("rematch signalled")
	return newCode, nil
}

// reactionTTL is how long a reaction stays visible before the sender
// prunes it.
const reactionTTL = 4 * time.Second

// SendReaction appends an ephemeral reaction and schedules its removal.
// The returned key lets the caller prune early.
func (s *Service) SendReaction(ctx context.Context, code string, r models.Reaction) (string, error) {
	key := NewReactionKey()
	if err := s.st.Set(ctx, ReactionPath(code, key), r); err != nil {
		return "", fmt.Errorf("lobby: send reaction: %w", err)
	}
	time.AfterFunc(reactionTTL, func() {
		_ = s.st.Delete(context.Background(), ReactionPath(code, key))
	})
	return key, nil
}

// PruneReaction removes a reaction the caller wrote earlier.
func (s *Service) PruneReaction(ctx context.Context, code, key string) error {
	return s.st.Delete(ctx, ReactionPath(code, key))
}

// Players reads the lobby roster. An absent roster decodes to an empty map.
func (s *Service) Players(ctx context.Context, code string) (map[string]models.Player, error) {
	raw, err := s.st.Get(ctx, PlayersPath(code))
	if err != nil {
		return nil, fmt.Errorf("lobby: read players of %s: %w", code, err)
	}
	if raw == nil {
		return map[string]models.Player{}, nil
	}
	var players map[string]models.Player
	if err := store.Decode(raw, &players); err != nil {
		return nil, fmt.Errorf("lobby: players of %s: %w", code, err)
	}
	return players, nil
}

func newPlayer(name, avatar string) models.Player {
	now := time.Now().UnixMilli()
	return models.Player{
		ID:       NewPlayerID(),
		Name:     name,
		Avatar:   avatar,
		JoinedAt: now,
		LastSeen: now,
		Status:   models.StatusOnline,
	}
}
