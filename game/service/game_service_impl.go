package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wricardo/tictactoe-live/cache"
	"github.com/wricardo/tictactoe-live/game/board"
	"github.com/wricardo/tictactoe-live/game/store"
	"github.com/wricardo/tictactoe-live/players"
)

const (
	// maxCodeAttempts bounds regeneration when a generated game code
	// collides with one already in the store.
	maxCodeAttempts = 5

	// maxWriteAttempts bounds re-read/re-validate cycles when the
	// version CAS loses against a writer in another process.
	maxWriteAttempts = 3
)

// gameServiceImpl implements the GameService interface.
type gameServiceImpl struct {
	store store.Store
	cache *cache.Service
	dir   players.Directory
	stats players.Recorder
	locks keyedLocks
}

// NewGameService creates a new game service instance.
func NewGameService(st store.Store, c *cache.Service, dir players.Directory, stats players.Recorder) GameService {
	return &gameServiceImpl{
		store: st,
		cache: c,
		dir:   dir,
		stats: stats,
	}
}

// CreateGame starts a new waiting game and caches its projection.
func (s *gameServiceImpl) CreateGame(ctx context.Context, creatorID string, isPublic bool) (*CreatedGame, error) {
	now := time.Now().UTC()

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		g := &store.Game{
			ID:             uuid.NewString(),
			Code:           store.NewGameCode(),
			PlayerX:        creatorID,
			CurrentTurn:    board.X,
			Status:         store.StatusWaiting,
			IsPublic:       isPublic,
			CreatedAt:      now,
			LastActivityAt: now,
		}

		err := s.store.CreateGame(ctx, g)
		if errors.Is(err, store.ErrCodeTaken) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create game: %w", err)
		}

		if !isPublic {
			s.cache.CreateInvitation(ctx, g.Code, creatorID)
		}
		s.refreshProjection(ctx, g)

		return &CreatedGame{GameID: g.ID, GameCode: g.Code}, nil
	}

	return nil, fmt.Errorf("create game: exhausted %d code attempts", maxCodeAttempts)
}

// JoinGame fills the second slot of a waiting game and activates it.
func (s *gameServiceImpl) JoinGame(ctx context.Context, code, joinerID string) (*GameState, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	g, err := s.waitingGameByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if g.PlayerX == joinerID {
		return nil, ErrSelfJoin
	}

	// Private games are gated by the invitation token. A cache
	// *failure* fails open: the advisory cache must never block
	// gameplay.
	if !g.IsPublic {
		_, found, cerr := s.cache.Invitation(ctx, code)
		if cerr == nil && !found {
			return nil, ErrGameNotFound
		}
	}

	state, err := s.activate(ctx, g, joinerID)
	if err != nil {
		return nil, err
	}
	s.cache.DeleteInvitation(ctx, code)
	return state, nil
}

// FindPublicGame matches the seeker into the oldest eligible waiting
// public game. (nil, nil) means nothing was available.
func (s *gameServiceImpl) FindPublicGame(ctx context.Context, seekerID string) (*GameState, error) {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		g, err := s.store.FindOldestWaitingPublicGame(ctx, seekerID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("find public game: %w", err)
		}

		state, err := s.activate(ctx, g, seekerID)
		if errors.Is(err, ErrGameNotFound) {
			// Another seeker claimed it first; pick the next one.
			continue
		}
		if err != nil {
			return nil, err
		}
		return state, nil
	}

	return nil, nil
}

// activate assigns joinerID to slot O and transitions waiting->active.
func (s *gameServiceImpl) activate(ctx context.Context, g *store.Game, joinerID string) (*GameState, error) {
	unlock := s.locks.lock(g.ID)
	defer unlock()

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		if g.Status != store.StatusWaiting {
			return nil, ErrGameNotFound
		}

		now := time.Now().UTC()
		next := g.Clone()
		next.PlayerO = joinerID
		next.Status = store.StatusActive
		next.StartedAt = &now
		next.LastActivityAt = now

		err := s.store.UpdateGame(ctx, next)
		if errors.Is(err, store.ErrVersionConflict) {
			g, err = s.store.GetGame(ctx, g.ID)
			if err != nil {
				return nil, s.mapStoreErr(err)
			}
			continue
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrGameNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("activate game %s: %w", g.ID, err)
		}

		return s.refreshProjection(ctx, next)
	}

	return nil, ErrGameNotFound
}

// MakeMove validates and applies one move, then persists it with a
// single compare-and-swap write. On a lost race the game is re-read
// and re-validated, so the losing mover observes ErrNotYourTurn or
// ErrCellOccupied, never a silent overwrite.
func (s *gameServiceImpl) MakeMove(ctx context.Context, gameID, actorID string, position int) (*GameState, error) {
	unlock := s.locks.lock(gameID)
	defer unlock()

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		g, err := s.store.GetGame(ctx, gameID)
		if err != nil {
			return nil, s.mapStoreErr(err)
		}

		next := g.Clone()
		if err := applyMove(next, actorID, position, time.Now().UTC()); err != nil {
			return nil, err
		}

		err = s.store.UpdateGame(ctx, next)
		if errors.Is(err, store.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, s.mapStoreErr(err)
		}

		if next.Status == store.StatusFinished {
			s.recordResults(ctx, next)
		}
		return s.refreshProjection(ctx, next)
	}

	return nil, fmt.Errorf("make move: game %s kept changing underneath us", gameID)
}

// ForfeitGame finishes an active game in favor of the remaining
// participant. Invoked when a disconnect grace period expires.
func (s *gameServiceImpl) ForfeitGame(ctx context.Context, gameID, leaverID string) (*GameState, error) {
	unlock := s.locks.lock(gameID)
	defer unlock()

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		g, err := s.store.GetGame(ctx, gameID)
		if err != nil {
			return nil, s.mapStoreErr(err)
		}

		if g.Status != store.StatusActive {
			return nil, ErrNotActive
		}
		leaverSymbol, err := participantSymbol(g, leaverID)
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		next := g.Clone()
		next.Winner = leaverSymbol.Other().Label()
		next.Status = store.StatusFinished
		next.FinishedAt = &now
		next.LastActivityAt = now

		err = s.store.UpdateGame(ctx, next)
		if errors.Is(err, store.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, s.mapStoreErr(err)
		}

		s.recordResults(ctx, next)
		return s.refreshProjection(ctx, next)
	}

	return nil, fmt.Errorf("forfeit: game %s kept changing underneath us", gameID)
}

// GetGameState returns the projection, cache-first. A cache miss is
// always resolvable from the durable record.
func (s *gameServiceImpl) GetGameState(ctx context.Context, gameID string) (*GameState, error) {
	var cached GameState
	if s.cache.GetGameState(ctx, gameID, &cached) {
		return &cached, nil
	}

	g, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	return s.refreshProjection(ctx, g)
}

// CountPublicGames counts public games, optionally through the
// short-TTL counter cache to keep store load bounded.
func (s *gameServiceImpl) CountPublicGames(ctx context.Context, status store.Status, useCache bool) (int, error) {
	if useCache {
		if count, ok := s.cache.GetPublicCount(ctx, string(status)); ok {
			return count, nil
		}
	}

	count, err := s.store.CountPublicGames(ctx, status)
	if err != nil {
		return 0, fmt.Errorf("count public games: %w", err)
	}

	if useCache {
		s.cache.PutPublicCount(ctx, string(status), count)
	}
	return count, nil
}

// applyMove is the pure rules transformation: it validates the move
// against g and mutates g (a clone owned by the caller) into the next
// state. No I/O; fully unit-testable.
//
// Validation order is fixed and each step fails with its own kind:
// active status, position range, participancy, turn ownership, cell
// vacancy.
func applyMove(g *store.Game, actorID string, position int, at time.Time) error {
	if g.Status != store.StatusActive {
		return ErrNotActive
	}
	if position < 0 || position >= board.Size {
		return ErrInvalidPosition
	}
	symbol, err := participantSymbol(g, actorID)
	if err != nil {
		return err
	}
	if g.CurrentTurn != symbol {
		return ErrNotYourTurn
	}

	cells := board.Decode(g.Board)
	if cells[position] != board.Empty {
		return ErrCellOccupied
	}

	cells[position] = symbol
	g.Board = board.Encode(cells)
	g.Moves = append(g.Moves, store.Move{
		Player:    actorID,
		Position:  position,
		Symbol:    symbol.Label(),
		Timestamp: at,
	})

	switch {
	case board.Winner(cells) == symbol:
		g.Winner = symbol.Label()
		g.Status = store.StatusFinished
		g.FinishedAt = &at
	case board.Full(cells):
		g.Winner = store.WinnerDraw
		g.Status = store.StatusFinished
		g.FinishedAt = &at
	default:
		g.CurrentTurn = symbol.Other()
	}

	g.LastActivityAt = at
	return nil
}

// participantSymbol resolves the symbol an actor plays in g.
func participantSymbol(g *store.Game, actorID string) (board.Cell, error) {
	switch actorID {
	case g.PlayerX:
		return board.X, nil
	case g.PlayerO:
		if actorID != "" {
			return board.O, nil
		}
	}
	return board.Empty, ErrNotAParticipant
}

// recordResults updates statistics for both participants of a
// finished game. Draws count as a played game for both sides. A
// statistics failure is logged, never unwound: the game result is
// already durable.
func (s *gameServiceImpl) recordResults(ctx context.Context, g *store.Game) {
	results := map[string]players.Result{}
	switch g.Winner {
	case store.WinnerX:
		results[g.PlayerX] = players.ResultWin
		results[g.PlayerO] = players.ResultLoss
	case store.WinnerO:
		results[g.PlayerX] = players.ResultLoss
		results[g.PlayerO] = players.ResultWin
	case store.WinnerDraw:
		results[g.PlayerX] = players.ResultDraw
		results[g.PlayerO] = players.ResultDraw
	default:
		return
	}

	for playerID, result := range results {
		if playerID == "" || playerID == players.AnonymousID {
			continue
		}
		if err := s.stats.RecordResult(ctx, playerID, result); err != nil {
			log.Printf("record %s for player %s in game %s: %v", result, playerID, g.ID, err)
		}
	}
}

// refreshProjection rebuilds the projection from the durable record
// and writes it through to the cache. The durable write has already
// been acknowledged by the time this runs; a cache failure here is
// advisory only.
func (s *gameServiceImpl) refreshProjection(ctx context.Context, g *store.Game) (*GameState, error) {
	state, err := s.buildProjection(ctx, g)
	if err != nil {
		return nil, err
	}
	s.cache.PutGameState(ctx, g.ID, state)
	return state, nil
}

// buildProjection derives the client-facing view of a game record.
func (s *gameServiceImpl) buildProjection(ctx context.Context, g *store.Game) (*GameState, error) {
	infoX, err := s.dir.GetPlayerInfo(ctx, g.PlayerX)
	if err != nil {
		return nil, fmt.Errorf("resolve player X of game %s: %w", g.ID, err)
	}
	infoO, err := s.dir.GetPlayerInfo(ctx, g.PlayerO)
	if err != nil {
		return nil, fmt.Errorf("resolve player O of game %s: %w", g.ID, err)
	}

	var winner *string
	if g.Winner != store.WinnerNone {
		w := g.Winner
		winner = &w
	}

	return &GameState{
		GameID:      g.ID,
		GameCode:    g.Code,
		Board:       board.Labels(board.Decode(g.Board)),
		CurrentTurn: g.CurrentTurn.Label(),
		Winner:      winner,
		Players:     GamePlayers{X: infoX, O: infoO},
		Status:      g.Status,
		IsPublic:    g.IsPublic,
	}, nil
}

func (s *gameServiceImpl) waitingGameByCode(ctx context.Context, code string) (*store.Game, error) {
	g, err := s.store.GetWaitingGameByCode(ctx, code)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	return g, nil
}

func (s *gameServiceImpl) mapStoreErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrGameNotFound
	}
	return err
}

// keyedLocks serializes mutating operations per game id within this
// process; the store's version CAS covers writers in other processes.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedLocks) lock(id string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*lockEntry)
	}
	entry, ok := k.locks[id]
	if !ok {
		entry = &lockEntry{}
		k.locks[id] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
