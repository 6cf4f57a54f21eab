package service

import (
	"context"

	"github.com/wricardo/tictactoe-live/game/store"
	"github.com/wricardo/tictactoe-live/players"
)

// GameService defines all game-related operations. It is the single
// writer for game records: every mutation of a session flows through
// it, and it alone decides whether a move is legal.
type GameService interface {
	// CreateGame starts a new waiting game owned by creatorID. Private
	// games register a time-boxed invitation token for the code.
	CreateGame(ctx context.Context, creatorID string, isPublic bool) (*CreatedGame, error)

	// JoinGame joins the waiting game with the given code (case-
	// insensitive) as the second participant and activates it.
	JoinGame(ctx context.Context, code, joinerID string) (*GameState, error)

	// FindPublicGame matches seekerID into the oldest waiting public
	// game not created by them and activates it. Returns (nil, nil)
	// when no game is available; the caller decides whether to create
	// a fresh public game instead.
	FindPublicGame(ctx context.Context, seekerID string) (*GameState, error)

	// MakeMove applies one move for actorID and returns the refreshed
	// projection. Validation order: game exists, status active,
	// position in range, actor is a participant, actor holds the turn,
	// cell empty.
	MakeMove(ctx context.Context, gameID, actorID string, position int) (*GameState, error)

	// ForfeitGame finishes an active game in favor of the participant
	// who did not leave. Called by the gateway when a disconnect grace
	// period expires.
	ForfeitGame(ctx context.Context, gameID, leaverID string) (*GameState, error)

	// GetGameState returns the projection for a game, cache-first.
	GetGameState(ctx context.Context, gameID string) (*GameState, error)

	// CountPublicGames counts public games in a status, optionally
	// through the short-TTL counter cache.
	CountPublicGames(ctx context.Context, status store.Status, useCache bool) (int, error)
}

// CreatedGame is the result of CreateGame.
type CreatedGame struct {
	GameID   string `json:"gameId"`
	GameCode string `json:"gameCode"`
}

// GameState is the read-optimized projection of one game, the only
// shape ever sent to clients. The board is the wire form: 9 entries,
// each null or a symbol label.
type GameState struct {
	GameID      string       `json:"gameId"`
	GameCode    string       `json:"gameCode"`
	Board       [9]*string   `json:"board"`
	CurrentTurn string       `json:"currentTurn"`
	Winner      *string      `json:"winner"`
	Players     GamePlayers  `json:"players"`
	Status      store.Status `json:"status"`
	IsPublic    bool         `json:"isPublic"`
}

// GamePlayers holds display info for both symbol slots.
type GamePlayers struct {
	X players.Info `json:"X"`
	O players.Info `json:"O"`
}
