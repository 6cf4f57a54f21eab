package store

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"github.com/wricardo/tictactoe-live/game/board"
)

var (
	ErrNotFound        = errors.New("game not found")
	ErrCodeTaken       = errors.New("game code already taken")
	ErrVersionConflict = errors.New("game version conflict")
)

// Status is the lifecycle state of a game. Transitions are monotone:
// waiting -> active -> finished, never reversed.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// Winner values stored on a finished game. An unfinished game carries
// WinnerNone.
const (
	WinnerNone = ""
	WinnerX    = "X"
	WinnerO    = "O"
	WinnerDraw = "draw"
)

// Move is one entry of the append-only move log.
type Move struct {
	Player    string    `json:"player"`
	Position  int       `json:"position"`
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
}

// Game is the durable record of one session from creation to finish.
type Game struct {
	ID          string
	Code        string
	PlayerX     string
	PlayerO     string
	Board       [3]byte
	CurrentTurn board.Cell
	Winner      string
	Status      Status
	IsPublic    bool
	Moves       []Move

	// Version counts accepted writes and backs the compare-and-swap in
	// UpdateGame. Two racing writers on the same game cannot both win.
	Version int64

	CreatedAt      time.Time
	StartedAt      *time.Time
	FinishedAt     *time.Time
	LastActivityAt time.Time
}

// Clone returns a deep copy so callers can mutate freely without
// aliasing stored state.
func (g *Game) Clone() *Game {
	cp := *g
	cp.Moves = make([]Move, len(g.Moves))
	copy(cp.Moves, g.Moves)
	if g.StartedAt != nil {
		t := *g.StartedAt
		cp.StartedAt = &t
	}
	if g.FinishedAt != nil {
		t := *g.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}

// Store is the persistence boundary for game records. Implementations
// must make UpdateGame atomic with respect to the Version field.
type Store interface {
	// CreateGame persists a new game. Returns ErrCodeTaken when the
	// 6-character code is already in use.
	CreateGame(ctx context.Context, g *Game) error

	// GetGame retrieves a game by id. Returns ErrNotFound when absent.
	GetGame(ctx context.Context, id string) (*Game, error)

	// GetWaitingGameByCode retrieves the waiting game with the given
	// code. Returns ErrNotFound when no waiting game matches.
	GetWaitingGameByCode(ctx context.Context, code string) (*Game, error)

	// FindOldestWaitingPublicGame returns the public waiting game with
	// the earliest creation time whose creator is not excludePlayer.
	// Returns ErrNotFound when none is eligible.
	FindOldestWaitingPublicGame(ctx context.Context, excludePlayer string) (*Game, error)

	// UpdateGame persists g if and only if the stored version still
	// equals g.Version; on success the version is incremented (both in
	// storage and on g). A stale version returns ErrVersionConflict.
	UpdateGame(ctx context.Context, g *Game) error

	// CountPublicGames counts public games in the given status.
	CountPublicGames(ctx context.Context, status Status) (int, error)
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CodeLength is the length of the human-shareable game code.
const CodeLength = 6

// NewGameCode generates a 6-character code from the 36-symbol
// uppercase alphanumeric alphabet using cryptographic randomness.
// Uniqueness is enforced by the store, not here; callers retry on
// ErrCodeTaken.
func NewGameCode() string {
	// Bytes at or above the largest multiple of the alphabet size are
	// redrawn so every symbol is equally likely.
	const limit = len(codeAlphabet) * (256 / len(codeAlphabet))

	code := make([]byte, 0, CodeLength)
	buf := make([]byte, CodeLength)
	for len(code) < CodeLength {
		rand.Read(buf) // never returns an error as of go 1.24
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			code = append(code, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(code) == CodeLength {
				break
			}
		}
	}
	return string(code)
}
