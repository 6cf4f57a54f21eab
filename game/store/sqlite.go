package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/wricardo/tictactoe-live/game/board"
	_ "modernc.org/sqlite"
)

const gamesSchema = `
CREATE TABLE IF NOT EXISTS games (
	id               TEXT PRIMARY KEY,
	code             TEXT NOT NULL UNIQUE,
	player_x         TEXT NOT NULL,
	player_o         TEXT NOT NULL DEFAULT '',
	board            BLOB NOT NULL,
	current_turn     TEXT NOT NULL,
	winner           TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	is_public        INTEGER NOT NULL DEFAULT 0,
	moves            TEXT NOT NULL DEFAULT '[]',
	version          INTEGER NOT NULL DEFAULT 0,
	created_at       INTEGER NOT NULL,
	started_at       INTEGER,
	finished_at      INTEGER,
	last_activity_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_games_matchmaking ON games(status, is_public, created_at);
CREATE INDEX IF NOT EXISTS idx_games_last_activity ON games(last_activity_at);
`

// SQLiteStore implements Store over a single SQLite file. One file
// backs both game records and player rows so the whole server state
// survives restarts without external database infrastructure.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the SQLite database at path and
// bootstraps the games schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := db.Exec(gamesSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap games schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// DB exposes the underlying handle so collaborator packages (player
// directory and statistics) can share the same database file.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// toMillis normalizes timestamps to millisecond precision for storage.
func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func optMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toMillis(*t)
}

func (s *SQLiteStore) CreateGame(ctx context.Context, g *Game) error {
	moves, err := json.Marshal(g.Moves)
	if err != nil {
		return fmt.Errorf("marshal moves: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO games (id, code, player_x, player_o, board, current_turn, winner,
			status, is_public, moves, version, created_at, started_at, finished_at, last_activity_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Code, g.PlayerX, g.PlayerO, g.Board[:], g.CurrentTurn.Label(), g.Winner,
		string(g.Status), boolToInt(g.IsPublic), string(moves), g.Version,
		toMillis(g.CreatedAt), optMillis(g.StartedAt), optMillis(g.FinishedAt), toMillis(g.LastActivityAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: games.code") {
			return ErrCodeTaken
		}
		return fmt.Errorf("insert game: %w", err)
	}
	return nil
}

const gameColumns = `id, code, player_x, player_o, board, current_turn, winner,
	status, is_public, moves, version, created_at, started_at, finished_at, last_activity_at`

func (s *SQLiteStore) GetGame(ctx context.Context, id string) (*Game, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE id = ?`, id)
	return scanGame(row)
}

func (s *SQLiteStore) GetWaitingGameByCode(ctx context.Context, code string) (*Game, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE code = ? AND status = ?`, code, string(StatusWaiting))
	return scanGame(row)
}

func (s *SQLiteStore) FindOldestWaitingPublicGame(ctx context.Context, excludePlayer string) (*Game, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games
		 WHERE is_public = 1 AND status = ? AND player_x != ?
		 ORDER BY created_at ASC LIMIT 1`, string(StatusWaiting), excludePlayer)
	return scanGame(row)
}

func (s *SQLiteStore) UpdateGame(ctx context.Context, g *Game) error {
	moves, err := json.Marshal(g.Moves)
	if err != nil {
		return fmt.Errorf("marshal moves: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE games SET player_o = ?, board = ?, current_turn = ?, winner = ?, status = ?,
			moves = ?, version = version + 1, started_at = ?, finished_at = ?, last_activity_at = ?
		WHERE id = ? AND version = ?`,
		g.PlayerO, g.Board[:], g.CurrentTurn.Label(), g.Winner, string(g.Status),
		string(moves), optMillis(g.StartedAt), optMillis(g.FinishedAt), toMillis(g.LastActivityAt),
		g.ID, g.Version)
	if err != nil {
		return fmt.Errorf("update game: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update game rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a stale version from a missing row.
		var exists int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM games WHERE id = ?`, g.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check game existence: %w", err)
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	g.Version++
	return nil
}

func (s *SQLiteStore) CountPublicGames(ctx context.Context, status Status) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM games WHERE is_public = 1 AND status = ?`, string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count public games: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*Game, error) {
	var (
		g            Game
		boardBytes   []byte
		turn         string
		status       string
		isPublic     int
		moves        string
		createdAt    int64
		startedAt    sql.NullInt64
		finishedAt   sql.NullInt64
		lastActivity int64
	)

	err := row.Scan(&g.ID, &g.Code, &g.PlayerX, &g.PlayerO, &boardBytes, &turn, &g.Winner,
		&status, &isPublic, &moves, &g.Version, &createdAt, &startedAt, &finishedAt, &lastActivity)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan game: %w", err)
	}

	copy(g.Board[:], boardBytes)
	g.CurrentTurn = board.ParseCell(turn)
	g.Status = Status(status)
	g.IsPublic = isPublic != 0
	if err := json.Unmarshal([]byte(moves), &g.Moves); err != nil {
		return nil, fmt.Errorf("unmarshal moves: %w", err)
	}
	g.CreatedAt = fromMillis(createdAt)
	if startedAt.Valid {
		t := fromMillis(startedAt.Int64)
		g.StartedAt = &t
	}
	if finishedAt.Valid {
		t := fromMillis(finishedAt.Int64)
		g.FinishedAt = &t
	}
	g.LastActivityAt = fromMillis(lastActivity)

	return &g, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
