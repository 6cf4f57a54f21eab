package players

import (
	"context"
	"database/sql"
	"fmt"
)

const playersSchema = `
CREATE TABLE IF NOT EXISTS players (
	id           TEXT PRIMARY KEY,
	username     TEXT NOT NULL,
	avatar_url   TEXT NOT NULL DEFAULT '',
	is_anonymous INTEGER NOT NULL DEFAULT 0,
	wins         INTEGER NOT NULL DEFAULT 0,
	losses       INTEGER NOT NULL DEFAULT 0,
	draws        INTEGER NOT NULL DEFAULT 0,
	total_games  INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteDirectory implements Directory and Recorder over the players
// table, sharing the database handle with the game store. Profile
// writes (registration, avatar upload) belong to the external account
// service; this side only reads display info and bumps tallies.
type SQLiteDirectory struct {
	db *sql.DB
}

// NewSQLiteDirectory bootstraps the players schema on the shared
// handle.
func NewSQLiteDirectory(db *sql.DB) (*SQLiteDirectory, error) {
	if _, err := db.Exec(playersSchema); err != nil {
		return nil, fmt.Errorf("bootstrap players schema: %w", err)
	}
	return &SQLiteDirectory{db: db}, nil
}

func (d *SQLiteDirectory) GetPlayerInfo(ctx context.Context, id string) (Info, error) {
	if id == AnonymousID {
		return Info{ID: AnonymousID, Username: "Anonymous", IsAnonymous: true}, nil
	}
	if id == "" {
		return Info{Username: "Waiting..."}, nil
	}

	var info Info
	var isAnonymous int
	err := d.db.QueryRowContext(ctx,
		`SELECT id, username, avatar_url, is_anonymous FROM players WHERE id = ?`, id).
		Scan(&info.ID, &info.Username, &info.AvatarURL, &isAnonymous)
	if err == sql.ErrNoRows {
		// Deleted or never-registered account: keep the projection
		// buildable with a placeholder.
		return Info{ID: id, Username: "Unknown", IsAnonymous: true}, nil
	}
	if err != nil {
		return Info{}, fmt.Errorf("query player %s: %w", id, err)
	}
	info.IsAnonymous = isAnonymous != 0
	return info, nil
}

func (d *SQLiteDirectory) RecordResult(ctx context.Context, playerID string, result Result) error {
	if playerID == "" || playerID == AnonymousID {
		return nil
	}

	var column string
	switch result {
	case ResultWin:
		column = "wins"
	case ResultLoss:
		column = "losses"
	case ResultDraw:
		column = "draws"
	default:
		return fmt.Errorf("unknown result %q", result)
	}

	_, err := d.db.ExecContext(ctx,
		`UPDATE players SET `+column+` = `+column+` + 1, total_games = total_games + 1 WHERE id = ?`,
		playerID)
	if err != nil {
		return fmt.Errorf("record %s for player %s: %w", result, playerID, err)
	}
	return nil
}
