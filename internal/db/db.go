// internal/db/db.go
//
// Database helpers for the Lights Out server.
// Responsibilities:
//   - Opening SQLite database with safe defaults (WAL, busy timeout, foreign keys).
//   - Applying embedded migrations from assets/sql (idempotent, recorded in _migrations).
//   - Completed-game log: one row per finished game, plus per-player stats.
//
// Boards are never written here; a game only reaches the DB once it is won.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/lightsout/apps/go-server/assets"
)

/**
 * Open opens (and creates if missing) a SQLite database file.
 *
 * - Ensures parent directory exists for relative paths (e.g. ./data/lightsout.db).
 * - Configures busy timeout and WAL journaling mode.
 * - Enforces foreign keys.
 */
func Open(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	return db, nil
}

/**
 * Migrate applies the embedded migrations in lexical order.
 *
 * - Uses a _migrations table to track applied files.
 * - Each script runs in its own transaction unless it manages one itself
 *   (BEGIN TRANSACTION / PRAGMA FOREIGN_KEYS=OFF).
 */
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	migrations, err := assets.Migrations()
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	for _, m := range migrations {
		var done int
		err := db.QueryRow(`SELECT 1 FROM _migrations WHERE name=?`, m.Name).Scan(&done)
		if err == nil {
			log.Debug().Str("migration", m.Name).Msg("already applied")
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query _migrations: %w", err)
		}

		upper := strings.ToUpper(m.SQL)
		selfManaged := strings.Contains(upper, "BEGIN TRANSACTION") ||
			strings.Contains(upper, "PRAGMA FOREIGN_KEYS=OFF") ||
			strings.Contains(upper, "PRAGMA FOREIGN_KEYS = OFF")

		if selfManaged {
			if _, err := db.Exec(m.SQL); err != nil {
				return fmt.Errorf("apply %s: %w", m.Name, err)
			}
			if _, err := db.Exec(`INSERT INTO _migrations(name) VALUES (?)`, m.Name); err != nil {
				return fmt.Errorf("record %s: %w", m.Name, err)
			}
			log.Info().Str("migration", m.Name).Msg("applied (self-managed)")
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", m.Name, err)
		}
		if _, err := tx.Exec(`INSERT INTO _migrations(name) VALUES (?)`, m.Name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", m.Name, err)
		}
		log.Info().Str("migration", m.Name).Msg("applied")
	}
	return nil
}

/* ------------------------- Completed-game log -------------------------- */

// GameRecord is one finished game.
type GameRecord struct {
	ID         string
	PlayerID   string
	Rows       int
	Cols       int
	Moves      int
	Status     string
	Daily      bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// PlayerStats summarises a player's completed games.
type PlayerStats struct {
	GamesWon  int `json:"gamesWon"`
	BestMoves int `json:"bestMoves"` // 0 when no game was won
}

/**
 * RecordGame inserts a finished game. Re-recording the same ID is ignored.
 */
func RecordGame(ctx context.Context, db *sql.DB, r GameRecord) error {
	daily := 0
	if r.Daily {
		daily = 1
	}
	_, err := db.ExecContext(ctx, `
        INSERT OR IGNORE INTO games
            (id, player_id, board_rows, board_cols, moves, status, daily, started_at, finished_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.PlayerID, r.Rows, r.Cols, r.Moves, r.Status, daily,
		r.StartedAt.UTC().Format(time.RFC3339), r.FinishedAt.UTC().Format(time.RFC3339),
	)
	return err
}

/**
 * Stats returns the number of won games and the fewest moves in any of them.
 */
func Stats(ctx context.Context, db *sql.DB, playerID string) (PlayerStats, error) {
	var s PlayerStats
	var best sql.NullInt64
	err := db.QueryRowContext(ctx, `
        SELECT COUNT(1), MIN(moves)
        FROM games
        WHERE player_id=? AND status='won'`, playerID,
	).Scan(&s.GamesWon, &best)
	if err != nil {
		return PlayerStats{}, err
	}
	if best.Valid {
		s.BestMoves = int(best.Int64)
	}
	return s, nil
}
