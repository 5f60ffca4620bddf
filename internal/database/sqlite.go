package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/atifkhan161/contract-crown-sub004/internal/engine"
	"github.com/atifkhan161/contract-crown-sub004/internal/game"
)

// LocalResults stores finished local games in a SQLite file, so bot games
// keep a history without a Postgres server.
type LocalResults struct {
	db *sql.DB
}

func OpenLocal(path string) (*LocalResults, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// one writer; sqlite serializes anyway
	db.SetMaxOpenConns(1)
	if err := createLocalTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite tables: %w", err)
	}
	return &LocalResults{db: db}, nil
}

func createLocalTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS games (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			winning_team INTEGER NOT NULL,
			team1_score INTEGER NOT NULL,
			team2_score INTEGER NOT NULL,
			rounds INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS players (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			games_played INTEGER NOT NULL DEFAULT 0,
			games_won INTEGER NOT NULL DEFAULT 0
		);
	`)
	return err
}

func (s *LocalResults) RecordGame(ctx context.Context, rec game.GameRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO games (id, room_id, started_at, finished_at, winning_team, team1_score, team2_score, rounds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.GameID.String(), rec.RoomID.String(), rec.StartedAt.UnixMilli(), rec.FinishedAt.UnixMilli(),
		int(rec.WinningTeam), rec.FinalScore.Team1, rec.FinalScore.Team2, len(rec.Rounds),
	)
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}

	for _, p := range rec.Players {
		won := 0
		if p.Team == rec.WinningTeam {
			won = 1
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO players (id, display_name, games_played, games_won) VALUES (?, ?, 1, ?)
			ON CONFLICT(id) DO UPDATE SET
				display_name = excluded.display_name,
				games_played = games_played + 1,
				games_won = games_won + excluded.games_won`,
			p.ID.String(), p.DisplayName, won,
		)
		if err != nil {
			return fmt.Errorf("update player %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

// PlayerStats returns how many local games the player finished and won.
func (s *LocalResults) PlayerStats(ctx context.Context, id string) (played, won int, err error) {
	err = s.db.QueryRowContext(ctx, "SELECT games_played, games_won FROM players WHERE id = ?", id).Scan(&played, &won)
	if err == sql.ErrNoRows {
		return 0, 0, nil
	}
	return
}

// TeamWins counts finished games per winning team.
func (s *LocalResults) TeamWins(ctx context.Context) (engine.TeamScores, error) {
	var wins engine.TeamScores
	rows, err := s.db.QueryContext(ctx, "SELECT winning_team, COUNT(*) FROM games GROUP BY winning_team")
	if err != nil {
		return wins, err
	}
	defer rows.Close()
	for rows.Next() {
		var team, n int
		if err := rows.Scan(&team, &n); err != nil {
			return wins, err
		}
		wins.Add(engine.Team(team), n)
	}
	return wins, rows.Err()
}

func (s *LocalResults) Close() error {
	return s.db.Close()
}
