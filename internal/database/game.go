// internal/database/game.go
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atifkhan161/contract-crown-sub004/internal/game"
)

// GameResults persists finished games to Postgres.
type GameResults struct {
	Pool *pgxpool.Pool
}

// RecordGame writes the game row, one row per round and one per player in a
// single transaction. Re-recording the same game overwrites it.
func (s GameResults) RecordGame(ctx context.Context, rec game.GameRecord) error {
	err := pgx.BeginTxFunc(ctx, s.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		upsertGame := `
			INSERT INTO games (id, room_id, status, start_time, end_time, winning_team, team1_score, team2_score)
			VALUES ($1, $2, 'completed', $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				status = 'completed',
				end_time = EXCLUDED.end_time,
				winning_team = EXCLUDED.winning_team,
				team1_score = EXCLUDED.team1_score,
				team2_score = EXCLUDED.team2_score
		`
		if _, e := tx.Exec(ctx, upsertGame,
			rec.GameID, rec.RoomID, rec.StartedAt, rec.FinishedAt,
			int(rec.WinningTeam), rec.FinalScore.Team1, rec.FinalScore.Team2,
		); e != nil {
			return fmt.Errorf("upsert game: %w", e)
		}

		insertRound := `
			INSERT INTO game_rounds (
				game_id, round_number, trump_suit, declarer_id,
				team1_points, team2_points, team1_tricks, team2_tricks, winning_team
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (game_id, round_number) DO NOTHING
		`
		for _, r := range rec.Rounds {
			points := r.Points.Plus(r.Adjustment)
			if _, e := tx.Exec(ctx, insertRound,
				rec.GameID, r.Number, r.TrumpSuit.String(), r.DeclarerID,
				points.Team1, points.Team2, r.TrickCounts.Team1, r.TrickCounts.Team2, int(r.Winner),
			); e != nil {
				return fmt.Errorf("insert round %d: %w", r.Number, e)
			}
		}

		upsertResult := `
			INSERT INTO game_results (game_id, player_id, seat, team, is_bot, did_win)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (game_id, player_id)
			DO UPDATE SET did_win = EXCLUDED.did_win
		`
		for _, p := range rec.Players {
			if _, e := tx.Exec(ctx, upsertResult,
				rec.GameID, p.ID, p.Seat, int(p.Team), p.IsBot, p.Team == rec.WinningTeam,
			); e != nil {
				return fmt.Errorf("upsert result for %s: %w", p.ID, e)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx record game %s: %w", rec.GameID, err)
	}
	return nil
}
