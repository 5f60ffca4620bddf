package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atifkhan161/contract-crown-sub004/internal/engine"
	"github.com/atifkhan161/contract-crown-sub004/internal/game"
)

// RoomSeats reads seating from room_participants. Seats without an explicit
// team are partnered across the table: 0 and 2 are team 1, 1 and 3 team 2.
type RoomSeats struct {
	Pool *pgxpool.Pool
}

func (s RoomSeats) Seats(ctx context.Context, roomID uuid.UUID) ([]engine.Player, error) {
	q := `
		SELECT p.user_id, p.seat_position, p.team, p.is_bot, u.username
		FROM room_participants p
		JOIN users u ON p.user_id = u.id
		WHERE p.room_id = $1
		ORDER BY p.seat_position
	`
	rows, err := s.Pool.Query(ctx, q, roomID)
	if err != nil {
		return nil, fmt.Errorf("query room participants: %w", err)
	}
	defer rows.Close()

	var players []engine.Player
	for rows.Next() {
		var (
			p    engine.Player
			team *int
		)
		if err := rows.Scan(&p.ID, &p.Seat, &team, &p.IsBot, &p.DisplayName); err != nil {
			return nil, err
		}
		p.Team = engine.Team(p.Seat%2 + 1)
		if team != nil {
			p.Team = engine.Team(*team)
		}
		// bots are always present; humans connect when they join
		p.Connected = p.IsBot
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(players) == 0 {
		return nil, game.ErrRoomNotFound
	}
	return players, nil
}
