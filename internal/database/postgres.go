package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the tables the server and the historian use. Users and
// room membership are owned by the lobby service; they are created here
// only so a fresh database works end to end.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	username TEXT NOT NULL,
	is_ephemeral BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS room_participants (
	room_id UUID NOT NULL,
	user_id UUID NOT NULL REFERENCES users (id),
	seat_position INT NOT NULL CHECK (seat_position BETWEEN 0 AND 3),
	team INT CHECK (team IN (1, 2)),
	is_bot BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (room_id, seat_position),
	UNIQUE (room_id, user_id)
);

CREATE TABLE IF NOT EXISTS games (
	id UUID PRIMARY KEY,
	room_id UUID,
	status TEXT NOT NULL DEFAULT 'in_progress',
	start_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	end_time TIMESTAMPTZ,
	winning_team INT,
	team1_score INT,
	team2_score INT
);

CREATE TABLE IF NOT EXISTS game_rounds (
	game_id UUID NOT NULL REFERENCES games (id),
	round_number INT NOT NULL,
	trump_suit TEXT NOT NULL,
	declarer_id UUID NOT NULL,
	team1_points INT NOT NULL,
	team2_points INT NOT NULL,
	team1_tricks INT NOT NULL,
	team2_tricks INT NOT NULL,
	winning_team INT,
	PRIMARY KEY (game_id, round_number)
);

CREATE TABLE IF NOT EXISTS game_results (
	game_id UUID NOT NULL REFERENCES games (id),
	player_id UUID NOT NULL,
	seat INT NOT NULL,
	team INT NOT NULL,
	is_bot BOOLEAN NOT NULL,
	did_win BOOLEAN NOT NULL,
	PRIMARY KEY (game_id, player_id)
);

CREATE TABLE IF NOT EXISTS game_events (
	game_id UUID NOT NULL REFERENCES games (id),
	seq BIGINT NOT NULL,
	room_id UUID NOT NULL,
	event_type TEXT NOT NULL,
	actor_id UUID,
	payload JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (game_id, seq)
);
`

// Connect creates a pgx pool and checks it with a ping.
func Connect(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return pool, nil
}

// Migrate applies Schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	return pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, Schema)
		return err
	})
}
