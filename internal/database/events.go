package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atifkhan161/contract-crown-sub004/internal/protocol"
)

// EventStore keeps the public event log of every game.
type EventStore struct {
	Pool *pgxpool.Pool
}

// InsertEvents stores a batch in one transaction. The game row is created
// on first sight and closed when its game_complete record arrives.
// Records already stored are skipped, so a redelivered batch is harmless.
func (s EventStore) InsertEvents(ctx context.Context, recs []protocol.Record) error {
	return pgx.BeginTxFunc(ctx, s.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range recs {
			if err := insertEventTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insert event %s #%d: %w", rec.GameID, rec.Seq, err)
			}
		}
		return nil
	})
}

func insertEventTx(ctx context.Context, tx pgx.Tx, rec protocol.Record) error {
	upsertGameQ := `
		INSERT INTO games (id, room_id, status, start_time)
		VALUES ($1, $2, 'in_progress', $3)
		ON CONFLICT (id) DO NOTHING
	`
	at := time.UnixMilli(rec.Timestamp)
	if _, err := tx.Exec(ctx, upsertGameQ, rec.GameID, rec.RoomID, at); err != nil {
		return err
	}

	var actor *uuid.UUID
	if rec.ActorID != uuid.Nil {
		actor = &rec.ActorID
	}
	eventInsertQ := `
		INSERT INTO game_events (game_id, seq, room_id, event_type, actor_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (game_id, seq) DO NOTHING
	`
	if _, err := tx.Exec(ctx, eventInsertQ,
		rec.GameID, int64(rec.Seq), rec.RoomID, string(rec.Type), actor, []byte(rec.Payload), at,
	); err != nil {
		return err
	}

	if rec.Type == protocol.EventGameComplete {
		finalizeQ := `
			UPDATE games
			SET status = 'completed', end_time = COALESCE(end_time, $2)
			WHERE id = $1 AND status = 'in_progress'
		`
		if _, err := tx.Exec(ctx, finalizeQ, rec.GameID, at); err != nil {
			return err
		}
	}
	return nil
}

// MarkAbandoned closes a game that stopped producing events before it
// completed.
func (s EventStore) MarkAbandoned(ctx context.Context, gameID uuid.UUID) error {
	q := `
		UPDATE games
		SET status = 'abandoned', end_time = NOW()
		WHERE id = $1 AND status = 'in_progress'
	`
	_, err := s.Pool.Exec(ctx, q, gameID)
	return err
}

// EventsSince returns the stored events of a game after seq, in order.
func (s EventStore) EventsSince(ctx context.Context, gameID uuid.UUID, seq uint64) ([]protocol.Record, error) {
	q := `
		SELECT room_id, seq, event_type, actor_id, payload, created_at
		FROM game_events
		WHERE game_id = $1 AND seq > $2
		ORDER BY seq
	`
	rows, err := s.Pool.Query(ctx, q, gameID, int64(seq))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []protocol.Record
	for rows.Next() {
		var (
			rec     protocol.Record
			n       int64
			typ     string
			actor   *uuid.UUID
			payload []byte
			at      time.Time
		)
		if err := rows.Scan(&rec.RoomID, &n, &typ, &actor, &payload, &at); err != nil {
			return nil, err
		}
		rec.GameID = gameID
		rec.Seq = uint64(n)
		rec.Type = protocol.EventType(typ)
		if actor != nil {
			rec.ActorID = *actor
		}
		rec.Payload = payload
		rec.Timestamp = at.UnixMilli()
		out = append(out, rec)
	}
	return out, rows.Err()
}
