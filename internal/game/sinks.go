package game

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/atifkhan161/contract-crown-sub004/internal/engine"
	"github.com/atifkhan161/contract-crown-sub004/internal/protocol"
)

// SeatProvider supplies identity, seating and teams for a room that is
// about to start.
type SeatProvider interface {
	Seats(ctx context.Context, roomID uuid.UUID) ([]engine.Player, error)
}

// ResultSink persists a finished game.
type ResultSink interface {
	RecordGame(ctx context.Context, rec GameRecord) error
}

// EventSink receives the public log form of every canonical event.
type EventSink interface {
	PublishEvent(ctx context.Context, rec protocol.Record) error
}

type GameRecord struct {
	GameID      uuid.UUID
	RoomID      uuid.UUID
	Players     []engine.Player
	Rounds      []engine.RoundRecord
	FinalScore  engine.TeamScores
	WinningTeam engine.Team
	StartedAt   time.Time
	FinishedAt  time.Time
}

// StaticSeats serves pre-assigned seatings, keyed by room.
type StaticSeats map[uuid.UUID][]engine.Player

func (s StaticSeats) Seats(_ context.Context, roomID uuid.UUID) ([]engine.Player, error) {
	players, ok := s[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return append([]engine.Player(nil), players...), nil
}

// LocalSeats seats one human in seat 0 against three bots. The human's
// partner sits opposite in seat 2. The human counts as connected once they
// join the room.
func LocalSeats(humanID uuid.UUID, displayName string) []engine.Player {
	players := []engine.Player{
		{ID: humanID, DisplayName: displayName, Seat: 0, Team: engine.Team1},
	}
	for seat := 1; seat < engine.Seats; seat++ {
		players = append(players, botSeat(seat))
	}
	return players
}

// BotSeats fills every seat with a bot.
func BotSeats() []engine.Player {
	players := make([]engine.Player, 0, engine.Seats)
	for seat := 0; seat < engine.Seats; seat++ {
		players = append(players, botSeat(seat))
	}
	return players
}

var botNames = [engine.Seats]string{"North Bot", "East Bot", "South Bot", "West Bot"}

func botSeat(seat int) engine.Player {
	team := engine.Team1
	if seat%2 == 1 {
		team = engine.Team2
	}
	return engine.Player{
		ID:          uuid.New(),
		DisplayName: botNames[seat],
		Seat:        seat,
		Team:        team,
		IsBot:       true,
		Connected:   true,
	}
}
