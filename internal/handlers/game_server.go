// internal/handlers/game_server.go
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/atifkhan161/contract-crown-sub004/internal/auth"
	"github.com/atifkhan161/contract-crown-sub004/internal/engine"
	"github.com/atifkhan161/contract-crown-sub004/internal/game"
	"github.com/atifkhan161/contract-crown-sub004/internal/middleware"
	"github.com/atifkhan161/contract-crown-sub004/internal/models"
)

// GameServer holds the running rooms and the collaborators a room needs
// when it starts.
type GameServer struct {
	Rooms    *game.RoomStore
	Seats    game.SeatProvider
	Sessions *auth.Sessions
	Rules    models.RoomRules

	Events game.EventSink
	// Results records games started from room seating; LocalResults records
	// games against bots. Either may be nil.
	Results      game.ResultSink
	LocalResults game.ResultSink

	Adjuster engine.RoundAdjuster
	// Seed fixes dealing for every room (0 => random). Used by tests.
	Seed int64

	Logger *logrus.Logger
}

func NewGameServer(sessions *auth.Sessions, seats game.SeatProvider, rules models.RoomRules, logger *logrus.Logger) *GameServer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &GameServer{
		Rooms:    game.NewRoomStore(),
		Seats:    seats,
		Sessions: sessions,
		Rules:    rules,
		Logger:   logger,
	}
}

// Routes registers every endpoint behind the request logger.
func (s *GameServer) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /session", s.handleSession)
	mux.HandleFunc("POST /rooms/local", s.handleStartLocal)
	mux.HandleFunc("POST /rooms/{room_id}/start", s.handleStartRoom)
	mux.HandleFunc("POST /rooms/{room_id}/trump", s.handleDeclareTrump)
	mux.HandleFunc("POST /rooms/{room_id}/play", s.handlePlayCard)
	mux.HandleFunc("GET /rooms/{room_id}/state", s.handleState)
	mux.HandleFunc("GET /rooms/{room_id}/events", s.handleEvents)
	mux.HandleFunc("GET /rooms/{room_id}/ws", s.handleWS)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "rooms": s.Rooms.Len()})
	})
	return middleware.LogMiddleware(s.Logger)(mux)
}

// StartRoom seats the room from the seat provider and deals the first round.
func (s *GameServer) StartRoom(ctx context.Context, roomID uuid.UUID) (*game.Room, error) {
	if _, running := s.Rooms.Get(roomID); running {
		return nil, game.ErrRoomExists
	}
	if s.Seats == nil {
		return nil, game.ErrRoomNotFound
	}
	players, err := s.Seats.Seats(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("seats for room %s: %w", roomID, err)
	}
	return s.startRoom(ctx, roomID, players, s.Results)
}

// StartLocal opens a room where playerID plays with three bots.
func (s *GameServer) StartLocal(ctx context.Context, playerID uuid.UUID, displayName string) (*game.Room, error) {
	if displayName == "" {
		displayName = "Player"
	}
	return s.startRoom(ctx, uuid.New(), game.LocalSeats(playerID, displayName), s.LocalResults)
}

func (s *GameServer) startRoom(ctx context.Context, roomID uuid.UUID, players []engine.Player, results game.ResultSink) (*game.Room, error) {
	room, err := game.NewRoom(roomID, players, game.Config{
		Rules:    s.Rules,
		Adjuster: s.Adjuster,
		Seed:     s.Seed,
		Events:   s.Events,
		Results:  results,
		Logger:   logrus.NewEntry(s.Logger),
	})
	if err != nil {
		return nil, err
	}
	if err := s.Rooms.Add(room); err != nil {
		room.Close()
		return nil, err
	}
	if err := room.Start(ctx); err != nil {
		s.Rooms.Delete(roomID)
		return nil, err
	}
	return room, nil
}

// room resolves the {room_id} path value to a running room.
func (s *GameServer) room(r *http.Request) (*game.Room, error) {
	roomID, err := uuid.Parse(r.PathValue("room_id"))
	if err != nil {
		return nil, errBadRoomID
	}
	room, ok := s.Rooms.Get(roomID)
	if !ok {
		return nil, game.ErrRoomNotFound
	}
	return room, nil
}

// ensurePlayer authenticates the request, issuing a guest session when the
// caller has no valid token.
func (s *GameServer) ensurePlayer(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, error) {
	if id, _, err := s.Sessions.Authenticate(r); err == nil {
		return id, nil
	} else if !errors.Is(err, auth.ErrNoToken) {
		s.Logger.WithError(err).Debug("replacing invalid session with a guest")
	}
	id := uuid.New()
	token, err := s.Sessions.Issue(id, name)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create guest session: %w", err)
	}
	http.SetCookie(w, s.Sessions.Cookie(token))
	w.Header().Set("X-Session-Token", token)
	return id, nil
}

// Shutdown closes every running room.
func (s *GameServer) Shutdown() {
	s.Rooms.CloseAll()
}
