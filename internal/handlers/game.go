// internal/handlers/game.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/atifkhan161/contract-crown-sub004/internal/auth"
	"github.com/atifkhan161/contract-crown-sub004/internal/models"
)

type sessionRequest struct {
	DisplayName string `json:"displayName"`
}

type sessionResponse struct {
	PlayerID uuid.UUID `json:"playerId"`
}

type localRoomResponse struct {
	RoomID   uuid.UUID `json:"roomId"`
	PlayerID uuid.UUID `json:"playerId"`
}

// decodeBody decodes an optional JSON body; an empty body is fine.
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errBadRequest
	}
	return nil
}

// handleSession returns the caller's player id, issuing a guest session
// when there is none.
func (s *GameServer) handleSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id, err := s.ensurePlayer(w, r, req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{PlayerID: id})
}

// handleStartLocal opens a room against three bots for the caller.
func (s *GameServer) handleStartLocal(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	playerID, err := s.ensurePlayer(w, r, req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	room, err := s.StartLocal(r.Context(), playerID, req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, localRoomResponse{RoomID: room.ID, PlayerID: playerID})
}

// handleStartRoom is the room collaborator's "start game" command. The
// response is the caller's view, or the public one if they are not seated.
func (s *GameServer) handleStartRoom(w http.ResponseWriter, r *http.Request) {
	playerID, _, err := s.Sessions.Authenticate(r)
	if err != nil {
		writeError(w, auth.ErrNoToken)
		return
	}
	roomID, err := uuid.Parse(r.PathValue("room_id"))
	if err != nil {
		writeError(w, errBadRoomID)
		return
	}
	room, err := s.StartRoom(r.Context(), roomID)
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := room.Snapshot(r.Context(), playerID)
	if err != nil {
		// started, but the caller is not one of the players
		snap, err = room.Snapshot(r.Context(), uuid.Nil)
		if err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (s *GameServer) handleDeclareTrump(w http.ResponseWriter, r *http.Request) {
	s.handleAction(w, r, models.ActionDeclareTrump)
}

func (s *GameServer) handlePlayCard(w http.ResponseWriter, r *http.Request) {
	s.handleAction(w, r, models.ActionPlayCard)
}

// handleAction is the HTTP fallback for a websocket action. It feeds the
// same pipeline, so the events it produces are the same bytes; the response
// is the caller's state right after the action was applied.
func (s *GameServer) handleAction(w http.ResponseWriter, r *http.Request, typ models.ActionType) {
	playerID, _, err := s.Sessions.Authenticate(r)
	if err != nil {
		writeError(w, auth.ErrNoToken)
		return
	}
	room, err := s.room(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var msg ClientMessage
	if err := decodeBody(r, &msg); err != nil {
		writeError(w, err)
		return
	}
	msg.Type = string(typ)
	action, err := msg.action(playerID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := room.Submit(r.Context(), action); err != nil {
		s.Logger.WithError(err).WithFields(logrus.Fields{
			"room_id":   room.ID,
			"player_id": playerID,
			"action":    typ,
		}).Debug("action rejected")
		writeError(w, err)
		return
	}

	snap, err := room.Snapshot(r.Context(), playerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleState returns the caller's full state as a sync_state event.
func (s *GameServer) handleState(w http.ResponseWriter, r *http.Request) {
	playerID, _, err := s.Sessions.Authenticate(r)
	if err != nil {
		writeError(w, auth.ErrNoToken)
		return
	}
	room, err := s.room(r)
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := room.Snapshot(r.Context(), playerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleEvents returns the events after ?since=n, or a single sync_state
// when the log no longer reaches back that far.
func (s *GameServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	playerID, _, err := s.Sessions.Authenticate(r)
	if err != nil {
		writeError(w, auth.ErrNoToken)
		return
	}
	room, err := s.room(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var since uint64
	if v := r.URL.Query().Get("since"); v != "" {
		since, err = strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, errBadRequest)
			return
		}
	}
	events, err := room.EventsSince(r.Context(), playerID, since)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
