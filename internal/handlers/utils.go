package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/atifkhan161/contract-crown-sub004/internal/auth"
	"github.com/atifkhan161/contract-crown-sub004/internal/engine"
	"github.com/atifkhan161/contract-crown-sub004/internal/game"
	"github.com/atifkhan161/contract-crown-sub004/internal/models"
)

var (
	errBadRoomID  = errors.New("invalid room id")
	errBadRequest = errors.New("bad request")
)

// ClientMessage is what a client sends, over the websocket or as the body
// of an HTTP fallback call.
type ClientMessage struct {
	Type string       `json:"type"`
	Suit engine.Suit  `json:"suit,omitempty"`
	Card *engine.Card `json:"card,omitempty"`
	// Seq is the last event seq the client applied (heartbeat).
	Seq uint64 `json:"seq,omitempty"`
}

// ErrorMessage goes to the submitter only.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
}

// action turns a declare_trump or play_card message into a pipeline action.
// Both transports go through here so they submit identical actions.
func (m ClientMessage) action(playerID uuid.UUID) (models.PlayerAction, error) {
	switch models.ActionType(m.Type) {
	case models.ActionDeclareTrump:
		return models.DeclareTrump(playerID, m.Suit), nil
	case models.ActionPlayCard:
		if m.Card == nil {
			return models.PlayerAction{}, fmt.Errorf("%w: play_card needs a card", engine.ErrIllegalPlay)
		}
		return models.PlayCard(playerID, *m.Card), nil
	}
	return models.PlayerAction{}, fmt.Errorf("%w: unknown action type %q", errBadRequest, m.Type)
}

// errorCode maps an error to the client code and HTTP status.
func errorCode(err error) (string, int) {
	switch {
	case errors.Is(err, engine.ErrIllegalPlay):
		return "illegal_play", http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrNotYourTurn):
		return "not_your_turn", http.StatusConflict
	case errors.Is(err, engine.ErrWrongPhase):
		return "wrong_phase", http.StatusConflict
	case errors.Is(err, engine.ErrGameComplete):
		return "game_complete", http.StatusGone
	case errors.Is(err, engine.ErrUnknownPlayer):
		return "unknown_player", http.StatusForbidden
	case errors.Is(err, engine.ErrInvalidSetup):
		return "invalid_setup", http.StatusUnprocessableEntity
	case errors.Is(err, game.ErrRoomNotFound):
		return "room_not_found", http.StatusNotFound
	case errors.Is(err, game.ErrRoomExists):
		return "room_exists", http.StatusConflict
	case errors.Is(err, game.ErrRoomClosed):
		return "room_closed", http.StatusGone
	case errors.Is(err, errBadRoomID), errors.Is(err, errBadRequest):
		return "bad_request", http.StatusBadRequest
	case errors.Is(err, auth.ErrNoToken):
		return "unauthenticated", http.StatusUnauthorized
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout", http.StatusServiceUnavailable
	}
	return "internal", http.StatusInternalServerError
}

func newErrorMessage(err error, action string) ErrorMessage {
	code, _ := errorCode(err)
	msg := err.Error()
	if code == "internal" {
		msg = "internal error"
	}
	return ErrorMessage{Type: "error", Code: code, Message: msg, Action: action}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	_, status := errorCode(err)
	writeJSON(w, status, newErrorMessage(err, ""))
}
