package models

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/atifkhan161/contract-crown-sub004/internal/engine"
)

type ActionType string

const (
	ActionDeclareTrump ActionType = "declare_trump"
	ActionPlayCard     ActionType = "play_card"
)

// PlayerAction is a move submitted for a seat, by a client or on its behalf
// by a bot or timeout. The same value is produced by the websocket and the
// HTTP paths.
type PlayerAction struct {
	Type     ActionType   `json:"type"`
	PlayerID uuid.UUID    `json:"-"`
	Suit     engine.Suit  `json:"suit,omitempty"`
	Card     *engine.Card `json:"card,omitempty"`
}

func DeclareTrump(playerID uuid.UUID, suit engine.Suit) PlayerAction {
	return PlayerAction{Type: ActionDeclareTrump, PlayerID: playerID, Suit: suit}
}

func PlayCard(playerID uuid.UUID, card engine.Card) PlayerAction {
	return PlayerAction{Type: ActionPlayCard, PlayerID: playerID, Card: &card}
}

// Validate checks that the action is structurally complete. Game legality
// is decided by the engine.
func (a PlayerAction) Validate() error {
	switch a.Type {
	case ActionDeclareTrump:
		if !a.Suit.Valid() {
			return fmt.Errorf("%w: declare_trump needs a suit", engine.ErrIllegalPlay)
		}
	case ActionPlayCard:
		if a.Card == nil || !a.Card.Valid() {
			return fmt.Errorf("%w: play_card needs a card", engine.ErrIllegalPlay)
		}
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	return nil
}
