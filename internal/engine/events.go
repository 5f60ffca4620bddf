package engine

import "github.com/google/uuid"

type EventKind string

const (
	EventTrumpDeclared EventKind = "trump_declared"
	EventCardPlayed    EventKind = "card_played"
	EventTrickWon      EventKind = "trick_won"
	EventRoundScores   EventKind = "round_scores"
	EventRoundComplete EventKind = "round_complete"
	EventNewRound      EventKind = "new_round"
	EventGameComplete  EventKind = "game_complete"
	EventPlayerStatus  EventKind = "player_status"
)

// Event is one accepted mutation. Snapshot is a private deep copy of the
// game taken right after the mutation and must be treated as read-only.
type Event struct {
	Kind     EventKind
	Actor    uuid.UUID
	Payload  any
	Snapshot *Game
}

type TrumpDeclared struct {
	TrumpSuit  Suit      `json:"trumpSuit"`
	DeclarerID uuid.UUID `json:"declarerId"`
}

// CardPlayed carries no NextPlayerID when the play completed the trick.
type CardPlayed struct {
	PlayerID     uuid.UUID  `json:"playerId"`
	Card         Card       `json:"card"`
	TrickNumber  int        `json:"trickNumber"`
	NextPlayerID *uuid.UUID `json:"nextPlayerId,omitempty"`
}

// TrickWon.ScoresByTeam is the running point total of the current round.
type TrickWon struct {
	TrickNumber  int        `json:"trickNumber"`
	WinnerID     uuid.UUID  `json:"winnerId"`
	WinningCard  Card       `json:"winningCard"`
	CardsWon     []Card     `json:"cardsWon"`
	Points       int        `json:"points"`
	ScoresByTeam TeamScores `json:"scoresByTeam"`
}

// RoundScores.ScoresByTeam is the game total after the round was folded in.
type RoundScores struct {
	Round        int        `json:"round"`
	ScoresByTeam TeamScores `json:"scoresByTeam"`
}

type RoundComplete struct {
	Round             int        `json:"round"`
	TrickScoresByTeam TeamScores `json:"trickScoresByTeam"`
	RoundWinner       Team       `json:"roundWinner"`
	NextDeclarerID    uuid.UUID  `json:"nextDeclarerId"`
}

type NewRound struct {
	RoundNumber     int       `json:"roundNumber"`
	TrumpDeclarerID uuid.UUID `json:"trumpDeclarerId"`
}

type GameComplete struct {
	WinningTeam Team       `json:"winningTeam"`
	FinalScore  TeamScores `json:"finalScore"`
}

type PlayerStatus struct {
	PlayerID  uuid.UUID `json:"playerId"`
	Connected bool      `json:"connected"`
}
