package protocol

import (
	"bytes"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/atifkhan161/contract-crown-sub004/internal/engine"
)

// PlayerView is the public part of a seat.
type PlayerView struct {
	ID          uuid.UUID   `json:"id"`
	DisplayName string      `json:"displayName"`
	Seat        int         `json:"seat"`
	Team        engine.Team `json:"team"`
	IsBot       bool        `json:"isBot"`
	Connected   bool        `json:"connected"`
	HandSize    int         `json:"handSize"`
}

// State is the full resulting state of a mutation as seen by one viewer:
// the public table plus the viewer's own hand and legal plays.
type State struct {
	GameID       uuid.UUID              `json:"gameId"`
	Phase        engine.Phase           `json:"phase"`
	Version      uint64                 `json:"version"`
	RoundNumber  int                    `json:"roundNumber"`
	TrumpSuit    engine.Suit            `json:"trumpSuit,omitempty"`
	DeclarerID   uuid.UUID              `json:"declarerId"`
	TurnPlayerID *uuid.UUID             `json:"turnPlayerId,omitempty"`
	LeadSuit     engine.Suit            `json:"leadSuit,omitempty"`
	Trick        *engine.Trick          `json:"trick,omitempty"`
	LastTrick    *engine.CompletedTrick `json:"lastTrick,omitempty"`
	TricksPlayed int                    `json:"tricksPlayed"`
	Scores       engine.TeamScores      `json:"scoresByTeam"`
	RoundPoints  engine.TeamScores      `json:"roundScoresByTeam"`
	TrickCounts  engine.TeamScores      `json:"trickScoresByTeam"`
	WinThreshold int                    `json:"winThreshold"`
	WinningTeam  engine.Team            `json:"winningTeam,omitempty"`
	Players      []PlayerView           `json:"players"`

	ViewerID   *uuid.UUID    `json:"viewerId,omitempty"`
	Hand       []engine.Card `json:"hand,omitempty"`
	LegalPlays []engine.Card `json:"legalPlays,omitempty"`
}

// Render projects g for viewer. Other seats' hands only show as counts; the
// undealt reserve is never shown.
func Render(g *engine.Game, viewer uuid.UUID) State {
	s := State{
		GameID:       g.ID,
		Phase:        g.Phase,
		Version:      g.Version,
		Scores:       g.Scores,
		WinThreshold: g.WinThreshold,
		WinningTeam:  g.Winner,
		Players:      make([]PlayerView, 0, engine.Seats),
	}
	for seat, p := range g.Players {
		s.Players = append(s.Players, PlayerView{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			Seat:        p.Seat,
			Team:        p.Team,
			IsBot:       p.IsBot,
			Connected:   p.Connected,
			HandSize:    len(g.Hands[seat]),
		})
	}

	if r := g.Round; r != nil {
		s.RoundNumber = r.Number
		s.TrumpSuit = r.TrumpSuit
		s.DeclarerID = r.DeclarerID
		s.RoundPoints = r.Points
		s.TrickCounts = r.TrickCounts
		s.TricksPlayed = len(r.Completed)
		if r.Trick != nil {
			t := *r.Trick
			t.Plays = append([]engine.Play{}, r.Trick.Plays...)
			s.Trick = &t
			s.LeadSuit = t.LeadSuit
		}
		if n := len(r.Completed); n > 0 {
			last := r.Completed[n-1]
			last.Plays = append([]engine.Play{}, last.Plays...)
			s.LastTrick = &last
		}
	} else if n := len(g.History); n > 0 {
		last := g.History[n-1]
		s.RoundNumber = last.Number
		s.TrumpSuit = last.TrumpSuit
		s.DeclarerID = last.DeclarerID
		s.RoundPoints = last.Points
		s.TrickCounts = last.TrickCounts
		s.TricksPlayed = engine.TricksPerRound
	}

	if p, ok := g.TurnPlayer(); ok {
		id := p.ID
		s.TurnPlayerID = &id
	}
	if seat, ok := g.SeatOf(viewer); ok && viewer != uuid.Nil {
		id := viewer
		s.ViewerID = &id
		s.Hand = g.Hands[seat].Sorted()
		s.LegalPlays = engine.Hand(g.LegalPlays(viewer)).Sorted()
	}
	return s
}

// Equal compares two states by their wire form, so nil and empty
// collections count as the same.
func Equal(a, b *State) bool {
	if a == nil || b == nil {
		return a == b
	}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}
