package protocol

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atifkhan161/contract-crown-sub004/internal/engine"
)

func TestRenderHidesOtherHands(t *testing.T) {
	f := newFixture(t)
	f.next(t, uuid.Nil)

	declarer := f.players[0].ID
	s := Render(f.game, declarer)
	require.NotNil(t, s.ViewerID)
	assert.Len(t, s.Hand, engine.InitialDeal, "only the first batch is visible before trump")
	assert.Empty(t, s.LegalPlays)
	require.NotNil(t, s.TurnPlayerID)
	assert.Equal(t, declarer, *s.TurnPlayerID)
	for _, pv := range s.Players {
		assert.Equal(t, engine.InitialDeal, pv.HandSize)
	}

	other := Render(f.game, f.players[1].ID)
	data, err := json.Marshal(other)
	require.NoError(t, err)
	for _, c := range f.game.Hands[0] {
		raw, _ := json.Marshal(c)
		assert.NotContains(t, string(data), string(raw), "seat 0 card leaked to seat 1")
	}

	spectator := Render(f.game, uuid.Nil)
	assert.Nil(t, spectator.ViewerID)
	assert.Empty(t, spectator.Hand)
}

func TestRenderLegalPlaysForTurnHolder(t *testing.T) {
	f := newFixture(t)
	f.next(t, uuid.Nil)
	f.next(t, uuid.Nil)
	f.next(t, uuid.Nil)

	turn, ok := f.game.TurnPlayer()
	require.True(t, ok)
	s := Render(f.game, turn.ID)
	assert.Len(t, s.Hand, engine.HandSize)
	assert.ElementsMatch(t, f.game.LegalPlays(turn.ID), s.LegalPlays)
	assert.Equal(t, f.game.LeadSuit(), s.LeadSuit)
	require.NotNil(t, s.Trick)
	assert.Len(t, s.Trick.Plays, 1)
	assert.Equal(t, engine.Spades, s.TrumpSuit)
}

func TestEqualTreatsNilAndEmptyAlike(t *testing.T) {
	a := &State{Phase: engine.PhasePlaying, Hand: nil}
	b := &State{Phase: engine.PhasePlaying, Hand: []engine.Card{}}
	assert.True(t, Equal(a, b))
	b.Version = 3
	assert.False(t, Equal(a, b))
	assert.False(t, Equal(a, nil))
	assert.True(t, Equal(nil, nil))
}
