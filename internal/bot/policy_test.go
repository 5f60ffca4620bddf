package bot

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atifkhan161/contract-crown-sub004/internal/engine"
	"github.com/atifkhan161/contract-crown-sub004/internal/models"
)

func hand(vals ...string) engine.Hand {
	h := make(engine.Hand, len(vals))
	for i, v := range vals {
		h[i] = engine.MustCard(v)
	}
	return h
}

func TestChooseTrump(t *testing.T) {
	assert.Equal(t, engine.Clubs, ChooseTrump(hand("7C", "AC", "KS", "9H")))
	assert.Equal(t, engine.Hearts, ChooseTrump(hand("7C", "AH", "KS", "9D")), "all tied, first suit wins")
	assert.Equal(t, engine.Diamonds, ChooseTrump(hand("7S", "AD", "KS", "9D")), "tie between diamonds and spades")
}

func TestChooseCard(t *testing.T) {
	h := hand("KS", "8S", "7D", "AH")

	c, ok := ChooseCard(h, engine.Spades)
	require.True(t, ok)
	assert.Equal(t, engine.MustCard("8S"), c, "lowest of the lead suit")

	c, ok = ChooseCard(h, engine.Clubs)
	require.True(t, ok)
	assert.Equal(t, engine.MustCard("7D"), c, "void in lead, lowest overall")

	c, ok = ChooseCard(h, engine.NoSuit)
	require.True(t, ok)
	assert.Equal(t, engine.MustCard("7D"), c)

	c, _ = ChooseCard(hand("9S", "9H", "9C"), engine.NoSuit)
	assert.Equal(t, engine.MustCard("9H"), c, "rank tie goes to suit order")

	_, ok = ChooseCard(nil, engine.Spades)
	assert.False(t, ok)
}

// Four LowestCard bots always produce legal moves through a whole game.
func TestLowestCardPlaysWholeGame(t *testing.T) {
	players := make([]engine.Player, engine.Seats)
	for seat := range players {
		players[seat] = engine.Player{ID: uuid.New(), Seat: seat, Team: engine.Team(seat%2 + 1), IsBot: true}
	}
	g, err := engine.NewGame(players, engine.Options{})
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(17))
	_, err = g.Start(rng)
	require.NoError(t, err)

	var policy Policy = LowestCard{}
	for steps := 0; g.Phase != engine.PhaseComplete; steps++ {
		require.Less(t, steps, 5000)
		if g.Phase == engine.PhaseRoundEnd {
			_, err = g.NextRound(rng)
			require.NoError(t, err)
			continue
		}
		p, ok := g.TurnPlayer()
		require.True(t, ok)
		action, err := policy.Decide(g, p)
		require.NoError(t, err)
		switch action.Type {
		case models.ActionDeclareTrump:
			assert.Len(t, g.Hands[p.Seat], engine.InitialDeal, "trump chosen from the first four cards")
			_, err = g.DeclareTrump(p.ID, action.Suit)
		case models.ActionPlayCard:
			_, err = g.PlayCard(p.ID, *action.Card)
		}
		require.NoError(t, err)
	}
	assert.True(t, g.Winner.Valid())
}
