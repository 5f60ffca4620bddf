package bot

import (
	"fmt"

	"github.com/atifkhan161/contract-crown-sub004/internal/engine"
	"github.com/atifkhan161/contract-crown-sub004/internal/models"
)

// Policy picks an action for the seat that holds the turn.
type Policy interface {
	Decide(g *engine.Game, p engine.Player) (models.PlayerAction, error)
}

// LowestCard is the reference policy. It follows the lead with its lowest
// card of that suit, otherwise sheds its lowest card overall, and declares
// the suit it holds most of in the initial four cards.
type LowestCard struct{}

func (LowestCard) Decide(g *engine.Game, p engine.Player) (models.PlayerAction, error) {
	hand := g.Hands[p.Seat]
	switch g.Phase {
	case engine.PhaseTrumpDeclaration:
		return models.DeclareTrump(p.ID, ChooseTrump(hand)), nil
	case engine.PhasePlaying:
		card, ok := ChooseCard(hand, g.LeadSuit())
		if !ok {
			return models.PlayerAction{}, fmt.Errorf("bot %s has no card to play", p.ID)
		}
		return models.PlayCard(p.ID, card), nil
	}
	return models.PlayerAction{}, fmt.Errorf("%w: bot cannot act during %s", engine.ErrWrongPhase, g.Phase)
}

// ChooseTrump returns the most common suit, ties going to the earlier suit.
func ChooseTrump(initial engine.Hand) engine.Suit {
	counts := initial.CountSuits()
	best := engine.Suits[0]
	for _, s := range engine.Suits[1:] {
		if counts[s] > counts[best] {
			best = s
		}
	}
	return best
}

func ChooseCard(hand engine.Hand, lead engine.Suit) (engine.Card, bool) {
	if lead != engine.NoSuit && hand.HasSuit(lead) {
		return hand.Lowest(func(c engine.Card) bool { return c.Suit == lead })
	}
	return hand.Lowest(nil)
}
