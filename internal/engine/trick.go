package engine

import (
	"fmt"

	"github.com/google/uuid"
)

// Play is one card laid into a trick.
type Play struct {
	PlayerID uuid.UUID `json:"playerId"`
	Card     Card      `json:"card"`
}

// Trick is the trick in progress. LeadSuit and LeaderID are set by the first
// play and never change afterwards.
type Trick struct {
	Number   int       `json:"trickNumber"`
	LeadSuit Suit      `json:"leadSuit,omitempty"`
	LeaderID uuid.UUID `json:"leaderId"`
	Plays    []Play    `json:"plays"`
}

// CompletedTrick is a resolved trick as kept in the round history.
type CompletedTrick struct {
	Trick
	WinnerID    uuid.UUID `json:"winnerId"`
	WinningCard Card      `json:"winningCard"`
	Points      int       `json:"points"`
}

func NewTrick(number int) *Trick {
	return &Trick{Number: number, Plays: make([]Play, 0, Seats)}
}

func (t *Trick) Complete() bool {
	return len(t.Plays) == Seats
}

func (t *Trick) HasPlayed(playerID uuid.UUID) bool {
	for _, p := range t.Plays {
		if p.PlayerID == playerID {
			return true
		}
	}
	return false
}

func (t *Trick) Cards() []Card {
	cards := make([]Card, len(t.Plays))
	for i, p := range t.Plays {
		cards[i] = p.Card
	}
	return cards
}

func (t *Trick) clone() *Trick {
	if t == nil {
		return nil
	}
	out := *t
	out.Plays = append(make([]Play, 0, Seats), t.Plays...)
	return &out
}

// IsLegalPlay reports whether card may be played from hand given the current
// lead suit. The lead is unset (NoSuit) only for a trick's first play.
func IsLegalPlay(hand Hand, card Card, lead Suit) bool {
	if lead == NoSuit || card.Suit == lead {
		return true
	}
	return !hand.HasSuit(lead)
}

// LegalPlays returns the cards of hand that may be played, in hand order.
func LegalPlays(hand Hand, lead Suit) []Card {
	legal := make([]Card, 0, len(hand))
	for _, c := range hand {
		if IsLegalPlay(hand, c, lead) {
			legal = append(legal, c)
		}
	}
	return legal
}

// RecordPlay appends the play to the trick. The hand is the submitter's hand
// before the play and is not modified.
func RecordPlay(t *Trick, playerID uuid.UUID, card Card, hand Hand) error {
	switch {
	case t.Complete():
		return fmt.Errorf("%w: trick %d already has %d plays", ErrIllegalPlay, t.Number, Seats)
	case t.HasPlayed(playerID):
		return fmt.Errorf("%w: player %s already played in trick %d", ErrIllegalPlay, playerID, t.Number)
	case !hand.Contains(card):
		return fmt.Errorf("%w: %s is not in hand", ErrIllegalPlay, card)
	case !IsLegalPlay(hand, card, t.LeadSuit):
		return fmt.Errorf("%w: must follow %s", ErrIllegalPlay, t.LeadSuit)
	}
	if len(t.Plays) == 0 {
		t.LeadSuit = card.Suit
		t.LeaderID = playerID
	}
	t.Plays = append(t.Plays, Play{PlayerID: playerID, Card: card})
	return nil
}

// ResolveTrick returns the winning play of a complete trick. trump may be
// NoSuit, in which case only the lead suit matters.
func ResolveTrick(t *Trick, trump Suit) (Play, error) {
	if !t.Complete() {
		return Play{}, fmt.Errorf("%w: trick %d has %d plays", ErrIncompleteTrick, t.Number, len(t.Plays))
	}
	winner := t.Plays[0]
	for _, p := range t.Plays[1:] {
		if beats(p.Card, winner.Card, t.LeadSuit, trump) {
			winner = p
		}
	}
	return winner, nil
}

// beats reports whether challenger takes the trick from the running winner.
func beats(challenger, winner Card, lead, trump Suit) bool {
	cTrump := trump != NoSuit && challenger.Suit == trump
	wTrump := trump != NoSuit && winner.Suit == trump
	switch {
	case cTrump && wTrump:
		return challenger.Rank > winner.Rank
	case cTrump:
		return true
	case wTrump:
		return false
	case challenger.Suit == lead && winner.Suit == lead:
		return challenger.Rank > winner.Rank
	case challenger.Suit == lead:
		return true
	default:
		return false
	}
}
