package engine

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

const (
	Seats          = 4
	HandSize       = 8
	InitialDeal    = 4
	TricksPerRound = HandSize
	// NoSeat marks "nobody may act" (between tricks, between rounds).
	NoSeat = -1

	DefaultWinThreshold = 52
)

type Phase string

const (
	PhaseWaiting          Phase = "waiting"
	PhaseTrumpDeclaration Phase = "trump_declaration"
	PhasePlaying          Phase = "playing"
	PhaseRoundEnd         Phase = "round_end"
	PhaseComplete         Phase = "complete"
)

// Player is a seated participant. Seat and Team never change during a game.
type Player struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"displayName"`
	Seat        int       `json:"seat"`
	Team        Team      `json:"team"`
	IsBot       bool      `json:"isBot"`
	Connected   bool      `json:"connected"`
}

// Round is the round in progress. It is folded into Game.History and
// dropped when the last trick closes.
type Round struct {
	Number       int              `json:"roundNumber"`
	TrumpSuit    Suit             `json:"trumpSuit,omitempty"`
	DeclarerID   uuid.UUID        `json:"declarerId"`
	DeclarerSeat int              `json:"declarerSeat"`
	Trick        *Trick           `json:"trick,omitempty"`
	Completed    []CompletedTrick `json:"completedTricks"`
	Points       TeamScores       `json:"points"`
	TrickCounts  TeamScores       `json:"trickCounts"`
}

// RoundRecord is a closed round as kept in the game history.
type RoundRecord struct {
	Number       int        `json:"roundNumber"`
	TrumpSuit    Suit       `json:"trumpSuit"`
	DeclarerID   uuid.UUID  `json:"declarerId"`
	DeclarerSeat int        `json:"declarerSeat"`
	Points       TeamScores `json:"points"`
	Adjustment   TeamScores `json:"adjustment"`
	TrickCounts  TeamScores `json:"trickCounts"`
	Winner       Team       `json:"winner"`
}

type Options struct {
	ID                uuid.UUID
	WinThreshold      int
	FirstDeclarerSeat int
	Adjuster          RoundAdjuster
}

// Game is the authoritative state of one Contract Crown game. It is not
// safe for concurrent use; the owning room serializes every call.
type Game struct {
	ID      uuid.UUID
	Phase   Phase
	Players [Seats]Player
	Hands   [Seats]Hand
	// Reserve holds each seat's second batch of cards until trump is declared.
	Reserve      [Seats]Hand
	Round        *Round
	History      []RoundRecord
	TurnSeat     int
	Scores       TeamScores
	WinThreshold int
	Winner       Team
	// Version increments on every accepted mutation. Scheduled automatic
	// actions are keyed on it.
	Version uint64

	firstDeclarer int
	adjuster      RoundAdjuster
}

// NewGame validates the seating and returns a game in the waiting phase.
func NewGame(players []Player, opts Options) (*Game, error) {
	if len(players) != Seats {
		return nil, fmt.Errorf("%w: need %d players, got %d", ErrInvalidSetup, Seats, len(players))
	}
	if opts.FirstDeclarerSeat < 0 || opts.FirstDeclarerSeat >= Seats {
		return nil, fmt.Errorf("%w: first declarer seat %d", ErrInvalidSetup, opts.FirstDeclarerSeat)
	}

	g := &Game{
		ID:            opts.ID,
		Phase:         PhaseWaiting,
		TurnSeat:      NoSeat,
		WinThreshold:  opts.WinThreshold,
		firstDeclarer: opts.FirstDeclarerSeat,
		adjuster:      opts.Adjuster,
	}
	if g.ID == uuid.Nil {
		g.ID = uuid.Must(uuid.NewV7())
	}
	if g.WinThreshold <= 0 {
		g.WinThreshold = DefaultWinThreshold
	}

	var filled [Seats]bool
	ids := make(map[uuid.UUID]bool, Seats)
	perTeam := make(map[Team]int, 2)
	for _, p := range players {
		switch {
		case p.Seat < 0 || p.Seat >= Seats:
			return nil, fmt.Errorf("%w: seat %d out of range", ErrInvalidSetup, p.Seat)
		case filled[p.Seat]:
			return nil, fmt.Errorf("%w: seat %d assigned twice", ErrInvalidSetup, p.Seat)
		case p.ID == uuid.Nil:
			return nil, fmt.Errorf("%w: player in seat %d has no id", ErrInvalidSetup, p.Seat)
		case ids[p.ID]:
			return nil, fmt.Errorf("%w: player %s seated twice", ErrInvalidSetup, p.ID)
		case !p.Team.Valid():
			return nil, fmt.Errorf("%w: player %s has team %d", ErrInvalidSetup, p.ID, p.Team)
		}
		filled[p.Seat] = true
		ids[p.ID] = true
		perTeam[p.Team]++
		g.Players[p.Seat] = p
	}
	if perTeam[Team1] != 2 || perTeam[Team2] != 2 {
		return nil, fmt.Errorf("%w: teams must have two players each", ErrInvalidSetup)
	}
	return g, nil
}

// Start deals the first round. The first-round declarer comes from Options.
func (g *Game) Start(rng *rand.Rand) ([]Event, error) {
	if g.Phase != PhaseWaiting {
		return nil, g.phaseError("start the game")
	}
	return []Event{g.beginRound(g.firstDeclarer, rng)}, nil
}

// DeclareTrump sets the round's trump, hands every seat its reserve and
// passes the lead to the declarer.
func (g *Game) DeclareTrump(playerID uuid.UUID, suit Suit) ([]Event, error) {
	if g.Phase != PhaseTrumpDeclaration {
		return nil, g.phaseError("declare trump")
	}
	seat, err := g.actingSeat(playerID)
	if err != nil {
		return nil, err
	}
	if !suit.Valid() {
		return nil, fmt.Errorf("%w: %d is not a trump suit", ErrIllegalPlay, int(suit))
	}
	r := g.Round
	if r.DeclarerSeat != seat {
		panic(fmt.Sprintf("engine: turn seat %d is not declarer seat %d", seat, r.DeclarerSeat))
	}

	r.TrumpSuit = suit
	for s := range g.Hands {
		g.Hands[s] = append(g.Hands[s].Clone(), g.Reserve[s]...)
		g.Reserve[s] = nil
	}
	r.Trick = NewTrick(1)
	g.Phase = PhasePlaying
	g.TurnSeat = seat
	g.Version++

	return []Event{g.event(EventTrumpDeclared, playerID, TrumpDeclared{TrumpSuit: suit, DeclarerID: playerID})}, nil
}

// PlayCard records a play by the turn holder. A fourth play also resolves
// the trick and, after the eighth trick, closes the round.
func (g *Game) PlayCard(playerID uuid.UUID, card Card) ([]Event, error) {
	if g.Phase != PhasePlaying {
		return nil, g.phaseError("play a card")
	}
	seat, err := g.actingSeat(playerID)
	if err != nil {
		return nil, err
	}
	r := g.Round
	t := r.Trick
	if len(t.Plays) == 0 {
		g.assertLeader(playerID)
	}
	if err := RecordPlay(t, playerID, card, g.Hands[seat]); err != nil {
		return nil, err
	}
	g.Hands[seat], _ = g.Hands[seat].Remove(card)
	g.Version++

	if !t.Complete() {
		g.TurnSeat = (seat + 1) % Seats
		next := g.Players[g.TurnSeat].ID
		return []Event{g.event(EventCardPlayed, playerID, CardPlayed{
			PlayerID:     playerID,
			Card:         card,
			TrickNumber:  t.Number,
			NextPlayerID: &next,
		})}, nil
	}

	g.TurnSeat = NoSeat
	events := []Event{g.event(EventCardPlayed, playerID, CardPlayed{
		PlayerID:    playerID,
		Card:        card,
		TrickNumber: t.Number,
	})}
	return append(events, g.closeTrick()...), nil
}

// NextRound deals the next round with the declarer rotated one seat
// clockwise from the previous round's declarer.
func (g *Game) NextRound(rng *rand.Rand) ([]Event, error) {
	if g.Phase != PhaseRoundEnd {
		return nil, g.phaseError("start the next round")
	}
	prev := g.History[len(g.History)-1]
	return []Event{g.beginRound((prev.DeclarerSeat+1)%Seats, rng)}, nil
}

// SetConnected records a connection change. The seat, hand and turn slot
// are kept either way. No event is produced when nothing changed or the
// game is over.
func (g *Game) SetConnected(playerID uuid.UUID, connected bool) ([]Event, error) {
	seat, ok := g.SeatOf(playerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID)
	}
	if g.Phase == PhaseComplete || g.Players[seat].Connected == connected {
		return nil, nil
	}
	g.Players[seat].Connected = connected
	g.Version++
	return []Event{g.event(EventPlayerStatus, playerID, PlayerStatus{PlayerID: playerID, Connected: connected})}, nil
}

func (g *Game) beginRound(declarerSeat int, rng *rand.Rand) Event {
	deck := NewDeck()
	Shuffle(deck, rng)
	firstBatch := Seats * InitialDeal
	rest := HandSize - InitialDeal
	for seat := 0; seat < Seats; seat++ {
		g.Hands[seat] = append(Hand(nil), deck[seat*InitialDeal:(seat+1)*InitialDeal]...)
		g.Reserve[seat] = append(Hand(nil), deck[firstBatch+seat*rest:firstBatch+(seat+1)*rest]...)
	}

	declarer := g.Players[declarerSeat]
	g.Round = &Round{
		Number:       len(g.History) + 1,
		DeclarerID:   declarer.ID,
		DeclarerSeat: declarerSeat,
		Completed:    make([]CompletedTrick, 0, TricksPerRound),
	}
	g.Phase = PhaseTrumpDeclaration
	g.TurnSeat = declarerSeat
	g.Version++
	return g.event(EventNewRound, uuid.Nil, NewRound{RoundNumber: g.Round.Number, TrumpDeclarerID: declarer.ID})
}

func (g *Game) closeTrick() []Event {
	r := g.Round
	t := r.Trick
	win, err := ResolveTrick(t, r.TrumpSuit)
	if err != nil {
		panic(fmt.Sprintf("engine: %v", err))
	}
	winnerSeat, _ := g.SeatOf(win.PlayerID)
	team := g.Players[winnerSeat].Team
	cards := t.Cards()
	points := ScoreTrick(cards)

	r.Points.Add(team, points)
	r.TrickCounts.Add(team, 1)
	r.Completed = append(r.Completed, CompletedTrick{
		Trick:       *t.clone(),
		WinnerID:    win.PlayerID,
		WinningCard: win.Card,
		Points:      points,
	})

	last := len(r.Completed) == TricksPerRound
	if last != g.handsEmpty() {
		panic(fmt.Sprintf("engine: trick %d closed with hands empty=%v", t.Number, g.handsEmpty()))
	}
	if last {
		r.Trick = nil
	} else {
		r.Trick = NewTrick(t.Number + 1)
		g.TurnSeat = winnerSeat
	}
	g.Version++

	events := []Event{g.event(EventTrickWon, uuid.Nil, TrickWon{
		TrickNumber:  t.Number,
		WinnerID:     win.PlayerID,
		WinningCard:  win.Card,
		CardsWon:     cards,
		Points:       points,
		ScoresByTeam: r.Points,
	})}
	if last {
		events = append(events, g.closeRound()...)
	}
	return events
}

func (g *Game) closeRound() []Event {
	r := g.Round
	var adjustment TeamScores
	if g.adjuster != nil {
		adjustment = g.adjuster.AdjustRound(RoundSummary{
			Round:        r.Number,
			DeclarerID:   r.DeclarerID,
			DeclarerTeam: g.Players[r.DeclarerSeat].Team,
			TrumpSuit:    r.TrumpSuit,
			Points:       r.Points,
			TrickCounts:  r.TrickCounts,
		})
	}
	if r.TrickCounts.Total() != TricksPerRound {
		panic(fmt.Sprintf("engine: round %d closed after %d tricks", r.Number, r.TrickCounts.Total()))
	}

	rec := RoundRecord{
		Number:       r.Number,
		TrumpSuit:    r.TrumpSuit,
		DeclarerID:   r.DeclarerID,
		DeclarerSeat: r.DeclarerSeat,
		Points:       r.Points,
		Adjustment:   adjustment,
		TrickCounts:  r.TrickCounts,
		Winner:       RoundWinner(r.Points, r.TrickCounts),
	}
	g.Scores = g.Scores.Plus(r.Points).Plus(adjustment)
	g.History = append(g.History, rec)
	g.Round = nil
	g.Phase = PhaseRoundEnd
	g.TurnSeat = NoSeat
	g.Version++

	events := []Event{
		g.event(EventRoundScores, uuid.Nil, RoundScores{Round: rec.Number, ScoresByTeam: g.Scores}),
		g.event(EventRoundComplete, uuid.Nil, RoundComplete{
			Round:             rec.Number,
			TrickScoresByTeam: rec.TrickCounts,
			RoundWinner:       rec.Winner,
			NextDeclarerID:    g.Players[(rec.DeclarerSeat+1)%Seats].ID,
		}),
	}

	if winner, done := IsGameComplete(g.Scores, g.WinThreshold); done {
		g.Phase = PhaseComplete
		g.Winner = winner
		g.Version++
		events = append(events, g.event(EventGameComplete, uuid.Nil, GameComplete{WinningTeam: winner, FinalScore: g.Scores}))
	}
	return events
}

// assertLeader panics unless id may lead the current trick: the declarer
// for the first trick, the previous trick's winner afterwards.
func (g *Game) assertLeader(id uuid.UUID) {
	r := g.Round
	want := r.DeclarerID
	if n := len(r.Completed); n > 0 {
		want = r.Completed[n-1].WinnerID
	}
	if want != id {
		panic(fmt.Sprintf("engine: %s leads trick %d but %s should", id, r.Trick.Number, want))
	}
}

func (g *Game) actingSeat(playerID uuid.UUID) (int, error) {
	seat, ok := g.SeatOf(playerID)
	if !ok {
		return NoSeat, fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID)
	}
	if seat != g.TurnSeat {
		return NoSeat, fmt.Errorf("%w: waiting on seat %d", ErrNotYourTurn, g.TurnSeat)
	}
	return seat, nil
}

func (g *Game) phaseError(action string) error {
	if g.Phase == PhaseComplete {
		return fmt.Errorf("%w: cannot %s", ErrGameComplete, action)
	}
	return fmt.Errorf("%w: cannot %s during %s", ErrWrongPhase, action, g.Phase)
}

func (g *Game) event(kind EventKind, actor uuid.UUID, payload any) Event {
	return Event{Kind: kind, Actor: actor, Payload: payload, Snapshot: g.Clone()}
}

func (g *Game) handsEmpty() bool {
	for _, h := range g.Hands {
		if len(h) > 0 {
			return false
		}
	}
	return true
}

// SeatOf returns the seat of a player id.
func (g *Game) SeatOf(id uuid.UUID) (int, bool) {
	for seat, p := range g.Players {
		if p.ID == id {
			return seat, true
		}
	}
	return NoSeat, false
}

func (g *Game) PlayerByID(id uuid.UUID) (Player, bool) {
	seat, ok := g.SeatOf(id)
	if !ok {
		return Player{}, false
	}
	return g.Players[seat], true
}

// TurnPlayer returns the player who may act now, if anyone.
func (g *Game) TurnPlayer() (Player, bool) {
	if g.TurnSeat == NoSeat || (g.Phase != PhaseTrumpDeclaration && g.Phase != PhasePlaying) {
		return Player{}, false
	}
	return g.Players[g.TurnSeat], true
}

// LeadSuit mirrors the lead suit of the active trick.
func (g *Game) LeadSuit() Suit {
	if g.Round == nil || g.Round.Trick == nil {
		return NoSuit
	}
	return g.Round.Trick.LeadSuit
}

func (g *Game) TrumpSuit() Suit {
	if g.Round == nil {
		return NoSuit
	}
	return g.Round.TrumpSuit
}

// LegalPlays lists the cards the player may play right now. It is empty
// unless the player holds the turn in the playing phase.
func (g *Game) LegalPlays(playerID uuid.UUID) []Card {
	seat, ok := g.SeatOf(playerID)
	if !ok || g.Phase != PhasePlaying || seat != g.TurnSeat {
		return nil
	}
	return LegalPlays(g.Hands[seat], g.LeadSuit())
}

// CardCount counts every card of the current round wherever it sits: hands,
// reserve, the active trick and completed tricks.
func (g *Game) CardCount() int {
	n := 0
	for seat := range g.Hands {
		n += len(g.Hands[seat]) + len(g.Reserve[seat])
	}
	if r := g.Round; r != nil {
		if r.Trick != nil {
			n += len(r.Trick.Plays)
		}
		for _, ct := range r.Completed {
			n += len(ct.Plays)
		}
	}
	return n
}

// Clone returns a deep copy that shares no mutable state with g.
func (g *Game) Clone() *Game {
	out := *g
	for i := range g.Hands {
		out.Hands[i] = g.Hands[i].Clone()
		out.Reserve[i] = g.Reserve[i].Clone()
	}
	if g.Round != nil {
		r := *g.Round
		r.Trick = g.Round.Trick.clone()
		r.Completed = make([]CompletedTrick, len(g.Round.Completed), TricksPerRound)
		for i, ct := range g.Round.Completed {
			ct.Plays = append([]Play(nil), ct.Plays...)
			r.Completed[i] = ct
		}
		out.Round = &r
	}
	out.History = append([]RoundRecord(nil), g.History...)
	return &out
}
