package protocol

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atifkhan161/contract-crown-sub004/internal/engine"
)

type fixture struct {
	roomID  uuid.UUID
	game    *engine.Game
	rng     *rand.Rand
	seq     uint64
	players []engine.Player
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	players := make([]engine.Player, engine.Seats)
	for seat := range players {
		players[seat] = engine.Player{ID: uuid.New(), Seat: seat, Team: engine.Team(seat%2 + 1), Connected: true}
	}
	g, err := engine.NewGame(players, engine.Options{WinThreshold: 1000})
	require.NoError(t, err)
	return &fixture{roomID: uuid.New(), game: g, rng: rand.New(rand.NewSource(5)), players: players}
}

// next performs one legal action and returns the resulting envelopes as
// seen by viewer.
func (f *fixture) next(t *testing.T, viewer uuid.UUID) []Event {
	t.Helper()
	var (
		events []engine.Event
		err    error
	)
	g := f.game
	switch g.Phase {
	case engine.PhaseWaiting:
		events, err = g.Start(f.rng)
	case engine.PhaseTrumpDeclaration:
		p, _ := g.TurnPlayer()
		events, err = g.DeclareTrump(p.ID, engine.Spades)
	case engine.PhasePlaying:
		p, _ := g.TurnPlayer()
		events, err = g.PlayCard(p.ID, g.LegalPlays(p.ID)[0])
	case engine.PhaseRoundEnd:
		events, err = g.NextRound(f.rng)
	}
	require.NoError(t, err)
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		f.seq++
		built, err := Build(f.roomID, f.seq, ev, viewer)
		require.NoError(t, err)
		out = append(out, built)
	}
	return out
}

func TestApplyIsIdempotent(t *testing.T) {
	f := newFixture(t)
	viewer := f.players[0].ID
	once := NewProjection(f.roomID)
	twice := NewProjection(f.roomID)

	for i := 0; i < 20; i++ {
		for _, ev := range f.next(t, viewer) {
			changed, err := once.Apply(ev)
			require.NoError(t, err)
			assert.True(t, changed)

			_, err = twice.Apply(ev)
			require.NoError(t, err)
			changed, err = twice.Apply(ev)
			require.NoError(t, err)
			assert.False(t, changed, "second apply of #%d is a no-op", ev.Seq)
		}
	}
	assert.Equal(t, once.Seq, twice.Seq)
	assert.True(t, Equal(once.State, twice.State))
	assert.Equal(t, 0, once.Gaps)
}

func TestApplyIgnoresReplayedPlayUnderNewSeq(t *testing.T) {
	f := newFixture(t)
	viewer := f.players[1].ID
	p := NewProjection(f.roomID)
	f.next(t, viewer)
	f.next(t, viewer)

	played := f.next(t, viewer)
	require.Equal(t, EventCardPlayed, played[0].Type)
	_, err := p.Apply(played[0])
	require.NoError(t, err)

	replay := played[0]
	replay.Seq = 99
	changed, err := p.Apply(replay)
	require.NoError(t, err)
	assert.False(t, changed, "same player, card and trick")
	assert.Equal(t, played[0].Seq, p.Seq)
}

func TestApplyStaleAndGap(t *testing.T) {
	f := newFixture(t)
	viewer := f.players[2].ID
	var all []Event
	for len(all) < 6 {
		all = append(all, f.next(t, viewer)...)
	}

	p := NewProjection(f.roomID)
	_, err := p.Apply(all[0])
	require.NoError(t, err)
	changed, err := p.Apply(all[3])
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, p.Gaps, "missed #2 and #3")
	assert.Same(t, all[3].State, p.State, "embedded state heals the gap")

	changed, err = p.Apply(all[1])
	require.NoError(t, err)
	assert.False(t, changed, "older than what was applied")
	assert.Equal(t, all[3].Seq, p.Seq)
}

func TestApplySyncReplacesState(t *testing.T) {
	f := newFixture(t)
	viewer := f.players[0].ID
	p := NewProjection(f.roomID)
	for i := 0; i < 4; i++ {
		f.next(t, viewer)
	}

	sync := Sync(f.roomID, f.seq, f.game, viewer, "join")
	changed, err := p.Apply(sync)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, f.seq, p.Seq)
	assert.True(t, Equal(p.State, sync.State))

	// a correction at the same seq is still applied
	again := Sync(f.roomID, f.seq, f.game, viewer, "reconcile")
	changed, err = p.Apply(again)
	require.NoError(t, err)
	assert.True(t, changed)

	stale := Sync(f.roomID, f.seq-1, f.game, viewer, "late")
	changed, err = p.Apply(stale)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestApplyRejectsMalformed(t *testing.T) {
	f := newFixture(t)
	ev := f.next(t, f.players[0].ID)[0]
	p := NewProjection(f.roomID)

	bad := ev
	bad.V = 2
	_, err := p.Apply(bad)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	bad = ev
	bad.State = nil
	_, err = p.Apply(bad)
	assert.ErrorIs(t, err, ErrMissingState)

	bad = ev
	bad.RoomID = uuid.New()
	_, err = p.Apply(bad)
	assert.ErrorIs(t, err, ErrWrongRoom)

	bad = ev
	bad.Type = "shuffle"
	_, err = p.Apply(bad)
	assert.Error(t, err)
	assert.Zero(t, p.Seq)
}

func TestEncodeDecodeRoundTripThroughProjection(t *testing.T) {
	f := newFixture(t)
	viewer := f.players[0].ID
	direct := NewProjection(f.roomID)
	wire := NewProjection(f.roomID)
	for i := 0; i < 12; i++ {
		for _, ev := range f.next(t, viewer) {
			data, err := Encode(ev)
			require.NoError(t, err)
			decoded, err := Decode(data)
			require.NoError(t, err)

			_, err = direct.Apply(ev)
			require.NoError(t, err)
			_, err = wire.Apply(decoded)
			require.NoError(t, err)
		}
	}
	assert.True(t, Equal(direct.State, wire.State))
}

func TestGameCompleteOutcome(t *testing.T) {
	players := make([]engine.Player, engine.Seats)
	for seat := range players {
		players[seat] = engine.Player{ID: uuid.New(), Seat: seat, Team: engine.Team(seat%2 + 1)}
	}
	g, err := engine.NewGame(players, engine.Options{WinThreshold: 1})
	require.NoError(t, err)
	f := &fixture{roomID: uuid.New(), game: g, rng: rand.New(rand.NewSource(1)), players: players}

	p := NewProjection(f.roomID)
	for g.Phase != engine.PhaseComplete {
		for _, ev := range f.next(t, uuid.Nil) {
			_, err := p.Apply(ev)
			require.NoError(t, err)
		}
	}
	require.NotNil(t, p.Outcome)
	assert.Equal(t, g.Winner, p.Outcome.WinningTeam)
	assert.Equal(t, engine.PhaseComplete, p.State.Phase)
}
