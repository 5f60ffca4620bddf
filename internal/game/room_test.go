package game

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atifkhan161/contract-crown-sub004/internal/engine"
	"github.com/atifkhan161/contract-crown-sub004/internal/models"
	"github.com/atifkhan161/contract-crown-sub004/internal/protocol"
)

// recordingSink collects published records and game results.
type recordingSink struct {
	mu      sync.Mutex
	records []protocol.Record
	results []GameRecord
}

func (s *recordingSink) PublishEvent(_ context.Context, rec protocol.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *recordingSink) RecordGame(_ context.Context, rec GameRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, rec)
	return nil
}

func (s *recordingSink) recordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *recordingSink) resultCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func fastRules() models.RoomRules {
	return models.RoomRules{WinThreshold: 52}
}

func humanSeats() []engine.Player {
	players := make([]engine.Player, engine.Seats)
	for seat := range players {
		players[seat] = engine.Player{ID: uuid.New(), Seat: seat, Team: engine.Team(seat%2 + 1)}
	}
	return players
}

func newTestRoom(t *testing.T, players []engine.Player, cfg Config) *Room {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = quietLogger()
	}
	if cfg.Seed == 0 {
		cfg.Seed = 7
	}
	r, err := NewRoom(uuid.New(), players, cfg)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func ctxT(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func recv(t *testing.T, o *Observer) protocol.Event {
	t.Helper()
	select {
	case ev, ok := <-o.Events():
		require.True(t, ok, "observer stream closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
	return protocol.Event{}
}

func TestBotRoomPlaysToCompletion(t *testing.T) {
	sink := &recordingSink{}
	r := newTestRoom(t, BotSeats(), Config{Rules: fastRules(), Events: sink, Results: sink, LogSize: 4096})
	require.NoError(t, r.Start(ctxT(t)))

	select {
	case <-r.Finished():
	case <-time.After(10 * time.Second):
		t.Fatal("bot game did not finish")
	}

	rec, done, err := r.Result(ctxT(t))
	require.NoError(t, err)
	require.True(t, done)
	assert.True(t, rec.WinningTeam.Valid())
	assert.NotEmpty(t, rec.Rounds)
	assert.GreaterOrEqual(t, rec.FinalScore.Get(rec.WinningTeam), 52)

	events, err := r.EventsSince(ctxT(t), uuid.Nil, 0)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Seq, "contiguous sequence")
	}
	assert.Equal(t, protocol.EventGameComplete, events[len(events)-1].Type)

	assert.Eventually(t, func() bool { return sink.recordCount() == len(events) }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return sink.resultCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	sink.mu.Lock()
	for i, rec := range sink.records {
		assert.Equal(t, uint64(i+1), rec.Seq, "sink sees events in order")
	}
	sink.mu.Unlock()

	err = r.Submit(ctxT(t), models.PlayCard(rec.Players[0].ID, engine.MustCard("AS")))
	assert.ErrorIs(t, err, engine.ErrGameComplete)
}

func TestHumanActionsAndRejections(t *testing.T) {
	human := uuid.New()
	r := newTestRoom(t, LocalSeats(human, "ana"), Config{Rules: fastRules()})
	ctx := ctxT(t)

	o, err := r.Join(ctx, human, 0)
	require.NoError(t, err)
	first := recv(t, o)
	assert.Equal(t, protocol.EventSyncState, first.Type)
	assert.Equal(t, engine.PhaseWaiting, first.State.Phase)
	status := recv(t, o)
	assert.Equal(t, protocol.EventPlayerStatus, status.Type)

	require.NoError(t, r.Start(ctx))
	nr := recv(t, o)
	require.Equal(t, protocol.EventNewRound, nr.Type)
	assert.Len(t, nr.State.Hand, engine.InitialDeal)
	require.NotNil(t, nr.State.TurnPlayerID)
	assert.Equal(t, human, *nr.State.TurnPlayerID, "seat 0 declares first")

	bot := nr.State.Players[1].ID
	err = r.Submit(ctx, models.DeclareTrump(bot, engine.Hearts))
	assert.ErrorIs(t, err, engine.ErrNotYourTurn)
	err = r.Submit(ctx, models.PlayCard(human, nr.State.Hand[0]))
	assert.ErrorIs(t, err, engine.ErrWrongPhase)
	err = r.Submit(ctx, models.PlayerAction{Type: models.ActionDeclareTrump, PlayerID: human})
	assert.ErrorIs(t, err, engine.ErrIllegalPlay)

	require.NoError(t, r.Submit(ctx, models.DeclareTrump(human, engine.Spades)))
	td := recv(t, o)
	require.Equal(t, protocol.EventTrumpDeclared, td.Type)
	assert.Equal(t, nr.Seq+1, td.Seq, "rejections produce no events")
	assert.Len(t, td.State.Hand, engine.HandSize)
	require.NotEmpty(t, td.State.LegalPlays)

	require.NoError(t, r.Submit(ctx, models.PlayCard(human, td.State.LegalPlays[0])))
	// the three bots answer on their own
	seq := td.Seq
	plays := 0
	for plays < engine.Seats {
		ev := recv(t, o)
		assert.Equal(t, seq+1, ev.Seq)
		seq = ev.Seq
		if ev.Type == protocol.EventCardPlayed {
			plays++
		}
	}
}

// A human racing their own turn timeout must never produce two plays for
// the same trick slot.
func TestTimeoutRaceNeverDoublePlays(t *testing.T) {
	human := uuid.New()
	rules := fastRules()
	rules.TurnTimeout = time.Millisecond
	r := newTestRoom(t, LocalSeats(human, "ana"), Config{Rules: rules, LogSize: 4096, ObserverBuffer: 4096})
	ctx := ctxT(t)

	o, err := r.Join(ctx, human, 0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range o.Events() {
			o.Delivered(ev)
			s := ev.State
			if s.TurnPlayerID == nil || *s.TurnPlayerID != human {
				continue
			}
			switch s.Phase {
			case engine.PhaseTrumpDeclaration:
				_ = r.Submit(context.Background(), models.DeclareTrump(human, engine.Hearts))
			case engine.PhasePlaying:
				if len(s.LegalPlays) > 0 {
					_ = r.Submit(context.Background(), models.PlayCard(human, s.LegalPlays[len(s.LegalPlays)-1]))
				}
			}
		}
	}()

	require.NoError(t, r.Start(ctx))
	select {
	case <-r.Finished():
	case <-time.After(10 * time.Second):
		t.Fatal("game did not finish")
	}

	events, err := r.EventsSince(ctx, uuid.Nil, 0)
	require.NoError(t, err)

	type slot struct {
		round, trick int
		player       uuid.UUID
	}
	seen := map[slot]bool{}
	round := 0
	for _, ev := range events {
		switch ev.Type {
		case protocol.EventNewRound:
			round++
		case protocol.EventCardPlayed:
			var cp engine.CardPlayed
			require.NoError(t, json.Unmarshal(ev.Payload, &cp))
			key := slot{round: round, trick: cp.TrickNumber, player: cp.PlayerID}
			assert.False(t, seen[key], "duplicate play %+v", key)
			seen[key] = true
		}
	}
	assert.Len(t, seen, round*engine.TricksPerRound*engine.Seats)

	r.Close()
	wg.Wait()
}

func TestReconcileCorrectsDroppedAndStalledDelivery(t *testing.T) {
	players := humanSeats()
	p0 := players[0].ID
	r := newTestRoom(t, players, Config{Rules: fastRules(), ObserverBuffer: 1})
	ctx := ctxT(t)

	o, err := r.Join(ctx, p0, 0)
	require.NoError(t, err)

	// sync_state filled the queue, player_status was dropped
	n, err := r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ev := recv(t, o)
	require.Equal(t, protocol.EventSyncState, ev.Type)
	assert.Equal(t, uint64(1), ev.Seq)
	assert.True(t, ev.State.Players[0].Connected)
	o.Delivered(ev)

	n, err = r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "delivered view matches")

	require.NoError(t, r.Start(ctx))
	n, _ = r.Reconcile(ctx)
	assert.Zero(t, n, "in flight, give it a pass")
	n, _ = r.Reconcile(ctx)
	assert.Equal(t, 1, n, "no progress across a pass")

	ev = recv(t, o)
	assert.Equal(t, protocol.EventSyncState, ev.Type)
	assert.Equal(t, engine.PhaseTrumpDeclaration, ev.State.Phase)
	o.Delivered(ev)
	n, _ = r.Reconcile(ctx)
	assert.Zero(t, n)
}

func TestMissedHeartbeatDisconnectsButKeepsSeat(t *testing.T) {
	clock := newFakeClock()
	players := humanSeats()
	p1 := players[1].ID
	rules := fastRules()
	rules.HeartbeatTimeout = 10 * time.Second
	r := newTestRoom(t, players, Config{Rules: rules, Clock: clock.Now})
	ctx := ctxT(t)
	require.NoError(t, r.Start(ctx))

	o, err := r.Join(ctx, p1, 0)
	require.NoError(t, err)

	clock.Advance(5 * time.Second)
	r.Heartbeat(o, o.DeliveredSeq())
	clock.Advance(8 * time.Second)
	_, err = r.Reconcile(ctx)
	require.NoError(t, err)

	snap, err := r.Snapshot(ctx, uuid.Nil)
	require.NoError(t, err)
	assert.True(t, snap.State.Players[1].Connected)

	clock.Advance(3 * time.Second)
	_, err = r.Reconcile(ctx)
	require.NoError(t, err)

	drained := make(chan struct{})
	go func() {
		for range o.Events() {
		}
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(2 * time.Second):
		t.Fatal("stale observer stream was not closed")
	}

	snap, err = r.Snapshot(ctx, p1)
	require.NoError(t, err)
	assert.False(t, snap.State.Players[1].Connected)
	assert.Len(t, snap.State.Hand, engine.InitialDeal, "hand is kept")

	o2, err := r.Join(ctx, p1, 0)
	require.NoError(t, err)
	assert.Equal(t, protocol.EventSyncState, recv(t, o2).Type)
	status := recv(t, o2)
	require.Equal(t, protocol.EventPlayerStatus, status.Type)
	assert.True(t, status.State.Players[1].Connected)
}

func TestJoinReplaysTail(t *testing.T) {
	players := humanSeats()
	r := newTestRoom(t, players, Config{Rules: fastRules(), LogSize: 4})
	ctx := ctxT(t)

	o, err := r.Join(ctx, players[0].ID, 0)
	require.NoError(t, err)
	require.NoError(t, r.Start(ctx))
	require.NoError(t, r.Submit(ctx, models.DeclareTrump(players[0].ID, engine.Clubs)))
	require.NoError(t, r.Leave(ctx, o))

	// log now holds: player_status(1) new_round(2) trump_declared(3) player_status(4)
	o2, err := r.Join(ctx, players[0].ID, 2)
	require.NoError(t, err)
	assert.Equal(t, protocol.EventTrumpDeclared, recv(t, o2).Type)
	assert.Equal(t, protocol.EventPlayerStatus, recv(t, o2).Type)
	assert.Equal(t, protocol.EventPlayerStatus, recv(t, o2).Type, "reconnect status")

	events, err := r.EventsSince(ctx, players[0].ID, 3)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(4), events[0].Seq)

	events, err = r.EventsSince(ctx, players[0].ID, 99)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, protocol.EventSyncState, events[0].Type)

	_, err = r.EventsSince(ctx, uuid.New(), 0)
	assert.ErrorIs(t, err, engine.ErrUnknownPlayer)
}

func TestCloseCancelsPendingBotAction(t *testing.T) {
	rules := fastRules()
	rules.BotDelayMin = time.Hour
	rules.BotDelayMax = time.Hour
	r := newTestRoom(t, BotSeats(), Config{Rules: rules})
	require.NoError(t, r.Start(ctxT(t)))

	_, ok := r.sched.Pending()
	assert.True(t, ok)
	r.Close()
	_, ok = r.sched.Pending()
	assert.False(t, ok)

	_, err := r.Snapshot(ctxT(t), uuid.Nil)
	assert.ErrorIs(t, err, ErrRoomClosed)
}

type panicPolicy struct{}

func (panicPolicy) Decide(*engine.Game, engine.Player) (models.PlayerAction, error) {
	panic("policy exploded")
}

func TestPipelineRecoversFromPanic(t *testing.T) {
	r := newTestRoom(t, BotSeats(), Config{Rules: fastRules(), Policy: panicPolicy{}})
	ctx := ctxT(t)
	require.NoError(t, r.Start(ctx))
	time.Sleep(30 * time.Millisecond)

	snap, err := r.Snapshot(ctx, uuid.Nil)
	require.NoError(t, err, "room keeps serving after a panic")
	assert.Equal(t, engine.PhaseTrumpDeclaration, snap.State.Phase)
}

func TestRoomStore(t *testing.T) {
	store := NewRoomStore()
	r, err := NewRoom(uuid.New(), BotSeats(), Config{Rules: fastRules(), Logger: quietLogger()})
	require.NoError(t, err)

	require.NoError(t, store.Add(r))
	assert.ErrorIs(t, store.Add(r), ErrRoomExists)
	got, ok := store.Get(r.ID)
	require.True(t, ok)
	assert.Same(t, r, got)
	assert.Equal(t, 1, store.Len())

	store.Delete(r.ID)
	_, ok = store.Get(r.ID)
	assert.False(t, ok)
	assert.ErrorIs(t, r.Start(ctxT(t)), ErrRoomClosed, "deleted rooms are closed")
}

func TestReconcilerDropsFinishedRooms(t *testing.T) {
	store := NewRoomStore()
	r, err := NewRoom(uuid.New(), BotSeats(), Config{Rules: fastRules(), Logger: quietLogger()})
	require.NoError(t, err)
	require.NoError(t, store.Add(r))
	require.NoError(t, r.Start(ctxT(t)))
	<-r.Finished()

	clock := newFakeClock()
	clock.now = time.Now()
	rc := &Reconciler{Store: store, Retention: time.Minute, Logger: quietLogger(), Clock: clock.Now}
	rc.Pass(ctxT(t))
	assert.Equal(t, 1, store.Len(), "within retention")

	clock.Advance(2 * time.Minute)
	rc.Pass(ctxT(t))
	assert.Zero(t, store.Len())
}
