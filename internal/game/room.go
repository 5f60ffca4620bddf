package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/atifkhan161/contract-crown-sub004/internal/bot"
	"github.com/atifkhan161/contract-crown-sub004/internal/engine"
	"github.com/atifkhan161/contract-crown-sub004/internal/models"
	"github.com/atifkhan161/contract-crown-sub004/internal/protocol"
)

var (
	ErrRoomClosed   = errors.New("room closed")
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already running")
	// ErrInternal is reported when the pipeline recovered from a panic.
	ErrInternal = errors.New("internal error")
)

const (
	DefaultLogSize = 512
	recordBuffer   = 256
	sinkTimeout    = 3 * time.Second
	resultTimeout  = 10 * time.Second
)

type Config struct {
	Rules             models.RoomRules
	Policy            bot.Policy
	Adjuster          engine.RoundAdjuster
	FirstDeclarerSeat int
	// GameID is generated when left empty.
	GameID uuid.UUID
	// Seed drives dealing and bot think times. Zero picks a time-based seed.
	Seed int64

	Events  EventSink
	Results ResultSink
	Logger  *logrus.Entry

	LogSize        int
	ObserverBuffer int
	Clock          func() time.Time
}

type logEntry struct {
	seq uint64
	ev  engine.Event
}

type request struct {
	fn    func() error
	reply chan error
}

// Room owns one game. Every mutation, whichever path it comes from, runs on
// the room goroutine in submission order.
type Room struct {
	ID uuid.UUID

	cfg    Config
	rules  models.RoomRules
	policy bot.Policy
	logger *logrus.Entry
	clock  func() time.Time

	// owned by the room goroutine
	game      *engine.Game
	deal      *rand.Rand
	think     *rand.Rand
	seq       uint64
	log       []logEntry
	observers map[uuid.UUID]*Observer
	startedAt time.Time

	sched    *Scheduler
	records  chan protocol.Record
	requests chan request
	quit     chan struct{}
	done     chan struct{}
	once     sync.Once

	finished   chan struct{}
	finishedAt atomic.Int64
}

func NewRoom(id uuid.UUID, players []engine.Player, cfg Config) (*Room, error) {
	g, err := engine.NewGame(players, engine.Options{
		ID:                cfg.GameID,
		WinThreshold:      cfg.Rules.WinThreshold,
		FirstDeclarerSeat: cfg.FirstDeclarerSeat,
		Adjuster:          cfg.Adjuster,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Policy == nil {
		cfg.Policy = bot.LowestCard{}
	}
	if cfg.LogSize <= 0 {
		cfg.LogSize = DefaultLogSize
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	r := &Room{
		ID:        id,
		cfg:       cfg,
		rules:     cfg.Rules,
		policy:    cfg.Policy,
		logger:    logger.WithFields(logrus.Fields{"room_id": id, "game_id": g.ID}),
		clock:     cfg.Clock,
		game:      g,
		deal:      rand.New(rand.NewSource(cfg.Seed)),
		think:     rand.New(rand.NewSource(cfg.Seed + 1)),
		observers: make(map[uuid.UUID]*Observer),
		sched:     NewScheduler(),
		requests:  make(chan request),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
	}
	if cfg.Events != nil {
		r.records = make(chan protocol.Record, recordBuffer)
		go r.recordLoop(cfg.Events)
	}
	go r.loop()
	return r, nil
}

func (r *Room) loop() {
	defer close(r.done)
	for {
		select {
		case req := <-r.requests:
			req.reply <- r.run(req.fn)
		case <-r.quit:
			r.shutdown()
			return
		}
	}
}

func (r *Room) run(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.WithField("panic", p).Errorf("room pipeline recovered\n%s", debug.Stack())
			err = ErrInternal
		}
	}()
	return fn()
}

func (r *Room) shutdown() {
	r.sched.Close()
	for id, o := range r.observers {
		close(o.out)
		delete(r.observers, id)
	}
	if r.records != nil {
		close(r.records)
	}
	r.logger.Info("room closed")
}

// do runs fn on the room goroutine and waits for its result.
func (r *Room) do(ctx context.Context, fn func() error) error {
	req := request{fn: fn, reply: make(chan error, 1)}
	select {
	case r.requests <- req:
	case <-r.quit:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels any scheduled action, closes every observer stream and
// stops the room goroutine.
func (r *Room) Close() {
	r.once.Do(func() {
		r.sched.Close()
		close(r.quit)
	})
	<-r.done
}

// Finished is closed when the game reaches the complete phase.
func (r *Room) Finished() <-chan struct{} {
	return r.finished
}

// FinishedAt reports when the game completed.
func (r *Room) FinishedAt() (time.Time, bool) {
	ns := r.finishedAt.Load()
	if ns == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, ns), true
}

// Start deals the first round.
func (r *Room) Start(ctx context.Context) error {
	return r.do(ctx, func() error {
		events, err := r.game.Start(r.deal)
		if err != nil {
			return err
		}
		r.startedAt = r.clock()
		r.logger.Info("game started")
		r.publish(events)
		r.settle()
		return nil
	})
}

// Submit applies a player action. Rejections are returned to the caller
// only and nothing is broadcast.
func (r *Room) Submit(ctx context.Context, action models.PlayerAction) error {
	if err := action.Validate(); err != nil {
		return err
	}
	return r.do(ctx, func() error {
		return r.apply(action)
	})
}

// Join attaches a new observer for a seated player. A client that already
// holds events up to since gets the missing tail if the log still has it,
// anything else gets a full sync_state.
func (r *Room) Join(ctx context.Context, playerID uuid.UUID, since uint64) (*Observer, error) {
	var o *Observer
	err := r.do(ctx, func() error {
		if _, ok := r.game.SeatOf(playerID); !ok {
			return fmt.Errorf("%w: %s", engine.ErrUnknownPlayer, playerID)
		}
		o = newObserver(r.ID, playerID, r.cfg.ObserverBuffer, r.clock())
		r.observers[o.ID] = o
		r.catchUp(o, since)
		r.logger.WithFields(logrus.Fields{"player_id": playerID, "observer_id": o.ID, "since": since}).Info("observer joined")
		r.setConnected(playerID, true)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Leave detaches the observer and closes its stream. The player is marked
// disconnected once their last observer is gone.
func (r *Room) Leave(ctx context.Context, o *Observer) error {
	return r.do(ctx, func() error {
		r.detach(o)
		return nil
	})
}

// Heartbeat records client liveness without going through the pipeline.
func (r *Room) Heartbeat(o *Observer, ackSeq uint64) {
	o.Heartbeat(ackSeq, r.clock())
}

// Resync replaces whatever is queued for o with a full sync_state.
func (r *Room) Resync(ctx context.Context, o *Observer) error {
	return r.do(ctx, func() error {
		if _, ok := r.observers[o.ID]; !ok {
			return ErrRoomClosed
		}
		o.forceSync(protocol.Sync(r.ID, r.seq, r.game, o.PlayerID, "request"))
		return nil
	})
}

// Snapshot renders the current state for viewer as a sync_state event.
// uuid.Nil gives the public view.
func (r *Room) Snapshot(ctx context.Context, viewer uuid.UUID) (protocol.Event, error) {
	var ev protocol.Event
	err := r.do(ctx, func() error {
		if err := r.checkViewer(viewer); err != nil {
			return err
		}
		ev = protocol.Sync(r.ID, r.seq, r.game, viewer, "snapshot")
		return nil
	})
	return ev, err
}

// EventsSince returns the logged events after since rendered for viewer.
// If the log no longer reaches back that far a single sync_state is
// returned instead.
func (r *Room) EventsSince(ctx context.Context, viewer uuid.UUID, since uint64) ([]protocol.Event, error) {
	var out []protocol.Event
	err := r.do(ctx, func() error {
		if err := r.checkViewer(viewer); err != nil {
			return err
		}
		tail, ok := r.tail(since)
		if !ok {
			out = []protocol.Event{protocol.Sync(r.ID, r.seq, r.game, viewer, "gap")}
			return nil
		}
		out = make([]protocol.Event, 0, len(tail))
		for _, e := range tail {
			ev, err := protocol.Build(r.ID, e.seq, e.ev, viewer)
			if err != nil {
				return err
			}
			out = append(out, ev)
		}
		return nil
	})
	return out, err
}

// Reconcile is one pass of liveness and drift checking. Observers that
// missed their heartbeat are detached; observers whose delivered view
// disagrees with the game get a forced sync_state. It returns how many
// observers were corrected.
func (r *Room) Reconcile(ctx context.Context) (int, error) {
	corrected := 0
	err := r.do(ctx, func() error {
		now := r.clock()
		for _, o := range r.observers {
			if o.stale(now, r.rules.HeartbeatTimeout) {
				r.logger.WithFields(logrus.Fields{"player_id": o.PlayerID, "observer_id": o.ID}).Info("observer missed heartbeat")
				r.detach(o)
				continue
			}
			want := protocol.Render(r.game, o.PlayerID)
			if o.drifted(&want) {
				o.forceSync(protocol.Sync(r.ID, r.seq, r.game, o.PlayerID, "reconcile"))
				corrected++
			}
		}
		if r.game.Phase != engine.PhaseWaiting && r.game.Phase != engine.PhaseComplete {
			r.settle()
		}
		return nil
	})
	if corrected > 0 {
		r.logger.WithField("corrected", corrected).Debug("reconcile pass")
	}
	return corrected, err
}

// Result returns the final record once the game is complete.
func (r *Room) Result(ctx context.Context) (GameRecord, bool, error) {
	var (
		rec  GameRecord
		done bool
	)
	err := r.do(ctx, func() error {
		if r.game.Phase != engine.PhaseComplete {
			return nil
		}
		rec, done = r.record(), true
		return nil
	})
	return rec, done, err
}

func (r *Room) apply(a models.PlayerAction) error {
	var (
		events []engine.Event
		err    error
	)
	switch a.Type {
	case models.ActionDeclareTrump:
		events, err = r.game.DeclareTrump(a.PlayerID, a.Suit)
	case models.ActionPlayCard:
		events, err = r.game.PlayCard(a.PlayerID, *a.Card)
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	if err != nil {
		return err
	}
	r.publish(events)
	r.settle()
	return nil
}

// settle arms the automatic action the current state calls for, or clears
// the slot when nothing should happen on its own.
func (r *Room) settle() {
	g := r.game
	switch g.Phase {
	case engine.PhaseComplete:
		r.sched.Cancel()
		r.finish()
	case engine.PhaseRoundEnd:
		r.arm(r.rules.RoundPause, r.nextRound)
	case engine.PhaseTrumpDeclaration, engine.PhasePlaying:
		p, _ := g.TurnPlayer()
		delay, ok := r.autoDelay(p)
		if !ok {
			r.sched.Cancel()
			return
		}
		id := p.ID
		r.arm(delay, func() error { return r.autoAct(id) })
	default:
		r.sched.Cancel()
	}
}

// arm schedules task for the current game version. When it fires it goes
// through the pipeline like any submission and is dropped if the game has
// moved on.
func (r *Room) arm(delay time.Duration, task func() error) {
	version := r.game.Version
	r.sched.Schedule(version, delay, func() {
		err := r.do(context.Background(), func() error {
			if r.game.Version != version {
				r.logger.WithField("version", version).Debug("dropping stale scheduled action")
				return nil
			}
			return task()
		})
		if err != nil && !errors.Is(err, ErrRoomClosed) {
			r.logger.WithError(err).Warn("scheduled action failed")
		}
	})
}

func (r *Room) autoDelay(p engine.Player) (time.Duration, bool) {
	switch {
	case p.IsBot:
		d := r.rules.BotDelayMin
		if span := r.rules.BotDelaySpan(); span > 0 {
			d += time.Duration(r.think.Int63n(int64(span) + 1))
		}
		return d, true
	case !p.Connected && r.rules.TakeoverDelay > 0:
		return r.rules.TakeoverDelay, true
	case r.rules.TurnTimeout > 0:
		return r.rules.TurnTimeout, true
	}
	return 0, false
}

// autoAct plays for the turn holder using the room policy.
func (r *Room) autoAct(playerID uuid.UUID) error {
	p, ok := r.game.TurnPlayer()
	if !ok || p.ID != playerID {
		return nil
	}
	action, err := r.policy.Decide(r.game, p)
	if err != nil {
		return err
	}
	r.logger.WithFields(logrus.Fields{
		"player_id": p.ID,
		"action":    action.Type,
		"bot":       p.IsBot,
		"version":   r.game.Version,
	}).Debug("automatic action")
	return r.apply(action)
}

func (r *Room) nextRound() error {
	events, err := r.game.NextRound(r.deal)
	if err != nil {
		return err
	}
	r.publish(events)
	r.settle()
	return nil
}

// publish appends events to the log and fans them out in order.
func (r *Room) publish(events []engine.Event) {
	now := r.clock()
	for _, ev := range events {
		r.seq++
		entry := logEntry{seq: r.seq, ev: ev}
		r.appendLog(entry)
		for _, o := range r.observers {
			out, err := protocol.Build(r.ID, entry.seq, ev, o.PlayerID)
			if err != nil {
				r.logger.WithError(err).Error("render event")
				continue
			}
			if !o.enqueue(out) {
				r.logger.WithFields(logrus.Fields{"observer_id": o.ID, "seq": entry.seq}).Warn("observer queue full, event dropped")
			}
		}
		r.emit(entry, now)
	}
}

func (r *Room) emit(entry logEntry, at time.Time) {
	if r.records == nil {
		return
	}
	rec, err := protocol.NewRecord(r.ID, entry.seq, entry.ev, at)
	if err != nil {
		r.logger.WithError(err).Error("build event record")
		return
	}
	select {
	case r.records <- rec:
	default:
		r.logger.WithField("seq", entry.seq).Warn("event sink backlog full, record dropped")
	}
}

func (r *Room) recordLoop(sink EventSink) {
	for rec := range r.records {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		if err := sink.PublishEvent(ctx, rec); err != nil {
			r.logger.WithError(err).WithField("seq", rec.Seq).Warn("publish event")
		}
		cancel()
	}
}

func (r *Room) appendLog(entry logEntry) {
	r.log = append(r.log, entry)
	if len(r.log) >= 2*r.cfg.LogSize {
		r.log = append([]logEntry(nil), r.log[len(r.log)-r.cfg.LogSize:]...)
	}
}

// tail returns the log entries after since, or false if some of them are
// no longer held.
func (r *Room) tail(since uint64) ([]logEntry, bool) {
	if since > r.seq {
		return nil, false
	}
	if since == r.seq {
		return nil, true
	}
	if len(r.log) == 0 || since+1 < r.log[0].seq {
		return nil, false
	}
	return r.log[since+1-r.log[0].seq:], true
}

func (r *Room) catchUp(o *Observer, since uint64) {
	if since > 0 {
		tail, ok := r.tail(since)
		if ok && len(tail) > 0 && len(tail) < cap(o.out) {
			for _, e := range tail {
				ev, err := protocol.Build(r.ID, e.seq, e.ev, o.PlayerID)
				if err != nil {
					break
				}
				o.enqueue(ev)
			}
			return
		}
	}
	o.enqueue(protocol.Sync(r.ID, r.seq, r.game, o.PlayerID, "join"))
}

func (r *Room) detach(o *Observer) {
	if _, ok := r.observers[o.ID]; !ok {
		return
	}
	delete(r.observers, o.ID)
	close(o.out)
	r.logger.WithFields(logrus.Fields{"player_id": o.PlayerID, "observer_id": o.ID}).Info("observer detached")
	for _, other := range r.observers {
		if other.PlayerID == o.PlayerID {
			return
		}
	}
	r.setConnected(o.PlayerID, false)
}

func (r *Room) setConnected(playerID uuid.UUID, connected bool) {
	events, err := r.game.SetConnected(playerID, connected)
	if err != nil {
		r.logger.WithError(err).Warn("set connected")
		return
	}
	if len(events) > 0 {
		r.publish(events)
		r.settle()
	}
}

func (r *Room) checkViewer(viewer uuid.UUID) error {
	if viewer == uuid.Nil {
		return nil
	}
	if _, ok := r.game.SeatOf(viewer); !ok {
		return fmt.Errorf("%w: %s", engine.ErrUnknownPlayer, viewer)
	}
	return nil
}

func (r *Room) finish() {
	if r.finishedAt.Load() != 0 {
		return
	}
	now := r.clock()
	r.finishedAt.Store(now.UnixNano())
	close(r.finished)

	g := r.game
	r.logger.WithFields(logrus.Fields{
		"winning_team": g.Winner,
		"team1":        g.Scores.Team1,
		"team2":        g.Scores.Team2,
		"rounds":       len(g.History),
	}).Info("game complete")

	if r.cfg.Results == nil {
		return
	}
	rec := r.record()
	sink := r.cfg.Results
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), resultTimeout)
		defer cancel()
		if err := sink.RecordGame(ctx, rec); err != nil {
			r.logger.WithError(err).Error("record game result")
		}
	}()
}

func (r *Room) record() GameRecord {
	g := r.game
	finished, _ := r.FinishedAt()
	return GameRecord{
		GameID:      g.ID,
		RoomID:      r.ID,
		Players:     append([]engine.Player(nil), g.Players[:]...),
		Rounds:      append([]engine.RoundRecord(nil), g.History...),
		FinalScore:  g.Scores,
		WinningTeam: g.Winner,
		StartedAt:   r.startedAt,
		FinishedAt:  finished,
	}
}
