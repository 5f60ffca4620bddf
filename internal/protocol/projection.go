package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/atifkhan161/contract-crown-sub004/internal/engine"
)

var (
	ErrWrongRoom    = errors.New("event for another room")
	ErrMissingState = errors.New("event carries no state")
)

type playKey struct {
	player uuid.UUID
	card   engine.Card
	trick  int
}

// Projection is an observer's read-only view of a room, rebuilt only from
// applied events. Apply is total over the event vocabulary and idempotent.
type Projection struct {
	RoomID uuid.UUID
	Seq    uint64
	State  *State
	// Gaps counts events that arrived after one or more were missed. Each
	// gap is healed by the embedded state of the event that revealed it.
	Gaps int
	// Outcome is set once game_complete has been applied.
	Outcome *engine.GameComplete

	seen map[playKey]struct{}
}

func NewProjection(roomID uuid.UUID) *Projection {
	return &Projection{RoomID: roomID, seen: make(map[playKey]struct{})}
}

type applier func(p *Projection, payload json.RawMessage) (duplicate bool, err error)

var appliers = map[EventType]applier{
	EventTrumpDeclared: decodeOnly[engine.TrumpDeclared],
	EventCardPlayed:    applyCardPlayed,
	EventTrickWon:      decodeOnly[engine.TrickWon],
	EventRoundScores:   decodeOnly[engine.RoundScores],
	EventRoundComplete: decodeOnly[engine.RoundComplete],
	EventNewRound:      applyNewRound,
	EventGameComplete:  applyGameComplete,
	EventPlayerStatus:  decodeOnly[engine.PlayerStatus],
	EventSyncState:     applySync,
}

// Apply folds ev into the projection. It reports whether the projection
// changed; duplicates and stale events are ignored without error.
func (p *Projection) Apply(ev Event) (bool, error) {
	if ev.V != Version {
		return false, fmt.Errorf("%w: %d", ErrUnsupportedVersion, ev.V)
	}
	if p.RoomID != uuid.Nil && ev.RoomID != p.RoomID {
		return false, fmt.Errorf("%w: %s", ErrWrongRoom, ev.RoomID)
	}
	apply, ok := appliers[ev.Type]
	if !ok {
		return false, fmt.Errorf("unknown event type %q", ev.Type)
	}
	if ev.State == nil {
		return false, fmt.Errorf("%w: %s #%d", ErrMissingState, ev.Type, ev.Seq)
	}

	// A sync at the current seq still replaces the state: it is a
	// correction of what was delivered at that seq.
	if ev.Type == EventSyncState {
		if ev.Seq < p.Seq {
			return false, nil
		}
	} else if ev.Seq <= p.Seq {
		return false, nil
	}

	duplicate, err := apply(p, ev.Payload)
	if err != nil {
		return false, fmt.Errorf("apply %s #%d: %w", ev.Type, ev.Seq, err)
	}
	if duplicate {
		return false, nil
	}
	if ev.Type != EventSyncState && p.Seq != 0 && ev.Seq > p.Seq+1 {
		p.Gaps++
	}
	p.Seq = ev.Seq
	p.State = ev.State
	if ev.Type == EventSyncState {
		p.reseed(ev.State)
	}
	return true, nil
}

func decodeOnly[T any](_ *Projection, payload json.RawMessage) (bool, error) {
	var v T
	return false, json.Unmarshal(payload, &v)
}

func applyCardPlayed(p *Projection, payload json.RawMessage) (bool, error) {
	var cp engine.CardPlayed
	if err := json.Unmarshal(payload, &cp); err != nil {
		return false, err
	}
	key := playKey{player: cp.PlayerID, card: cp.Card, trick: cp.TrickNumber}
	if _, dup := p.seen[key]; dup {
		return true, nil
	}
	p.seen[key] = struct{}{}
	return false, nil
}

func applyNewRound(p *Projection, payload json.RawMessage) (bool, error) {
	var nr engine.NewRound
	if err := json.Unmarshal(payload, &nr); err != nil {
		return false, err
	}
	p.seen = make(map[playKey]struct{})
	p.Outcome = nil
	return false, nil
}

func applyGameComplete(p *Projection, payload json.RawMessage) (bool, error) {
	var gc engine.GameComplete
	if err := json.Unmarshal(payload, &gc); err != nil {
		return false, err
	}
	p.Outcome = &gc
	return false, nil
}

func applySync(p *Projection, payload json.RawMessage) (bool, error) {
	if len(payload) > 0 {
		var r SyncReason
		if err := json.Unmarshal(payload, &r); err != nil {
			return false, err
		}
	}
	return false, nil
}

// reseed rebuilds the seen set from the plays visible in a full state so a
// late duplicate of one of them is still recognised after a sync.
func (p *Projection) reseed(s *State) {
	p.seen = make(map[playKey]struct{})
	p.Outcome = nil
	if s.Phase == engine.PhaseComplete {
		p.Outcome = &engine.GameComplete{WinningTeam: s.WinningTeam, FinalScore: s.Scores}
	}
	if s.Trick == nil {
		return
	}
	for _, play := range s.Trick.Plays {
		p.seen[playKey{player: play.PlayerID, card: play.Card, trick: s.Trick.Number}] = struct{}{}
	}
}
