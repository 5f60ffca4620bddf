package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atifkhan161/contract-crown-sub004/internal/engine"
)

// Version is the envelope version. Receivers reject any other value.
const Version = 1

type EventType string

const (
	EventTrumpDeclared = EventType(engine.EventTrumpDeclared)
	EventCardPlayed    = EventType(engine.EventCardPlayed)
	EventTrickWon      = EventType(engine.EventTrickWon)
	EventRoundScores   = EventType(engine.EventRoundScores)
	EventRoundComplete = EventType(engine.EventRoundComplete)
	EventNewRound      = EventType(engine.EventNewRound)
	EventGameComplete  = EventType(engine.EventGameComplete)
	EventPlayerStatus  = EventType(engine.EventPlayerStatus)
	// EventSyncState carries no payload, only a full state. It is sent on
	// join, on request and when the reconciler corrects drift.
	EventSyncState EventType = "sync_state"
)

var ErrUnsupportedVersion = errors.New("unsupported event version")

// Event is the canonical envelope. State is rendered for one recipient, so
// two observers of the same seq share everything but the private fields.
type Event struct {
	V       int             `json:"v"`
	Seq     uint64          `json:"seq"`
	RoomID  uuid.UUID       `json:"roomId"`
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	State   *State          `json:"state,omitempty"`
}

// SyncReason travels as the payload of sync_state.
type SyncReason struct {
	Reason string `json:"reason"`
}

// Build renders an engine event for viewer. Viewer may be uuid.Nil for a
// spectator view without any hand.
func Build(roomID uuid.UUID, seq uint64, ev engine.Event, viewer uuid.UUID) (Event, error) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", ev.Kind, err)
	}
	state := Render(ev.Snapshot, viewer)
	return Event{
		V:       Version,
		Seq:     seq,
		RoomID:  roomID,
		Type:    EventType(ev.Kind),
		Payload: payload,
		State:   &state,
	}, nil
}

// Sync builds a full-state correction at seq for viewer.
func Sync(roomID uuid.UUID, seq uint64, g *engine.Game, viewer uuid.UUID, reason string) Event {
	payload, _ := json.Marshal(SyncReason{Reason: reason})
	state := Render(g, viewer)
	return Event{
		V:       Version,
		Seq:     seq,
		RoomID:  roomID,
		Type:    EventSyncState,
		Payload: payload,
		State:   &state,
	}
}

func Encode(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

func Decode(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.V != Version {
		return Event{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, ev.V)
	}
	return ev, nil
}

// Record is the public log form of an event, without any per-player state.
// It is what the event sink publishes and the historian persists.
type Record struct {
	RoomID    uuid.UUID       `json:"roomId"`
	GameID    uuid.UUID       `json:"gameId"`
	Seq       uint64          `json:"seq"`
	Type      EventType       `json:"type"`
	ActorID   uuid.UUID       `json:"actorId"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

func NewRecord(roomID uuid.UUID, seq uint64, ev engine.Event, at time.Time) (Record, error) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return Record{}, fmt.Errorf("marshal %s payload: %w", ev.Kind, err)
	}
	var gameID uuid.UUID
	if ev.Snapshot != nil {
		gameID = ev.Snapshot.ID
	}
	return Record{
		RoomID:    roomID,
		GameID:    gameID,
		Seq:       seq,
		Type:      EventType(ev.Kind),
		ActorID:   ev.Actor,
		Payload:   payload,
		Timestamp: at.UnixMilli(),
	}, nil
}
