package game

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atifkhan161/contract-crown-sub004/internal/protocol"
)

// DefaultObserverBuffer is the per-observer queue length.
const DefaultObserverBuffer = 64

// Observer is one delivery stream of a room, usually one websocket. The
// room enqueues rendered events; the transport drains Events and confirms
// each write with Delivered, which feeds the server-side projection the
// reconciler checks.
type Observer struct {
	ID       uuid.UUID
	PlayerID uuid.UUID

	out chan protocol.Event

	mu       sync.Mutex
	proj     *protocol.Projection
	sentSeq  uint64
	dropped  bool
	lastSeen time.Time
	ackSeq   uint64
	// what the previous reconcile pass saw, to tell slow from stuck
	passDelivered uint64
	passSent      uint64
	passAck       uint64
}

func newObserver(roomID, playerID uuid.UUID, buffer int, now time.Time) *Observer {
	if buffer <= 0 {
		buffer = DefaultObserverBuffer
	}
	return &Observer{
		ID:       uuid.New(),
		PlayerID: playerID,
		out:      make(chan protocol.Event, buffer),
		proj:     protocol.NewProjection(roomID),
		lastSeen: now,
	}
}

// Events is closed when the observer leaves the room or the room closes.
func (o *Observer) Events() <-chan protocol.Event {
	return o.out
}

// Delivered records that ev reached the client.
func (o *Observer) Delivered(ev protocol.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	// Apply only fails on malformed events, which the room never builds.
	_, _ = o.proj.Apply(ev)
}

// Heartbeat marks the observer alive and records the last seq the client
// says it applied.
func (o *Observer) Heartbeat(ackSeq uint64, now time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastSeen = now
	if ackSeq > o.ackSeq {
		o.ackSeq = ackSeq
	}
}

// DeliveredSeq is the seq of the last event confirmed by the transport.
func (o *Observer) DeliveredSeq() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.proj.Seq
}

// enqueue never blocks. A full queue drops the event and flags the
// observer for correction.
func (o *Observer) enqueue(ev protocol.Event) bool {
	select {
	case o.out <- ev:
		o.mu.Lock()
		o.sentSeq = ev.Seq
		o.mu.Unlock()
		return true
	default:
		o.mu.Lock()
		o.dropped = true
		o.mu.Unlock()
		return false
	}
}

// forceSync empties the queue and replaces it with a single correction.
func (o *Observer) forceSync(ev protocol.Event) {
drain:
	for {
		select {
		case <-o.out:
		default:
			break drain
		}
	}
	o.mu.Lock()
	o.dropped = false
	o.mu.Unlock()
	o.enqueue(ev)
}

// stale reports whether no heartbeat arrived within timeout.
func (o *Observer) stale(now time.Time, timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return now.Sub(o.lastSeen) > timeout
}

// drifted decides whether the observer needs a full correction against the
// authoritative view want. Events still in flight are given one pass to
// drain before they count as stuck.
func (o *Observer) drifted(want *protocol.State) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	delivered := o.proj.Seq
	prevDelivered, prevSent, prevAck := o.passDelivered, o.passSent, o.passAck
	o.passDelivered, o.passSent, o.passAck = delivered, o.sentSeq, o.ackSeq

	if o.dropped {
		return true
	}
	if delivered < o.sentSeq {
		return prevSent > prevDelivered && delivered == prevDelivered
	}
	if !protocol.Equal(o.proj.State, want) {
		return true
	}
	// The transport delivered everything but the client keeps acking an
	// older seq: it lost something after the socket.
	return o.ackSeq != 0 && o.ackSeq < delivered && o.ackSeq == prevAck && delivered == prevDelivered
}
