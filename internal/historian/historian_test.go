// internal/historian/historian_test.go
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atifkhan161/contract-crown-sub004/internal/protocol"
)

type memStore struct {
	mu        sync.Mutex
	fail      bool
	batches   [][]protocol.Record
	abandoned []uuid.UUID
}

func (m *memStore) InsertEvents(_ context.Context, recs []protocol.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("db down")
	}
	m.batches = append(m.batches, append([]protocol.Record(nil), recs...))
	return nil
}

func (m *memStore) MarkAbandoned(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.abandoned = append(m.abandoned, id)
	return nil
}

func (m *memStore) stored() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

// chanSource hands out records pushed onto its channel.
type chanSource chan protocol.Record

func (c chanSource) Pop(ctx context.Context, timeout time.Duration) (protocol.Record, bool, error) {
	select {
	case rec := <-c:
		return rec, true, nil
	case <-time.After(timeout):
		return protocol.Record{}, false, nil
	case <-ctx.Done():
		return protocol.Record{}, false, ctx.Err()
	}
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func record(gameID uuid.UUID, seq uint64, typ protocol.EventType) protocol.Record {
	return protocol.Record{
		RoomID:    uuid.New(),
		GameID:    gameID,
		Seq:       seq,
		Type:      typ,
		Payload:   json.RawMessage(`{}`),
		Timestamp: time.Now().UnixMilli(),
	}
}

func TestFlushOnFullBatch(t *testing.T) {
	store := &memStore{}
	s := New(nil, store, Config{BatchSize: 3}, quietLogger())
	ctx := context.Background()
	id := uuid.New()

	s.Add(ctx, record(id, 1, protocol.EventNewRound))
	s.Add(ctx, record(id, 2, protocol.EventTrumpDeclared))
	assert.Equal(t, 0, store.stored())

	s.Add(ctx, record(id, 3, protocol.EventCardPlayed))
	assert.Equal(t, 3, store.stored())
	require.Len(t, store.batches, 1)
}

func TestFailedFlushIsRetried(t *testing.T) {
	store := &memStore{fail: true}
	s := New(nil, store, Config{BatchSize: 10}, quietLogger())
	ctx := context.Background()
	id := uuid.New()

	s.Add(ctx, record(id, 1, protocol.EventNewRound))
	s.Flush(ctx)
	assert.Equal(t, 0, store.stored())

	store.mu.Lock()
	store.fail = false
	store.mu.Unlock()
	s.Add(ctx, record(id, 2, protocol.EventTrumpDeclared))
	s.Flush(ctx)

	require.Len(t, store.batches, 1)
	assert.Equal(t, []uint64{1, 2}, []uint64{store.batches[0][0].Seq, store.batches[0][1].Seq})
}

func TestSweepMarksSilentGamesAbandoned(t *testing.T) {
	store := &memStore{}
	s := New(nil, store, Config{BatchSize: 10, Inactivity: time.Minute}, quietLogger())
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	silent, finished, active := uuid.New(), uuid.New(), uuid.New()
	s.Add(ctx, record(silent, 1, protocol.EventNewRound))
	s.Add(ctx, record(finished, 1, protocol.EventNewRound))
	s.Add(ctx, record(finished, 2, protocol.EventGameComplete))

	now = now.Add(2 * time.Minute)
	s.Add(ctx, record(active, 1, protocol.EventNewRound))
	s.Sweep(ctx)

	assert.Equal(t, []uuid.UUID{silent}, store.abandoned)
	assert.Equal(t, 1, s.Tracked())
	// the pending batch was flushed before the game was closed
	assert.Equal(t, 4, store.stored())
}

func TestRunDrainsSourceAndFlushesOnStop(t *testing.T) {
	store := &memStore{}
	src := make(chanSource, 8)
	s := New(src, store, Config{BatchSize: 100, FlushDelay: time.Hour, PopTimeout: 20 * time.Millisecond}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	id := uuid.New()
	for seq := uint64(1); seq <= 5; seq++ {
		src <- record(id, seq, protocol.EventCardPlayed)
	}
	require.Eventually(t, func() bool {
		s.batchMu.Lock()
		defer s.batchMu.Unlock()
		return len(s.batch) == 5
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, s.Tracked())

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 5, store.stored())
}
