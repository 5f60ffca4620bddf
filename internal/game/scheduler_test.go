package game

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduleSameKeyIsNoop(t *testing.T) {
	s := NewScheduler()
	var fired atomic.Int32

	assert.True(t, s.Schedule(1, 20*time.Millisecond, func() { fired.Add(1) }))
	assert.False(t, s.Schedule(1, 20*time.Millisecond, func() { fired.Add(1) }), "re-arming the pending key")

	key, ok := s.Pending()
	assert.True(t, ok)
	assert.Equal(t, uint64(1), key)

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())

	_, ok = s.Pending()
	assert.False(t, ok, "slot is idle after firing")
}

func TestScheduleNewKeyCancelsPending(t *testing.T) {
	s := NewScheduler()
	var first, second atomic.Int32

	s.Schedule(1, 30*time.Millisecond, func() { first.Add(1) })
	assert.True(t, s.Schedule(2, 30*time.Millisecond, func() { second.Add(1) }))

	assert.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, first.Load(), "superseded task never runs")
}

func TestScheduleCancelAndClose(t *testing.T) {
	s := NewScheduler()
	var fired atomic.Int32

	s.Schedule(1, 20*time.Millisecond, func() { fired.Add(1) })
	assert.True(t, s.Cancel())
	assert.False(t, s.Cancel())

	s.Schedule(2, 20*time.Millisecond, func() { fired.Add(1) })
	s.Close()
	assert.False(t, s.Schedule(3, 0, func() { fired.Add(1) }), "closed scheduler refuses work")

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, fired.Load())
	_, ok := s.Pending()
	assert.False(t, ok)
}

func TestScheduleZeroDelay(t *testing.T) {
	s := NewScheduler()
	done := make(chan struct{})
	s.Schedule(9, 0, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("zero-delay task did not run")
	}
}
