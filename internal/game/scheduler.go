package game

import (
	"sync"
	"time"
)

// schedule is the state of a room's single automatic-action slot.
type schedule interface{ isSchedule() }

type idle struct{}

type pending struct {
	id    uint64
	key   uint64
	timer *time.Timer
}

// stopped is terminal. Nothing can be scheduled after Close.
type stopped struct{}

func (idle) isSchedule()    {}
func (pending) isSchedule() {}
func (stopped) isSchedule() {}

// Scheduler holds at most one pending automatic action for a room. Tasks
// are keyed by the game version they were armed for.
type Scheduler struct {
	mu    sync.Mutex
	state schedule
	ids   uint64
}

func NewScheduler() *Scheduler {
	return &Scheduler{state: idle{}}
}

// Schedule arms fn to run after delay. Arming the key that is already
// pending is a no-op; any other pending task is cancelled first. It reports
// whether a new timer was created.
func (s *Scheduler) Schedule(key uint64, delay time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch cur := s.state.(type) {
	case stopped:
		return false
	case pending:
		if cur.key == key {
			return false
		}
		cur.timer.Stop()
	}

	s.ids++
	id := s.ids
	timer := time.AfterFunc(delay, func() {
		if s.take(id) {
			fn()
		}
	})
	s.state = pending{id: id, key: key, timer: timer}
	return true
}

// take moves the slot back to idle if task id is still the pending one.
func (s *Scheduler) take(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.state.(pending)
	if !ok || cur.id != id {
		return false
	}
	s.state = idle{}
	return true
}

// Cancel drops the pending task, if any.
func (s *Scheduler) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.state.(pending)
	if !ok {
		return false
	}
	cur.timer.Stop()
	s.state = idle{}
	return true
}

// Pending returns the key of the pending task.
func (s *Scheduler) Pending() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.state.(pending)
	return cur.key, ok
}

// Close cancels any pending task and refuses new ones.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.state.(pending); ok {
		cur.timer.Stop()
	}
	s.state = stopped{}
}
