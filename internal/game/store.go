package game

import (
	"sync"

	"github.com/google/uuid"
)

// RoomStore indexes the running rooms by room id.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]*Room
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[uuid.UUID]*Room),
	}
}

// Add registers a room. It fails if a room with the same id is running.
func (s *RoomStore) Add(room *Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rooms[room.ID]; exists {
		return ErrRoomExists
	}
	s.rooms[room.ID] = room
	return nil
}

func (s *RoomStore) Get(id uuid.UUID) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, exists := s.rooms[id]
	return r, exists
}

// Delete removes the room and closes it.
func (s *RoomStore) Delete(id uuid.UUID) {
	s.mu.Lock()
	r, exists := s.rooms[id]
	delete(s.rooms, id)
	s.mu.Unlock()
	if exists {
		r.Close()
	}
}

// Rooms returns the running rooms in no particular order.
func (s *RoomStore) Rooms() []*Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	return out
}

func (s *RoomStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// CloseAll closes and forgets every room.
func (s *RoomStore) CloseAll() {
	s.mu.Lock()
	rooms := s.rooms
	s.rooms = make(map[uuid.UUID]*Room)
	s.mu.Unlock()
	for _, r := range rooms {
		r.Close()
	}
}
