package core

import (
	"sync"

	"github.com/maxklim/huddle/internal/domain"
)

// Registry maps room ids to live rooms. It only guards its own map;
// membership mutation is serialized per room by the coordinator. A missing
// room is absence, never an error.
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[domain.RoomID]*Room)}
}

func (r *Registry) Get(id domain.RoomID) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	return room, ok
}

func (r *Registry) GetOrCreate(id domain.RoomID) *Room {
	r.mu.RLock()
	room, ok := r.rooms[id]
	r.mu.RUnlock()
	if ok {
		return room
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok = r.rooms[id]; ok {
		return room
	}
	room = NewRoom(id)
	r.rooms[id] = room
	return room
}

func (r *Registry) Remove(id domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, id)
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Registry) List() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RoomInfo, 0, len(r.rooms))
	for id, room := range r.rooms {
		out = append(out, RoomInfo{ID: id, MemberCount: room.Len()})
	}
	return out
}
