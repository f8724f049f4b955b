package ws

import (
	"sync"

	"github.com/google/uuid"
	"github.com/vedran77/chorus/internal/metrics"
)

// Registry maps rooms to the connections subscribed to them. It is safe
// for concurrent use; the hub reads it while client goroutines mutate it.
type Registry struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]map[uuid.UUID]*Client  // room → conn id → client
	conns map[uuid.UUID]map[uuid.UUID]struct{} // conn id → rooms
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[uuid.UUID]map[uuid.UUID]*Client),
		conns: make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

// Subscribe adds c to roomID. It reports false if c was already subscribed.
func (r *Registry) Subscribe(c *Client, roomID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[uuid.UUID]*Client)
		r.rooms[roomID] = members
	}
	if _, ok := members[c.id]; ok {
		return false
	}
	members[c.id] = c

	rooms, ok := r.conns[c.id]
	if !ok {
		rooms = make(map[uuid.UUID]struct{})
		r.conns[c.id] = rooms
	}
	rooms[roomID] = struct{}{}
	metrics.WSSubscriptions.Inc()
	return true
}

// Unsubscribe removes one subscription. Frames of roomID already queued
// for the connection are discarded by its write pump, so none is written
// after the room.unsubscribed ack that follows this call.
func (r *Registry) Unsubscribe(connID, roomID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unsubscribeLocked(connID, roomID)
}

func (r *Registry) unsubscribeLocked(connID, roomID uuid.UUID) bool {
	members, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok := members[connID]; !ok {
		return false
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
	if rooms, ok := r.conns[connID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.conns, connID)
		}
	}
	metrics.WSSubscriptions.Dec()
	return true
}

// RemoveConnection drops every subscription of connID and returns how many there were.
func (r *Registry) RemoveConnection(connID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for roomID := range r.conns[connID] {
		if r.unsubscribeLocked(connID, roomID) {
			n++
		}
	}
	return n
}

// MembersOf returns a snapshot of the clients subscribed to roomID.
func (r *Registry) MembersOf(roomID uuid.UUID) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[roomID]
	out := make([]*Client, 0, len(members))
	for _, c := range members {
		out = append(out, c)
	}
	return out
}

func (r *Registry) IsSubscribed(connID, roomID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[connID][roomID]
	return ok
}

// Rooms lists the rooms connID is subscribed to.
func (r *Registry) Rooms(connID uuid.UUID) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]uuid.UUID, 0, len(r.conns[connID]))
	for roomID := range r.conns[connID] {
		out = append(out, roomID)
	}
	return out
}
