// Package reconcile merges realtime events and fetched history into one
// consistent per-room view on the client side. Duplicated, late or
// reordered events are harmless: a message only changes when a newer
// version of it arrives.
package reconcile

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/vedran77/chorus/internal/domain"
)

type room struct {
	byID    map[uuid.UUID]domain.Message
	ordered []uuid.UUID // by sequence
	last    int64
}

type Cache struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]*room
}

func NewCache() *Cache {
	return &Cache{rooms: make(map[uuid.UUID]*room)}
}

// Apply merges one room event and reports whether it changed the view.
func (c *Cache) Apply(evt domain.Event) bool {
	switch evt.Kind {
	case domain.EventMessageCreated, domain.EventMessageUpdated, domain.EventMessageDeleted:
		return c.Put(evt.Message)
	default:
		return false
	}
}

// Put stores msg unless the cache already holds the same or a newer version.
func (c *Cache) Put(msg domain.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.rooms[msg.RoomID]
	if !ok {
		r = &room{byID: make(map[uuid.UUID]domain.Message)}
		c.rooms[msg.RoomID] = r
	}

	existing, ok := r.byID[msg.ID]
	if ok && existing.Version >= msg.Version {
		return false
	}
	// A tombstone is final even if an older edit shows up later.
	if ok && existing.Deleted {
		return false
	}

	r.byID[msg.ID] = msg
	if !ok {
		i := sort.Search(len(r.ordered), func(i int) bool {
			return r.byID[r.ordered[i]].Sequence > msg.Sequence
		})
		r.ordered = append(r.ordered, uuid.Nil)
		copy(r.ordered[i+1:], r.ordered[i:])
		r.ordered[i] = msg.ID
	}
	if msg.Sequence > r.last {
		r.last = msg.Sequence
	}
	return true
}

// Merge stores a fetched page and returns how many messages changed.
func (c *Cache) Merge(page domain.MessagePage) int {
	n := 0
	for _, msg := range page.Messages {
		if c.Put(msg) {
			n++
		}
	}
	return n
}

// Messages returns the room's messages in sequence order.
func (c *Cache) Messages(roomID uuid.UUID) []domain.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]domain.Message, 0, len(r.ordered))
	for _, id := range r.ordered {
		out = append(out, r.byID[id])
	}
	return out
}

// LastSequence is the highest sequence seen for the room, the cursor to
// resume from after a reconnect.
func (c *Cache) LastSequence(roomID uuid.UUID) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if r, ok := c.rooms[roomID]; ok {
		return r.last
	}
	return 0
}

func (c *Cache) Get(roomID, messageID uuid.UUID) (domain.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if r, ok := c.rooms[roomID]; ok {
		msg, ok := r.byID[messageID]
		return msg, ok
	}
	return domain.Message{}, false
}
