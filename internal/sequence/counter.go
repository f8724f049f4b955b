// Package sequence issues per-room message positions and serializes writers
// of the same room.
package sequence

import (
	"sync"

	"github.com/google/uuid"
)

// Counter hands out strictly increasing sequence numbers per room.
// Values start at 1. The zero value is ready to use.
type Counter struct {
	mu   sync.Mutex
	last map[uuid.UUID]int64
}

func NewCounter() *Counter {
	return &Counter{last: make(map[uuid.UUID]int64)}
}

// Next returns a value greater than any previously issued for roomID.
func (c *Counter) Next(roomID uuid.UUID) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		c.last = make(map[uuid.UUID]int64)
	}
	c.last[roomID]++
	return c.last[roomID]
}

// Last returns the most recently issued value for roomID, 0 if none.
func (c *Counter) Last(roomID uuid.UUID) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last[roomID]
}

// Seed raises the counter to at least value, e.g. after loading history.
// It never moves a counter backwards.
func (c *Counter) Seed(roomID uuid.UUID, value int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		c.last = make(map[uuid.UUID]int64)
	}
	if value > c.last[roomID] {
		c.last[roomID] = value
	}
}
