package sequence

import (
	"sync"

	"github.com/google/uuid"
)

// Locker is a keyed mutex: one lock per room, created on demand and
// released once nobody holds or waits for it.
type Locker struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]*roomLock
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

func NewLocker() *Locker {
	return &Locker{rooms: make(map[uuid.UUID]*roomLock)}
}

// Lock blocks until the caller owns roomID. The returned func unlocks it.
func (l *Locker) Lock(roomID uuid.UUID) (unlock func()) {
	l.mu.Lock()
	if l.rooms == nil {
		l.rooms = make(map[uuid.UUID]*roomLock)
	}
	rl, ok := l.rooms[roomID]
	if !ok {
		rl = &roomLock{}
		l.rooms[roomID] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			rl.mu.Unlock()
			l.mu.Lock()
			rl.refs--
			if rl.refs == 0 {
				delete(l.rooms, roomID)
			}
			l.mu.Unlock()
		})
	}
}

// Len reports how many rooms currently have a holder or waiter.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rooms)
}
