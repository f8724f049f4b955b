package sequence

import (
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterConcurrentNextIsUnique(t *testing.T) {
	c := NewCounter()
	roomID := uuid.New()

	const workers, perWorker = 16, 200
	results := make(chan int64, workers*perWorker)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				results <- c.Next(roomID)
			}
		}()
	}
	wg.Wait()
	close(results)

	var got []int64
	for v := range results {
		got = append(got, v)
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })

	require.Len(t, got, workers*perWorker)
	for i, v := range got {
		assert.Equal(t, int64(i+1), v)
	}
	assert.Equal(t, int64(workers*perWorker), c.Last(roomID))
}

func TestCounterRoomsAreIndependent(t *testing.T) {
	var c Counter
	a, b := uuid.New(), uuid.New()

	assert.Equal(t, int64(1), c.Next(a))
	assert.Equal(t, int64(2), c.Next(a))
	assert.Equal(t, int64(1), c.Next(b))
}

func TestCounterSeedNeverMovesBackwards(t *testing.T) {
	c := NewCounter()
	roomID := uuid.New()

	c.Seed(roomID, 10)
	assert.Equal(t, int64(11), c.Next(roomID))

	c.Seed(roomID, 3)
	assert.Equal(t, int64(12), c.Next(roomID))
}

func TestLockerSerializesSameRoom(t *testing.T) {
	l := NewLocker()
	roomID := uuid.New()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock(roomID)
			defer unlock()
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, l.Len())
}

func TestLockerDifferentRoomsDoNotBlock(t *testing.T) {
	l := NewLocker()
	unlockA := l.Lock(uuid.New())
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := l.Lock(uuid.New())
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different room blocked")
	}
}

func TestLockerUnlockIsIdempotent(t *testing.T) {
	l := NewLocker()
	roomID := uuid.New()
	unlock := l.Lock(roomID)
	unlock()
	unlock()

	unlock = l.Lock(roomID)
	unlock()
	assert.Equal(t, 0, l.Len())
}
