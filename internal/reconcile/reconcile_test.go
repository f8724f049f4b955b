package reconcile

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/chorus/internal/domain"
)

func message(room uuid.UUID, seq, version int64, content string) domain.Message {
	return domain.Message{ID: uuid.New(), RoomID: room, Sequence: seq, Version: version, Content: &content}
}

func TestOutOfOrderCreatesAreSorted(t *testing.T) {
	c := NewCache()
	room := uuid.New()

	for _, seq := range []int64{3, 1, 4, 2} {
		assert.True(t, c.Apply(domain.NewEvent(domain.EventMessageCreated, message(room, seq, 1, "x"))))
	}

	var seqs []int64
	for _, m := range c.Messages(room) {
		seqs = append(seqs, m.Sequence)
	}
	assert.Equal(t, []int64{1, 2, 3, 4}, seqs)
	assert.Equal(t, int64(4), c.LastSequence(room))
}

func TestStaleAndDuplicateEventsAreIgnored(t *testing.T) {
	c := NewCache()
	room := uuid.New()
	created := message(room, 1, 1, "draft")

	edited := created
	final := "final"
	edited.Content = &final
	edited.Version = 2
	now := time.Now()
	edited.EditedAt = &now

	require.True(t, c.Apply(domain.NewEvent(domain.EventMessageUpdated, edited)))
	assert.False(t, c.Apply(domain.NewEvent(domain.EventMessageCreated, created)), "late create")
	assert.False(t, c.Apply(domain.NewEvent(domain.EventMessageUpdated, edited)), "duplicate")

	got, ok := c.Get(room, created.ID)
	require.True(t, ok)
	assert.Equal(t, "final", *got.Content)
	assert.Len(t, c.Messages(room), 1)
}

func TestTombstoneWins(t *testing.T) {
	c := NewCache()
	room := uuid.New()
	msg := message(room, 5, 1, "hello")
	require.True(t, c.Put(msg))

	deleted := msg
	deleted.Tombstone(time.Now())
	require.True(t, c.Apply(domain.NewEvent(domain.EventMessageDeleted, deleted)))

	stale := msg
	stale.Version = 3
	assert.False(t, c.Put(stale))

	got, _ := c.Get(room, msg.ID)
	assert.True(t, got.Deleted)
	assert.Nil(t, got.Content)
}

func TestMergePage(t *testing.T) {
	c := NewCache()
	room := uuid.New()
	live := message(room, 3, 1, "live")
	c.Put(live)

	n := c.Merge(domain.MessagePage{Messages: []domain.Message{
		message(room, 1, 1, "a"),
		message(room, 2, 1, "b"),
		live,
	}})
	assert.Equal(t, 2, n)
	assert.Len(t, c.Messages(room), 3)
	assert.Nil(t, c.Messages(uuid.New()))
}
