package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/chorus/internal/domain"
	"github.com/vedran77/chorus/internal/logger"
)

type allowAll struct{}

func (allowAll) CanView(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(NewRegistry(), logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.stopped
	})
	return hub
}

func connect(t *testing.T, hub *Hub, buffer int) *Client {
	t.Helper()
	c := NewClient(hub, nil, uuid.New(), allowAll{}, buffer)
	require.NoError(t, hub.Register(context.Background(), c))
	return c
}

func receive(t *testing.T, c *Client) outbound {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return outbound{}
	}
}

func createdEvent(roomID uuid.UUID, seq int64) domain.Event {
	content := "hi"
	return domain.NewEvent(domain.EventMessageCreated, domain.Message{
		ID: uuid.New(), RoomID: roomID, Sequence: seq, Version: 1, Content: &content,
	})
}

func TestHubDeliversInPublishOrder(t *testing.T) {
	hub := startHub(t)
	pub := NewHubPublisher(hub, logger.Discard())
	room := uuid.New()

	a := connect(t, hub, 256)
	b := connect(t, hub, 256)
	hub.registry.Subscribe(a, room)
	hub.registry.Subscribe(b, room)

	const n = 100
	for i := 1; i <= n; i++ {
		pub.Publish(context.Background(), room, createdEvent(room, int64(i)))
	}

	for _, c := range []*Client{a, b} {
		for i := 1; i <= n; i++ {
			msg := receive(t, c)
			assert.Equal(t, room, msg.roomID)

			var evt Event
			require.NoError(t, json.Unmarshal(msg.data, &evt))
			assert.Equal(t, EventTypeMessageCreated, evt.Type)
			assert.Equal(t, int64(i), evt.Seq)
		}
	}
}

func TestHubSkipsOtherRoomsAndUnsubscribed(t *testing.T) {
	hub := startHub(t)
	roomA, roomB := uuid.New(), uuid.New()
	c := connect(t, hub, 16)
	hub.registry.Subscribe(c, roomA)
	hub.registry.Subscribe(c, roomB)

	require.True(t, hub.registry.Unsubscribe(c.id, roomA))
	require.NoError(t, hub.Publish(context.Background(), roomA, []byte(`"a"`)))
	require.NoError(t, hub.Publish(context.Background(), uuid.New(), []byte(`"elsewhere"`)))
	require.NoError(t, hub.Publish(context.Background(), roomB, []byte(`"b"`)))

	msg := receive(t, c)
	assert.Equal(t, roomB, msg.roomID)
	assert.Equal(t, `"b"`, string(msg.data))
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := startHub(t)
	room := uuid.New()
	slow := connect(t, hub, 1)
	fast := connect(t, hub, 16)
	hub.registry.Subscribe(slow, room)
	hub.registry.Subscribe(fast, room)

	for i := 0; i < 3; i++ {
		require.NoError(t, hub.Publish(context.Background(), room, []byte(`{}`)))
	}

	select {
	case <-slow.done:
	case <-time.After(2 * time.Second):
		t.Fatal("slow client was not dropped")
	}
	assert.Equal(t, "send buffer full", slow.closeReason)
	assert.False(t, hub.registry.IsSubscribed(slow.id, room))

	for i := 0; i < 3; i++ {
		receive(t, fast)
	}
}

func TestUnregisterRemovesSubscriptions(t *testing.T) {
	hub := startHub(t)
	c := connect(t, hub, 16)
	rooms := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, r := range rooms {
		hub.registry.Subscribe(c, r)
	}

	hub.Unregister(c)
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("client not closed")
	}
	assert.Empty(t, hub.registry.Rooms(c.id))
	for _, r := range rooms {
		assert.Empty(t, hub.registry.MembersOf(r))
	}
}

func TestTypingExcludesSender(t *testing.T) {
	hub := startHub(t)
	room := uuid.New()
	sender := connect(t, hub, 16)
	other := connect(t, hub, 16)
	hub.registry.Subscribe(sender, room)
	hub.registry.Subscribe(other, room)

	require.NoError(t, hub.HandleTyping(context.Background(), sender, room, true))

	msg := receive(t, other)
	var evt Event
	require.NoError(t, json.Unmarshal(msg.data, &evt))
	assert.Equal(t, EventTypeTyping, evt.Type)
	var p TypingPayload
	require.NoError(t, json.Unmarshal(evt.Payload, &p))
	assert.Equal(t, sender.userID, p.UserID)
	assert.True(t, p.Typing)

	assert.Len(t, sender.send, 0)
}

func TestPublishAfterStop(t *testing.T) {
	hub := NewHub(NewRegistry(), logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	assert.True(t, hub.Stopped())
	for i := 0; i < broadcastBuffer+1; i++ {
		if err := hub.Publish(context.Background(), uuid.New(), nil); err != nil {
			assert.ErrorIs(t, err, ErrHubStopped)
			return
		}
	}
	t.Fatal("publish never reported the stopped hub")
}

func TestRegistrySubscribeIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	hub := NewHub(reg, logger.Discard())
	c := NewClient(hub, nil, uuid.New(), allowAll{}, 1)
	room := uuid.New()

	assert.True(t, reg.Subscribe(c, room))
	assert.False(t, reg.Subscribe(c, room))
	assert.Len(t, reg.MembersOf(room), 1)
	assert.True(t, reg.IsSubscribed(c.id, room))

	assert.True(t, reg.Unsubscribe(c.id, room))
	assert.False(t, reg.Unsubscribe(c.id, room))
	assert.Equal(t, 0, reg.RemoveConnection(c.id))
}

func TestFromDomainRejectsUnknownKind(t *testing.T) {
	room := uuid.New()
	_, err := FromDomain(domain.Event{Kind: 42, RoomID: room, Message: domain.Message{RoomID: room}})
	assert.Error(t, err)

	frame, err := FromDomain(domain.NewEvent(domain.EventMessageDeleted, domain.Message{RoomID: room, Sequence: 7, Deleted: true}))
	require.NoError(t, err)
	assert.Equal(t, EventTypeMessageDeleted, frame.Type)
	assert.Equal(t, int64(7), frame.Seq)
	assert.Equal(t, room, *frame.RoomID)
}
