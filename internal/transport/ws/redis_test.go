package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/chorus/internal/domain"
	"github.com/vedran77/chorus/internal/logger"
)

func TestRedisFanoutQueuesOnRoomTopic(t *testing.T) {
	f := NewRedisFanout(nil, startHub(t), logger.Discard())
	room := uuid.New()

	f.Publish(context.Background(), room, createdEvent(room, 7))

	select {
	case o := <-f.out:
		assert.Equal(t, domain.Topic(room), o.topic)
		var evt domain.Event
		require.NoError(t, json.Unmarshal(o.payload, &evt))
		assert.Equal(t, domain.EventMessageCreated, evt.Kind)
		assert.Equal(t, int64(7), evt.Message.Sequence)
	default:
		t.Fatal("nothing queued")
	}
}

func TestRedisFanoutDropsInvalidEvent(t *testing.T) {
	f := NewRedisFanout(nil, startHub(t), logger.Discard())
	f.Publish(context.Background(), uuid.New(), domain.Event{})
	assert.Len(t, f.out, 0)
}

func TestRedisFanoutFeedsLocalHub(t *testing.T) {
	hub := startHub(t)
	f := NewRedisFanout(nil, hub, logger.Discard())
	room := uuid.New()
	c := connect(t, hub, 16)
	hub.registry.Subscribe(c, room)

	payload, err := json.Marshal(createdEvent(room, 3))
	require.NoError(t, err)
	f.handle(context.Background(), &redis.Message{Channel: domain.Topic(room), Payload: string(payload)})

	msg := receive(t, c)
	var evt Event
	require.NoError(t, json.Unmarshal(msg.data, &evt))
	assert.Equal(t, EventTypeMessageCreated, evt.Type)
	assert.Equal(t, int64(3), evt.Seq)
}

func TestRedisFanoutIgnoresMismatchedTopic(t *testing.T) {
	hub := startHub(t)
	f := NewRedisFanout(nil, hub, logger.Discard())
	room := uuid.New()
	c := connect(t, hub, 16)
	hub.registry.Subscribe(c, room)

	payload, err := json.Marshal(createdEvent(uuid.New(), 1))
	require.NoError(t, err)
	f.handle(context.Background(), &redis.Message{Channel: domain.Topic(room), Payload: string(payload)})
	f.handle(context.Background(), &redis.Message{Channel: "other:topic", Payload: string(payload)})
	f.handle(context.Background(), &redis.Message{Channel: domain.Topic(room), Payload: "{"})

	select {
	case <-c.send:
		t.Fatal("unexpected frame")
	case <-time.After(100 * time.Millisecond):
	}
}
