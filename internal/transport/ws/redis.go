package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vedran77/chorus/internal/domain"
	"github.com/vedran77/chorus/internal/metrics"
)

const redisOutboxSize = 4096

type redisOutgoing struct {
	topic   string
	payload []byte
}

// RedisFanout implements service.Publisher across instances. Events are
// published on the room's topic and every instance, this one included,
// feeds what it receives into its local hub.
type RedisFanout struct {
	rdb *redis.Client
	hub *Hub
	log *slog.Logger
	out chan redisOutgoing
}

func NewRedisFanout(rdb *redis.Client, hub *Hub, log *slog.Logger) *RedisFanout {
	return &RedisFanout{
		rdb: rdb,
		hub: hub,
		log: log.With("component", "redis_fanout"),
		out: make(chan redisOutgoing, redisOutboxSize),
	}
}

// Publish queues the event for the publish loop. It never waits on Redis.
func (f *RedisFanout) Publish(_ context.Context, roomID uuid.UUID, evt domain.Event) {
	if err := evt.Validate(); err != nil {
		metrics.FanoutErrors.WithLabelValues("encode").Inc()
		f.log.Error("invalid event", "room", roomID, "err", err)
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		metrics.FanoutErrors.WithLabelValues("encode").Inc()
		f.log.Error("encoding event", "room", roomID, "err", err)
		return
	}

	select {
	case f.out <- redisOutgoing{topic: domain.Topic(roomID), payload: payload}:
	default:
		metrics.FanoutErrors.WithLabelValues("queue_full").Inc()
		f.log.Warn("redis outbox full, event dropped", "room", roomID, "seq", evt.Message.Sequence)
	}
}

// Run subscribes to all room topics and pumps the outbox until ctx is done.
func (f *RedisFanout) Run(ctx context.Context) error {
	pubsub := f.rdb.PSubscribe(ctx, domain.TopicPrefix+"*")
	defer pubsub.Close()

	// Wait for the subscription to be confirmed before publishing anything.
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	go f.publishLoop(ctx)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			f.handle(ctx, msg)
		}
	}
}

// publishLoop is the only goroutine writing to Redis, so this instance's
// events reach the topic in the order they were published.
func (f *RedisFanout) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-f.out:
			if err := f.rdb.Publish(ctx, o.topic, o.payload).Err(); err != nil {
				metrics.FanoutErrors.WithLabelValues("redis_publish").Inc()
				f.log.Error("redis publish failed", "topic", o.topic, "err", err)
			}
		}
	}
}

func (f *RedisFanout) handle(ctx context.Context, msg *redis.Message) {
	roomID, err := domain.RoomFromTopic(msg.Channel)
	if err != nil {
		f.log.Warn("ignoring message on unknown topic", "topic", msg.Channel)
		return
	}

	var evt domain.Event
	if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
		metrics.FanoutErrors.WithLabelValues("decode").Inc()
		f.log.Warn("bad event payload", "topic", msg.Channel, "err", err)
		return
	}
	if evt.RoomID != roomID {
		metrics.FanoutErrors.WithLabelValues("decode").Inc()
		f.log.Warn("event room does not match topic", "topic", msg.Channel, "room", evt.RoomID)
		return
	}

	data, err := encodeDomainEvent(evt)
	if err != nil {
		metrics.FanoutErrors.WithLabelValues("encode").Inc()
		f.log.Warn("re-encoding event", "room", roomID, "err", err)
		return
	}
	if err := f.hub.Publish(ctx, roomID, data); err != nil {
		metrics.FanoutErrors.WithLabelValues("hub").Inc()
		f.log.Warn("event not delivered", "room", roomID, "err", err)
	}
}
