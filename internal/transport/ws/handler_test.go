package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/chorus/internal/domain"
	"github.com/vedran77/chorus/internal/logger"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type staticVerifier map[string]uuid.UUID

func (v staticVerifier) VerifyToken(token string) (uuid.UUID, error) {
	if id, ok := v[token]; ok {
		return id, nil
	}
	return uuid.Nil, errors.New("bad token")
}

type roomAllowList map[uuid.UUID]bool

func (a roomAllowList) CanView(_ context.Context, _ uuid.UUID, roomID uuid.UUID) error {
	if a[roomID] {
		return nil
	}
	return domain.ErrForbidden
}

type wsFixture struct {
	hub     *Hub
	server  *httptest.Server
	allowed uuid.UUID
	denied  uuid.UUID
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	f := &wsFixture{hub: startHub(t), allowed: uuid.New(), denied: uuid.New()}
	verifier := staticVerifier{"good": uuid.New()}
	authz := roomAllowList{f.allowed: true}
	f.server = httptest.NewServer(ServeWS(f.hub, verifier, authz, HandlerOptions{OriginPatterns: []string{"*"}}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *wsFixture) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "?token=" + token
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, evt Event) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, evt))
}

func read(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var evt Event
	require.NoError(t, wsjson.Read(ctx, conn, &evt))
	return evt
}

func TestServeWSRejectsBadToken(t *testing.T) {
	f := newWSFixture(t)

	resp, err := http.Get(f.server.URL + "?token=nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(f.server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSubscribeReceiveUnsubscribe(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "good")
	pub := NewHubPublisher(f.hub, logger.Discard())
	other := uuid.New()

	send(t, conn, Event{Type: EventTypeRoomSubscribe, RoomID: &f.allowed})
	ack := read(t, conn)
	require.Equal(t, EventTypeRoomSubscribed, ack.Type)
	assert.Equal(t, f.allowed, *ack.RoomID)

	pub.Publish(context.Background(), f.allowed, createdEvent(f.allowed, 1))
	evt := read(t, conn)
	assert.Equal(t, EventTypeMessageCreated, evt.Type)
	assert.Equal(t, int64(1), evt.Seq)

	send(t, conn, Event{Type: EventTypeRoomUnsubscribe, RoomID: &f.allowed})
	require.Equal(t, EventTypeRoomUnsubscribed, read(t, conn).Type)

	pub.Publish(context.Background(), f.allowed, createdEvent(f.allowed, 2))
	send(t, conn, Event{Type: EventTypePing})
	assert.Equal(t, EventTypePong, read(t, conn).Type, "no room event after unsubscribe")

	// The frame for a room nobody subscribed to is dropped too.
	pub.Publish(context.Background(), other, createdEvent(other, 1))
	send(t, conn, Event{Type: EventTypePing})
	assert.Equal(t, EventTypePong, read(t, conn).Type)
}

func TestSubscribeForbiddenRoom(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "good")

	send(t, conn, Event{Type: EventTypeRoomSubscribe, RoomID: &f.denied})
	evt := read(t, conn)
	require.Equal(t, EventTypeError, evt.Type)
	assert.Contains(t, string(evt.Payload), "FORBIDDEN")

	send(t, conn, Event{Type: EventTypeTypingStart, RoomID: &f.denied})
	evt = read(t, conn)
	require.Equal(t, EventTypeError, evt.Type)
	assert.Contains(t, string(evt.Payload), "NOT_SUBSCRIBED")

	send(t, conn, Event{Type: "message.send"})
	assert.Contains(t, string(read(t, conn).Payload), "UNKNOWN_EVENT")
}

func TestDisconnectRemovesSubscriptions(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "good")

	send(t, conn, Event{Type: EventTypeRoomSubscribe, RoomID: &f.allowed})
	require.Equal(t, EventTypeRoomSubscribed, read(t, conn).Type)
	require.Len(t, f.hub.registry.MembersOf(f.allowed), 1)

	conn.Close(websocket.StatusNormalClosure, "bye")
	require.Eventually(t, func() bool {
		return len(f.hub.registry.MembersOf(f.allowed)) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServeWSUnavailableAfterStop(t *testing.T) {
	hub := NewHub(NewRegistry(), logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hub.Run(ctx)

	srv := httptest.NewServer(ServeWS(hub, staticVerifier{}, roomAllowList{}, HandlerOptions{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "?token=good")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestWritePumpSkipsFramesQueuedBeforeUnsubscribe(t *testing.T) {
	hub := startHub(t)
	room := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		c := NewClient(hub, conn, uuid.New(), allowAll{}, 16)
		if err := hub.Register(r.Context(), c); err != nil {
			return
		}

		// Frames land in the buffer while subscribed, then the client
		// unsubscribes before any of them reach the socket.
		hub.registry.Subscribe(c, room)
		for seq := int64(1); seq <= 3; seq++ {
			data, err := marshalEvent(&Event{Type: EventTypeMessageCreated, RoomID: &room, Seq: seq})
			if err != nil {
				return
			}
			c.send <- outbound{roomID: room, data: data}
		}
		hub.registry.Unsubscribe(c.id, room)
		c.sendControl(EventTypeRoomUnsubscribed, &room)

		go c.WritePump()
		c.ReadPump(r.Context())
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	first := read(t, conn)
	require.Equal(t, EventTypeRoomUnsubscribed, first.Type, "room frame written after unsubscribe")
	require.NotNil(t, first.RoomID)
	assert.Equal(t, room, *first.RoomID)

	send(t, conn, Event{Type: EventTypePing})
	assert.Equal(t, EventTypePong, read(t, conn).Type)
}
