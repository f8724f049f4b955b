package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait         = 10 * time.Second
	pingInterval      = 30 * time.Second
	maxMessageSize    = 4096
	defaultSendBuffer = 256
	authorizeTimeout  = 5 * time.Second
)

// RoomAuthorizer decides whether a user may subscribe to a room.
type RoomAuthorizer interface {
	CanView(ctx context.Context, userID, roomID uuid.UUID) error
}

// outbound is one frame queued for a connection. roomID is uuid.Nil for
// control frames, which bypass the subscription check.
type outbound struct {
	roomID uuid.UUID
	data   []byte
}

// Client represents a single WebSocket connection.
type Client struct {
	id     uuid.UUID
	userID uuid.UUID
	hub    *Hub
	conn   *websocket.Conn
	authz  RoomAuthorizer
	log    *slog.Logger

	send chan outbound

	done        chan struct{}
	closeOnce   sync.Once
	closeReason string
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, authz RoomAuthorizer, sendBuffer int) *Client {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	id := uuid.New()
	return &Client{
		id:     id,
		userID: userID,
		hub:    hub,
		conn:   conn,
		authz:  authz,
		log:    hub.log.With("conn", id, "user", userID),
		send:   make(chan outbound, sendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *Client) ID() uuid.UUID { return c.id }

// close stops the write pump. The send channel is never closed so
// concurrent senders cannot panic.
func (c *Client) close(reason string) {
	c.closeOnce.Do(func() {
		c.closeReason = reason
		close(c.done)
	})
}

// ReadPump reads messages from the WebSocket and routes them. It returns
// when the connection fails or ctx is done.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.close("")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	for {
		var event Event
		err := wsjson.Read(ctx, c.conn, &event)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				c.log.Debug("client disconnected")
			} else {
				c.log.Debug("read error", "err", err)
			}
			return
		}

		c.handleEvent(ctx, &event)
	}
}

// WritePump writes queued frames to the WebSocket and pings periodically.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			// Unsubscribe may have happened while the frame was queued.
			if msg.roomID != uuid.Nil && !c.hub.registry.IsSubscribed(c.id, msg.roomID) {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, msg.data)
			cancel()
			if err != nil {
				c.log.Debug("write error", "err", err)
				c.conn.Close(websocket.StatusInternalError, "write failed")
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				c.log.Debug("ping error", "err", err)
				c.conn.Close(websocket.StatusGoingAway, "ping timeout")
				return
			}

		case <-c.done:
			if c.closeReason != "" {
				c.conn.Close(websocket.StatusPolicyViolation, c.closeReason)
			} else {
				c.conn.Close(websocket.StatusNormalClosure, "")
			}
			return
		}
	}
}

// handleEvent routes an incoming client event.
func (c *Client) handleEvent(ctx context.Context, event *Event) {
	switch event.Type {
	case EventTypeRoomSubscribe:
		roomID, ok := c.roomOf(event)
		if !ok {
			return
		}
		actx, cancel := context.WithTimeout(ctx, authorizeTimeout)
		err := c.authz.CanView(actx, c.userID, roomID)
		cancel()
		if err != nil {
			c.sendError("FORBIDDEN", "cannot subscribe to room "+roomID.String())
			return
		}
		c.hub.registry.Subscribe(c, roomID)
		c.sendControl(EventTypeRoomSubscribed, &roomID)

	case EventTypeRoomUnsubscribe:
		roomID, ok := c.roomOf(event)
		if !ok {
			return
		}
		c.hub.registry.Unsubscribe(c.id, roomID)
		c.sendControl(EventTypeRoomUnsubscribed, &roomID)

	case EventTypeTypingStart, EventTypeTypingStop:
		roomID, ok := c.roomOf(event)
		if !ok {
			return
		}
		if !c.hub.registry.IsSubscribed(c.id, roomID) {
			c.sendError("NOT_SUBSCRIBED", "subscribe to the room before sending typing events")
			return
		}
		if err := c.hub.HandleTyping(ctx, c, roomID, event.Type == EventTypeTypingStart); err != nil {
			c.log.Debug("typing relay failed", "err", err)
		}

	case EventTypePing:
		c.sendControl(EventTypePong, nil)

	default:
		c.sendError("UNKNOWN_EVENT", "unknown event type: "+event.Type)
	}
}

// roomOf reads the room from the envelope, falling back to the payload.
func (c *Client) roomOf(event *Event) (uuid.UUID, bool) {
	if event.RoomID != nil && *event.RoomID != uuid.Nil {
		return *event.RoomID, true
	}
	var p RoomPayload
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &p); err == nil && p.RoomID != uuid.Nil {
			return p.RoomID, true
		}
	}
	c.sendError("INVALID_PAYLOAD", "room_id required for "+event.Type)
	return uuid.Nil, false
}

func (c *Client) sendControl(eventType string, roomID *uuid.UUID) {
	evt := &Event{Type: eventType, RoomID: roomID, Timestamp: time.Now().UnixMilli()}
	c.enqueueControl(evt)
}

func (c *Client) sendError(code, message string) {
	evt, err := NewEvent(EventTypeError, nil, ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	c.enqueueControl(evt)
}

func (c *Client) enqueueControl(evt *Event) {
	data, err := marshalEvent(evt)
	if err != nil {
		return
	}
	select {
	case c.send <- outbound{data: data}:
	default:
	}
}

func marshalEvent(evt *Event) ([]byte, error) {
	return json.Marshal(evt)
}
