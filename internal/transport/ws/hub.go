package ws

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/vedran77/chorus/internal/metrics"
)

// ErrHubStopped is returned once Run has exited.
var ErrHubStopped = errors.New("ws hub stopped")

const broadcastBuffer = 1024

// Hub owns the set of live connections and fans room frames out to the
// connections the Registry lists for that room. All delivery happens on
// the Run goroutine, so frames of one room reach each connection in the
// order they were published.
type Hub struct {
	registry *Registry
	log      *slog.Logger

	// clients maps connection id → client. Only Run touches it.
	clients map[uuid.UUID]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMsg
	stopped    chan struct{}
}

type broadcastMsg struct {
	roomID    uuid.UUID
	data      []byte
	excludeID uuid.UUID // optional: skip this connection (e.g. typing sender)
}

func NewHub(registry *Registry, log *slog.Logger) *Hub {
	return &Hub{
		registry:   registry,
		log:        log.With("component", "ws_hub"),
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMsg, broadcastBuffer),
		stopped:    make(chan struct{}),
	}
}

func (h *Hub) Registry() *Registry { return h.registry }

// Run is the hub's event loop. It returns when ctx is done, after closing
// every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	for {
		select {
		case client := <-h.register:
			h.clients[client.id] = client
			metrics.WSConnections.Inc()
			h.log.Debug("client connected", "conn", client.id, "user", client.userID, "total", len(h.clients))

		case client := <-h.unregister:
			h.drop(client, "")

		case msg := <-h.broadcast:
			h.deliver(msg)

		case <-ctx.Done():
			for _, client := range h.clients {
				h.drop(client, "server shutting down")
			}
			h.log.Info("hub stopped")
			return
		}
	}
}

func (h *Hub) deliver(msg *broadcastMsg) {
	for _, client := range h.registry.MembersOf(msg.roomID) {
		if client.id == msg.excludeID {
			continue
		}
		select {
		case client.send <- outbound{roomID: msg.roomID, data: msg.data}:
			metrics.EventsDelivered.Inc()
		default:
			// Client buffer full - disconnect
			metrics.SlowClientsDropped.Inc()
			h.log.Warn("dropping slow client", "conn", client.id, "user", client.userID)
			h.drop(client, "send buffer full")
		}
	}
}

// drop forgets a client and all of its subscriptions. Safe to call twice.
func (h *Hub) drop(client *Client, reason string) {
	if _, ok := h.clients[client.id]; !ok {
		// subscribe can race with a drop, clear anything left behind
		h.registry.RemoveConnection(client.id)
		return
	}
	delete(h.clients, client.id)
	n := h.registry.RemoveConnection(client.id)
	metrics.WSConnections.Dec()
	client.close(reason)
	h.log.Debug("client disconnected", "conn", client.id, "user", client.userID, "subscriptions", n, "total", len(h.clients))
}

// Register adds a client. It fails once the hub has stopped.
func (h *Hub) Register(ctx context.Context, c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.stopped:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unregister removes a client and its subscriptions.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
	}
}

// Publish queues an encoded frame for every subscriber of roomID. It only
// waits for queue space, never for clients.
func (h *Hub) Publish(ctx context.Context, roomID uuid.UUID, data []byte) error {
	return h.enqueue(ctx, &broadcastMsg{roomID: roomID, data: data})
}

func (h *Hub) enqueue(ctx context.Context, msg *broadcastMsg) error {
	select {
	case h.broadcast <- msg:
		return nil
	case <-h.stopped:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stopped reports whether Run has exited.
func (h *Hub) Stopped() bool {
	select {
	case <-h.stopped:
		return true
	default:
		return false
	}
}

// HandleTyping relays a typing indicator to the other subscribers of the room.
func (h *Hub) HandleTyping(ctx context.Context, sender *Client, roomID uuid.UUID, typing bool) error {
	evt, err := NewEvent(EventTypeTyping, &roomID, TypingPayload{
		UserID: sender.userID,
		Typing: typing,
	})
	if err != nil {
		return err
	}
	data, err := marshalEvent(evt)
	if err != nil {
		return err
	}
	return h.enqueue(ctx, &broadcastMsg{roomID: roomID, data: data, excludeID: sender.id})
}
