package ws

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/vedran77/chorus/internal/domain"
	"github.com/vedran77/chorus/internal/metrics"
)

// HubPublisher implements service.Publisher for a single instance by
// handing events straight to the local hub.
type HubPublisher struct {
	hub *Hub
	log *slog.Logger
}

func NewHubPublisher(hub *Hub, log *slog.Logger) *HubPublisher {
	return &HubPublisher{hub: hub, log: log.With("component", "ws_publisher")}
}

func (p *HubPublisher) Publish(ctx context.Context, roomID uuid.UUID, evt domain.Event) {
	data, err := encodeDomainEvent(evt)
	if err != nil {
		metrics.FanoutErrors.WithLabelValues("encode").Inc()
		p.log.Error("encoding event", "room", roomID, "kind", evt.Kind, "err", err)
		return
	}
	if err := p.hub.Publish(ctx, roomID, data); err != nil {
		metrics.FanoutErrors.WithLabelValues("hub").Inc()
		p.log.Warn("event not delivered", "room", roomID, "kind", evt.Kind, "seq", evt.Message.Sequence, "err", err)
	}
}
