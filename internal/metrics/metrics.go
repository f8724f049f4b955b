// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chorus",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route pattern, method and status code.",
	}, []string{"route", "method", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chorus",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	MessageWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chorus",
		Name:      "message_writes_total",
		Help:      "Successful message store mutations by event kind.",
	}, []string{"kind"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chorus",
		Name:      "ws_connections",
		Help:      "Currently connected websocket clients.",
	})

	WSSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chorus",
		Name:      "ws_subscriptions",
		Help:      "Live (connection, room) subscriptions.",
	})

	EventsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chorus",
		Name:      "events_delivered_total",
		Help:      "Room events queued to a connection.",
	})

	SlowClientsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chorus",
		Name:      "slow_clients_dropped_total",
		Help:      "Connections closed because their send buffer was full.",
	})

	FanoutErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chorus",
		Name:      "fanout_errors_total",
		Help:      "Events that could not be handed to the fan-out transport.",
	}, []string{"reason"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chorus",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the per-user rate limiter.",
	})
)
