// Package router assembles the HTTP surface: REST gateway, websocket
// endpoint, health and metrics.
package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vedran77/chorus/internal/service"
	"github.com/vedran77/chorus/internal/transport/http/handlers"
	"github.com/vedran77/chorus/internal/transport/http/middleware"
	"github.com/vedran77/chorus/internal/transport/ws"
)

type Deps struct {
	Log           *slog.Logger
	Auth          *service.AuthService
	Servers       *service.ServerService
	Channels      *service.ChannelService
	Conversations *service.ConversationService
	Rooms         *service.RoomService
	Messages      *service.MessageService
	Hub           *ws.Hub
	RateLimiter   *middleware.RateLimiter
	CORSOrigins   []string
	WSSendBuffer  int
	// Ready reports whether backing stores are reachable; nil means always ready.
	Ready func(ctx context.Context) error
}

func New(d Deps) http.Handler {
	authHandler := handlers.NewAuthHandler(d.Auth)
	serverHandler := handlers.NewServerHandler(d.Servers)
	channelHandler := handlers.NewChannelHandler(d.Channels)
	conversationHandler := handlers.NewConversationHandler(d.Conversations)
	messageHandler := handlers.NewMessageHandler(d.Messages)
	mediaHandler := handlers.NewMediaHandler(d.Rooms)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(d.CORSOrigins))

	// Public
	r.Get("/health", health(d.Ready))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", ws.ServeWS(d.Hub, d.Auth, d.Rooms, ws.HandlerOptions{
		OriginPatterns: middleware.AllowedOriginPatterns(d.CORSOrigins),
		SendBuffer:     d.WSSendBuffer,
	}))

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(d.RateLimiter.Middleware)
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	// Protected
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(d.Auth))
		r.Use(d.RateLimiter.Middleware)

		r.Post("/api/servers", serverHandler.Create)
		r.Get("/api/servers", serverHandler.List)
		r.Route("/api/servers/{id}", func(r chi.Router) {
			r.Get("/", serverHandler.Get)
			r.Patch("/", serverHandler.Update)
			r.Delete("/", serverHandler.Delete)
			r.Patch("/invite-code", serverHandler.RegenerateInvite)
			r.Patch("/leave", serverHandler.Leave)
			r.Patch("/members/{memberId}", serverHandler.UpdateMember)
			r.Delete("/members/{memberId}", serverHandler.KickMember)
			r.Post("/channels", channelHandler.Create)
			r.Get("/channels", channelHandler.List)
			r.Post("/conversations", conversationHandler.Start)
		})
		r.Post("/api/invites/{code}", serverHandler.Join)

		r.Post("/api/messages", messageHandler.Send)
		r.Get("/api/messages", messageHandler.List)
		r.Patch("/api/messages/{messageId}", messageHandler.Edit)
		r.Delete("/api/messages/{messageId}", messageHandler.Delete)

		r.Get("/api/rooms/{roomId}/media", mediaHandler.Get)
	})

	return r
}

func health(ready func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status": "unavailable"}`))
				return
			}
		}
		w.Write([]byte(`{"status": "ok"}`))
	}
}
