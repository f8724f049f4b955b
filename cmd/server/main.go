package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/vedran77/chorus/internal/config"
	"github.com/vedran77/chorus/internal/database"
	"github.com/vedran77/chorus/internal/logger"
	"github.com/vedran77/chorus/internal/repository"
	"github.com/vedran77/chorus/internal/repository/memory"
	postgresrepo "github.com/vedran77/chorus/internal/repository/postgres"
	"github.com/vedran77/chorus/internal/service"
	"github.com/vedran77/chorus/internal/transport/http/middleware"
	"github.com/vedran77/chorus/internal/transport/http/router"
	"github.com/vedran77/chorus/internal/transport/ws"
)

type stores struct {
	users    repository.UserRepository
	servers  repository.ServerRepository
	rooms    repository.RoomRepository
	messages repository.MessageRepository
	ready    func(ctx context.Context) error
	close    func()
}

func main() {
	// .env je opcionalan, u produkciji dolazi iz okoline
	_ = godotenv.Load(".env")

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal(err)
	}

	logg, err := logger.Setup(cfg)
	if err != nil {
		log.Fatal(err)
	}
	slog.SetDefault(logg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *slog.Logger) error {
	// Storage
	st, err := openStores(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer st.close()

	// Services
	authService := service.NewAuthService(st.users, cfg.JWTSecret)
	roomService := service.NewRoomService(st.rooms, st.servers)
	serverService := service.NewServerService(st.servers, st.rooms)
	channelService := service.NewChannelService(st.rooms, st.servers)
	conversationService := service.NewConversationService(st.rooms, st.servers)
	messageService := service.NewMessageService(st.messages, roomService)

	// Realtime
	hub := ws.NewHub(ws.NewRegistry(), logg)
	go hub.Run(ctx)

	switch cfg.RealtimeFanout {
	case config.FanoutRedis:
		rdb, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		logg.Info("connected to redis", "addr", rdb.Options().Addr)

		fanout := ws.NewRedisFanout(rdb, hub, logg)
		go func() {
			if err := fanout.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logg.Error("redis fanout stopped", "error", err)
			}
		}()
		messageService.SetPublisher(fanout)
	default:
		messageService.SetPublisher(ws.NewHubPublisher(hub, logg))
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Run(ctx.Done())

	handler := router.New(router.Deps{
		Log:           logg,
		Auth:          authService,
		Servers:       serverService,
		Channels:      channelService,
		Conversations: conversationService,
		Rooms:         roomService,
		Messages:      messageService,
		Hub:           hub,
		RateLimiter:   limiter,
		CORSOrigins:   cfg.CORSOrigins,
		WSSendBuffer:  cfg.WSSendBuffer,
		Ready:         st.ready,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info("starting server", "addr", srv.Addr, "store", cfg.StoreDriver, "fanout", cfg.RealtimeFanout)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStores(ctx context.Context, cfg *config.Config, logg *slog.Logger) (*stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logg.Warn("using in-memory store, data is lost on restart")
		store := memory.NewStore()
		return &stores{
			users:    store.Users(),
			servers:  store.Servers(),
			rooms:    store.Rooms(),
			messages: store.Messages(),
			close:    func() {},
		}, nil
	}

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logg.Info("connected to database", "host", cfg.DBHost, "name", cfg.DBName)

	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &stores{
		users:    postgresrepo.NewUserRepo(pool),
		servers:  postgresrepo.NewServerRepo(pool),
		rooms:    postgresrepo.NewRoomRepo(pool),
		messages: postgresrepo.NewMessageRepo(pool),
		ready:    pool.Ping,
		close:    pool.Close,
	}, nil
}

// openRedis accepts either host:port or a redis:// URL.
func openRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts := &redis.Options{Addr: redisURL}
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}
