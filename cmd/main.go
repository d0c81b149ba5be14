package main

import (
	"context"
	"expvar"
	"log"
	"runtime"

	"github.com/syncstream/syncstream/internal/application"
	"github.com/syncstream/syncstream/internal/domain"
	"github.com/syncstream/syncstream/internal/infrastructure/configs"
	"github.com/syncstream/syncstream/internal/infrastructure/events"
	"github.com/syncstream/syncstream/internal/infrastructure/logging"
	"github.com/syncstream/syncstream/internal/infrastructure/membership"
	"github.com/syncstream/syncstream/internal/infrastructure/messaging"
	"github.com/syncstream/syncstream/internal/infrastructure/ratelimiter"
	"github.com/syncstream/syncstream/internal/infrastructure/registry"
	"github.com/syncstream/syncstream/internal/infrastructure/tracing"
	"github.com/syncstream/syncstream/internal/infrastructure/ws"
	"github.com/syncstream/syncstream/internal/persistence/db"
	"github.com/syncstream/syncstream/internal/persistence/repository"
	"github.com/syncstream/syncstream/internal/presentation/api"
	"github.com/syncstream/syncstream/internal/presentation/handler/health"
	"github.com/syncstream/syncstream/internal/presentation/handler/rooms"
)

const (
	serviceName = "syncstream-api"
)

func main() {
	tracerCfg := tracing.NewDefaultConfig(serviceName)

	sh, err := tracing.InitTracer(tracerCfg)
	if err != nil {
		log.Fatalf("Failed to initialize the tracer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer sh(ctx)

	logger := logging.NewLogger(logging.NewDefaultConfig())
	defer logger.Sync()

	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	// Lifecycle event publishing is optional; a noop stands in when the
	// broker is not configured.
	var publisher events.RoomEvents = events.NoopPublisher{}
	if cfg.Messaging.Enabled {
		rabbitmq, err := messaging.NewRabbitMQ(cfg.Messaging.URI)
		if err != nil {
			log.Fatal(err)
		}
		defer rabbitmq.Close()

		publisher = events.NewRoomPublisher(rabbitmq)

		roomConsumer := events.NewRoomConsumer(rabbitmq)
		go func() {
			if err := roomConsumer.Listen(); err != nil {
				logger.Errorw("room event consumer stopped", "error", err)
			}
		}()
	}

	roomRegistry := registry.New(cfg.Rooms.IdleExpiry, logger)
	members := membership.NewManager(cfg.Members.GraceWindow, roomRegistry.Exists, logger)
	roomRegistry.SetOnlineCounter(members.OnlineCount)

	fanout := application.NewFanout(members, publisher, logger)
	members.SetPresenceFunc(fanout.OnPresence)

	coordinator := application.NewCoordinator(roomRegistry, fanout, cfg.Sync.MaxSkew, logger)
	chat := application.NewChatRelay(roomRegistry, fanout, cfg.Chat.Retention, cfg.Chat.MaxTextRunes, logger)

	roomRegistry.AddEvictHook(members.DropRoom)
	roomRegistry.AddEvictHook(chat.DropRoom)
	roomRegistry.AddExpireHook(fanout.OnRoomExpired)
	go roomRegistry.Run(ctx, cfg.Rooms.SweepInterval)

	intentLimiter := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: cfg.Sync.IntentPerSecond,
	})
	chatLimiter := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: (cfg.Chat.RatePerMinute + 59) / 60,
		MaxBurst:         cfg.Chat.RatePerMinute,
	})

	session := application.NewSession(roomRegistry, members, coordinator, chat, intentLimiter, chatLimiter, logger)
	gateway := ws.NewGateway(logger)

	var snapshotRepo domain.RoomSnapshotRepository
	if cfg.Persistence.Enabled {
		database, disconnect, err := db.Connect(ctx)
		if err != nil {
			log.Fatal(err)
		}
		defer disconnect(context.Background())

		snapshotRepo = repository.NewRoomSnapshotRepository(database)
		if err := snapshotRepo.EnsureIndexes(ctx); err != nil {
			log.Fatal(err)
		}

		snapshotter := application.NewSnapshotter(roomRegistry, members, snapshotRepo, cfg.Persistence.Interval, logger)
		go snapshotter.Run(ctx)
	}

	roomHandler := rooms.NewHandler(
		cfg.HTTP.PublicURL,
		roomRegistry,
		members,
		session,
		chat,
		fanout,
		gateway,
		publisher,
		snapshotRepo,
		logger,
	)
	healthHandler := health.NewHandler(roomRegistry)

	rl := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: cfg.RateLimiter.MaxRatePerSecond,
		MaxBurst:         cfg.RateLimiter.MaxBurst,
		CacheTTL:         cfg.RateLimiter.CacheTTL,
		SourceHeaderKey:  cfg.RateLimiter.SourceHeaderKey,
	})
	app := api.NewApplication(*cfg, *roomHandler, *healthHandler, logger, rl)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.Mount()
	logger.Fatal(app.Run(mux))
}
