package main

import (
	"context"
	"expvar"
	"log"
	"runtime"
	"time"

	"github.com/hilthontt/tunesync/internal/domain"
	"github.com/hilthontt/tunesync/internal/infrastructure/blob"
	"github.com/hilthontt/tunesync/internal/infrastructure/configs"
	"github.com/hilthontt/tunesync/internal/infrastructure/events"
	"github.com/hilthontt/tunesync/internal/infrastructure/logging"
	"github.com/hilthontt/tunesync/internal/infrastructure/messaging"
	"github.com/hilthontt/tunesync/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/tunesync/internal/infrastructure/repository"
	"github.com/hilthontt/tunesync/internal/infrastructure/tracing"
	"github.com/hilthontt/tunesync/internal/infrastructure/ws"
	"github.com/hilthontt/tunesync/internal/persistence/db"
	persistencerepo "github.com/hilthontt/tunesync/internal/persistence/repository"
	"github.com/hilthontt/tunesync/internal/presentation/api"
	"github.com/hilthontt/tunesync/internal/presentation/handler/health"
	"github.com/hilthontt/tunesync/internal/presentation/handler/rooms"
	"github.com/hilthontt/tunesync/internal/presentation/handler/songs"
)

const (
	serviceName = "tunesync-server"
)

func main() {
	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		FilePath: cfg.Logging.FilePath,
		Encoding: cfg.Logging.Encoding,
		Level:    cfg.Logging.Level,
		Logger:   cfg.Logging.Logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Tracing.Enabled {
		tracerCfg := tracing.NewDefaultConfig(serviceName)
		tracerCfg.Endpoint = cfg.Tracing.Endpoint

		sh, err := tracing.InitTracer(tracerCfg)
		if err != nil {
			log.Fatalf("Failed to initialize the tracer: %v", err)
		}
		defer sh(ctx)
	}

	var (
		roomRepository domain.RoomRepository
		songRepository domain.SongRepository
	)
	switch cfg.RoomStore.Backend {
	case "redis":
		roomRepository = repository.NewRedisRoomRepository(cfg.RoomStore.RedisAddr, cfg.RoomStore.RedisDB)
		songRepository = repository.NewRedisSongRepository(cfg.RoomStore.RedisAddr, cfg.RoomStore.RedisDB)
	default:
		roomRepository = repository.NewRoomRepository(cfg.RoomStore.Capacity)
		songRepository = repository.NewSongRepository()
		repository.BindSongCleanup(roomRepository, songRepository)
		repository.StartSweeper(ctx, roomRepository, 10*time.Minute)
	}

	publisher := ws.NoopPublisher

	if cfg.AMQP.Enabled {
		rabbitmq, err := messaging.NewRabbitMQ(cfg.AMQP.URL)
		if err != nil {
			log.Fatal(err)
		}
		defer rabbitmq.Close()

		log.Println("Starting RabbitMQ connection")

		auditPublisher := events.NewAuditPublisher(rabbitmq)
		defer auditPublisher.Close()
		publisher = auditPublisher

		mongoCfg := &db.MongoConfig{
			URI:               cfg.Mongo.URI,
			Database:          cfg.Mongo.Database,
			ConnectionTimeout: db.DefaultConnectionTimeout,
		}
		mongoClient, err := db.NewMongoClient(ctx, mongoCfg)
		if err != nil {
			log.Fatal(err)
		}
		defer db.DisconnectMongo(ctx, mongoClient)

		auditRepository := persistencerepo.NewEventAuditLogRepository(db.GetDatabase(mongoClient, mongoCfg))
		if err := auditRepository.EnsureIndexes(ctx); err != nil {
			log.Fatalf("Failed to ensure audit indexes: %v", err)
		}

		auditConsumer := events.NewAuditConsumer(rabbitmq, auditRepository)
		if err := auditConsumer.Listen(); err != nil {
			log.Fatalf("Failed to start audit consumer: %v", err)
		}
	}

	wsCore := ws.NewCore(roomRepository, publisher)
	go wsCore.Run()

	var blobStore blob.Store
	switch cfg.Blob.Backend {
	case "s3":
		blobStore, err = blob.NewS3Store(cfg.Blob.Region, cfg.Blob.Bucket)
	default:
		blobStore, err = blob.NewLocalStore(cfg.Blob.Dir, cfg.Blob.BaseURL)
	}
	if err != nil {
		log.Fatal(err)
	}

	roomHandler := rooms.NewHandler(roomRepository, songRepository, wsCore)
	songHandler := songs.NewHandler(songRepository, roomRepository, wsCore, blobStore)
	healthHandler := health.NewHandler()

	rl := ratelimiter.NewFixedWindowRateLimiter(cfg.RateLimiter.MaxBurst, time.Second)
	defer rl.Close()

	app := api.NewApplication(*cfg, roomHandler, songHandler, healthHandler, logger, rl)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.Mount()
	if err := app.Run(mux); err != nil {
		logger.Fatalf("server error: %v", err)
	}
}
