package api

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hilthontt/tunesync/internal/infrastructure/configs"
	"github.com/hilthontt/tunesync/internal/infrastructure/logging"
	"github.com/hilthontt/tunesync/internal/infrastructure/ratelimiter"
	healthHandler "github.com/hilthontt/tunesync/internal/presentation/handler/health"
	roomHandler "github.com/hilthontt/tunesync/internal/presentation/handler/rooms"
	songHandler "github.com/hilthontt/tunesync/internal/presentation/handler/songs"
)

type Application struct {
	config        configs.Config
	roomHandler   *roomHandler.Handler
	songHandler   *songHandler.Handler
	healthHandler *healthHandler.Handler
	logger        logging.Logger
	ratelimiter   *ratelimiter.FixedWindowRateLimiter
}

func NewApplication(
	config configs.Config,
	roomHandler *roomHandler.Handler,
	songHandler *songHandler.Handler,
	healthHandler *healthHandler.Handler,
	logger logging.Logger,
	ratelimiter *ratelimiter.FixedWindowRateLimiter,
) *Application {
	return &Application{
		config:        config,
		roomHandler:   roomHandler,
		songHandler:   songHandler,
		healthHandler: healthHandler,
		logger:        logger,
		ratelimiter:   ratelimiter,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(app.rateLimiterMiddleware)
	r.Use(app.enableCors)
	r.Use(app.loggerMiddleware)
	r.Use(app.prometheusMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Route("/rooms", func(r chi.Router) {
			r.Post("/", app.roomHandler.CreateRoomHandler)
			r.Get("/{roomId}", app.roomHandler.GetRoomHandler)
			r.Get("/{roomId}/exists", app.roomHandler.CheckRoomHandler)
			r.Get("/{roomId}/name-available", app.roomHandler.NameAvailableHandler)
			r.Get("/{roomId}/members", app.roomHandler.GetMembersHandler)
			r.Get("/{roomId}/ws", app.roomHandler.JoinRoomHandler)
			r.Post("/{roomId}/members/remove", app.roomHandler.RemoveMemberHandler)
			r.Post("/{roomId}/leave", app.roomHandler.LeaveRoomHandler)

			r.Get("/{roomId}/songs", app.songHandler.ListSongsHandler)
			r.Post("/{roomId}/songs", app.songHandler.AddSongHandler)
			r.Delete("/{roomId}/songs", app.songHandler.RemoveSongHandler)
			r.Post("/{roomId}/songs/upload", app.songHandler.UploadSongHandler)
		})

		r.Get("/health", app.healthHandler.GetHealth)
		r.Get("/healthz", app.healthHandler.GetHealth)
		r.Get("/ready", app.healthHandler.GetHealth)
		r.Get("/live", app.healthHandler.GetHealth)
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/debug/vars", expvar.Handler())

	// Locally stored uploads are streamed from here.
	if app.config.Blob.Backend == "local" {
		fileServer := http.StripPrefix("/files/", http.FileServer(http.Dir(app.config.Blob.Dir)))
		r.Handle("/files/*", fileServer)
	}

	return otelhttp.NewHandler(r, "tunesync.http")
}

func (app *Application) Run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
		Handler:      mux,
		WriteTimeout: app.config.HTTP.WriteTimeout,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Info(logging.General, logging.Shutdown, "signal caught", map[logging.ExtraKey]any{
			"signal": s.String(),
		})

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "server has stopped", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	return nil
}
