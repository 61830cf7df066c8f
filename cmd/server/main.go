package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/umar/forum-livechat/internal/auth"
	"github.com/umar/forum-livechat/internal/chat"
	"github.com/umar/forum-livechat/internal/config"
	"github.com/umar/forum-livechat/internal/database"
	"github.com/umar/forum-livechat/internal/handlers"
	"github.com/umar/forum-livechat/internal/middleware"
	"github.com/umar/forum-livechat/internal/models"
	redisc "github.com/umar/forum-livechat/internal/redis"
	"github.com/umar/forum-livechat/internal/rooms"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		slog.Error("chat server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	slog.Info("starting chat server", "port", cfg.Port, "require_token", cfg.RequireToken)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := rooms.NewRegistry(rooms.WithTTL(cfg.RoomTTL))
	presence := rooms.NewPresence(registry)
	opts := chat.Options{
		Logger:          logger,
		SendBuffer:      cfg.SendBuffer,
		EventsPerSecond: cfg.EventsPerSecond,
		EventBurst:      cfg.EventBurst,
	}

	var listEvents handlers.EventLister
	var journal *database.Journal
	if cfg.DatabaseURL != "" {
		db, err := database.InitDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		slog.Info("connected to PostgreSQL")

		if err := database.RunMigrations(ctx, db); err != nil {
			return err
		}
		journal = database.NewJournal(db, logger)
		opts.Journal = journal
		listEvents = func(ctx context.Context, roomID string, limit int) ([]models.RoomEvent, error) {
			return database.ListRoomEvents(ctx, db, roomID, limit)
		}
	}

	var mirror *redisc.PresenceMirror
	if cfg.RedisURL != "" {
		redisClient, err := redisc.InitRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		slog.Info("connected to Redis")

		mirror = redisc.NewPresenceMirror(redisClient, logger)
		opts.Mirror = mirror
	}

	hub := chat.NewHub(registry, presence, opts)
	sweeper, err := chat.NewSweeper(hub, cfg.SweepSpec, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(cfg, hub, registry, presence, listEvents),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	if journal != nil {
		g.Go(func() error { return journal.Run(gctx) })
	}
	if mirror != nil {
		g.Go(func() error { return mirror.Run(gctx) })
	}

	sweeper.Start()
	defer sweeper.Stop()

	g.Go(func() error {
		slog.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}

func newRouter(cfg *config.Config, hub *chat.Hub, registry *rooms.Registry, presence *rooms.Presence, listEvents handlers.EventLister) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.CORS(cfg.CORSOrigin))

	// Public routes
	router.HandleFunc("/health", handlers.Health).Methods("GET", "OPTIONS")

	// WebSocket
	router.HandleFunc("/ws", chat.ServeWS(hub, cfg.JWTSecret, cfg.RequireToken)).Methods("GET")

	// Protected routes
	protected := router.PathPrefix("/api/chat").Subrouter()
	protected.Use(auth.JWTMiddleware(cfg.JWTSecret))

	protected.HandleFunc("/me", auth.MeHandler()).Methods("GET", "OPTIONS")
	protected.HandleFunc("/rooms", handlers.ListRooms(registry, presence)).Methods("GET", "OPTIONS")
	protected.HandleFunc("/rooms/{id}", handlers.GetRoom(registry, presence)).Methods("GET", "OPTIONS")
	protected.HandleFunc("/rooms/{id}/messages", handlers.GetMessages(registry, presence)).Methods("GET", "OPTIONS")
	protected.HandleFunc("/rooms/{id}/members", handlers.GetMembers(presence)).Methods("GET", "OPTIONS")
	if listEvents != nil {
		protected.HandleFunc("/rooms/{id}/events", handlers.GetRoomEvents(listEvents)).Methods("GET", "OPTIONS")
	}

	return router
}
