package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Niza-Khunga/collaborative-todo/internal/app"
	"github.com/Niza-Khunga/collaborative-todo/internal/auth"
	"github.com/Niza-Khunga/collaborative-todo/internal/config"
	"github.com/Niza-Khunga/collaborative-todo/internal/database"
	"github.com/Niza-Khunga/collaborative-todo/internal/logging"
	"github.com/Niza-Khunga/collaborative-todo/internal/relay"
	"github.com/Niza-Khunga/collaborative-todo/internal/room"
	"github.com/Niza-Khunga/collaborative-todo/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(cfg *config.Config) *goredis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := relay.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *server.Server, hub *room.Hub, rly *relay.Relay) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		hub.Stop()
		if rly != nil {
			rly.Close()
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	// The relay is optional: a single-instance deployment runs without
	// Redis and skips cross-instance fan-out entirely.
	var rly *relay.Relay
	var redisClient *goredis.Client
	onRoomActive := func(listID uuid.UUID) {
		if rly != nil {
			rly.Subscribe(listID)
		}
	}
	onRoomEmpty := func(listID uuid.UUID) {
		if rly != nil {
			rly.Unsubscribe(listID)
		}
	}

	hub := room.NewHub(onRoomActive, onRoomEmpty, clock)

	if cfg.RedisURL != "" {
		redisClient = setupRedis(cfg)
		defer func() { _ = redisClient.Close() }()

		rly = relay.New(redisClient, hub)
		hub.SetForwarder(rly.Publish)
		slog.Info("Cross-instance relay enabled")
	}

	userRepo := database.NewUserRepo(pool)
	listRepo := database.NewListRepo(pool)
	todoRepo := database.NewTodoRepo(pool)

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	appSvc := app.NewService(userRepo, listRepo, todoRepo, room.NewPublisher(hub), tokens)

	// Pass nil explicitly when Redis is off to avoid a typed-nil interface.
	var srv *server.Server
	if redisClient != nil {
		srv = server.NewServer(cfg, appSvc, tokens, hub, pool, redisClient)
	} else {
		srv = server.NewServer(cfg, appSvc, tokens, hub, pool, nil)
	}

	done := runGracefulShutdown(srv, hub, rly)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
