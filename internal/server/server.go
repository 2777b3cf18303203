// Package server wires the HTTP API, the WebSocket endpoint and the
// observability routes onto an Echo instance.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/Niza-Khunga/collaborative-todo/internal/app"
	"github.com/Niza-Khunga/collaborative-todo/internal/auth"
	"github.com/Niza-Khunga/collaborative-todo/internal/config"
	apperrors "github.com/Niza-Khunga/collaborative-todo/internal/errors"
	"github.com/Niza-Khunga/collaborative-todo/internal/room"
)

// requestLogFormat logs the request path instead of the full URI:
// the WebSocket endpoint accepts the bearer token as a query
// parameter, and query strings must never reach the logs.
const requestLogFormat = `{"time":"${time_rfc3339_nano}","id":"${id}","remote_ip":"${remote_ip}",` +
	`"host":"${host}","method":"${method}","path":"${path}","user_agent":"${user_agent}",` +
	`"status":${status},"error":"${error}","latency":${latency},"latency_human":"${latency_human}",` +
	`"bytes_in":${bytes_in},"bytes_out":${bytes_out}}` + "\n"

// postgresHealthChecker is a minimal interface for readiness checks.
type postgresHealthChecker interface {
	Ping(ctx context.Context) error
}

// redisHealthChecker is a minimal interface for readiness checks.
// Nil when the relay is not configured.
type redisHealthChecker interface {
	Ping(ctx context.Context) *goredis.StatusCmd
}

type Server struct {
	echo        *echo.Echo
	config      *config.Config
	app         *app.Service
	tokens      *auth.TokenService
	hub         *room.Hub
	db          postgresHealthChecker
	redis       redisHealthChecker
	authLimiter *ipRateLimiter
	startTime   time.Time
}

func NewServer(cfg *config.Config, appSvc *app.Service, tokens *auth.TokenService, hub *room.Hub, db postgresHealthChecker, redis redisHealthChecker) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{Format: requestLogFormat}))
	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:        e,
		config:      cfg,
		app:         appSvc,
		tokens:      tokens,
		hub:         hub,
		db:          db,
		redis:       redis,
		authLimiter: newIPRateLimiter(rate.Every(time.Second), 10),
		startTime:   time.Now(),
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
