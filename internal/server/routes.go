package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Account routes (rate limited, no auth required)
	s.echo.POST("/api/auth/register", s.handleRegister, s.rateLimitAuth)
	s.echo.POST("/api/auth/login", s.handleLogin, s.rateLimitAuth)

	// List routes
	s.echo.GET("/api/lists", s.handleLists, s.requireAuth)
	s.echo.POST("/api/lists", s.handleCreateList, s.requireAuth)
	s.echo.GET("/api/lists/:id", s.handleGetList, s.requireAuth)
	s.echo.PUT("/api/lists/:id", s.handleRenameList, s.requireAuth)
	s.echo.DELETE("/api/lists/:id", s.handleDeleteList, s.requireAuth)
	s.echo.POST("/api/lists/:id/collaborators", s.handleAddCollaborator, s.requireAuth)

	// Todo routes
	s.echo.GET("/api/lists/:id/todos", s.handleTodos, s.requireAuth)
	s.echo.POST("/api/lists/:id/todos", s.handleCreateTodo, s.requireAuth)
	s.echo.PUT("/api/lists/:id/todos/reorder", s.handleReorderTodos, s.requireAuth)
	s.echo.PUT("/api/todos/:id", s.handleUpdateTodo, s.requireAuth)
	s.echo.DELETE("/api/todos/:id", s.handleDeleteTodo, s.requireAuth)

	// WebSocket endpoint (token via query param or header)
	s.echo.GET("/ws", s.handleWebSocket)
}
