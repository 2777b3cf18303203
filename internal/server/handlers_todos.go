package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Niza-Khunga/collaborative-todo/internal/domain"
	apperrors "github.com/Niza-Khunga/collaborative-todo/internal/errors"
)

type createTodoRequest struct {
	Content  string `json:"content"`
	Position int    `json:"position"`
}

type reorderRequest struct {
	Entries []domain.ReorderEntry `json:"entries"`
	// ExpectedVersion enables the optimistic concurrency check when
	// set; omitted means apply unconditionally.
	ExpectedVersion *int64 `json:"expected_version"`
}

func (s *Server) handleTodos(c echo.Context) error {
	listID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	todos, err := s.app.Todos(c.Request().Context(), listID, currentUserID(c))
	if err != nil {
		return err
	}
	if todos == nil {
		todos = []domain.Todo{}
	}
	return c.JSON(http.StatusOK, todos)
}

func (s *Server) handleCreateTodo(c echo.Context) error {
	listID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	var req createTodoRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	todo, err := s.app.CreateTodo(c.Request().Context(), listID, currentUserID(c), req.Content, req.Position)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, todo)
}

func (s *Server) handleUpdateTodo(c echo.Context) error {
	todoID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	var patch domain.TodoPatch
	if err := c.Bind(&patch); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	todo, err := s.app.UpdateTodo(c.Request().Context(), todoID, currentUserID(c), patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, todo)
}

func (s *Server) handleDeleteTodo(c echo.Context) error {
	todoID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	if err := s.app.DeleteTodo(c.Request().Context(), todoID, currentUserID(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleReorderTodos(c echo.Context) error {
	listID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	var req reorderRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	expectedVersion := int64(-1)
	if req.ExpectedVersion != nil {
		expectedVersion = *req.ExpectedVersion
	}

	result, err := s.app.ReorderTodos(c.Request().Context(), listID, currentUserID(c), req.Entries, expectedVersion)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
