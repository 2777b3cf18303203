package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apperrors "github.com/Niza-Khunga/collaborative-todo/internal/errors"
)

type listRequest struct {
	Name string `json:"name"`
}

type collaboratorRequest struct {
	Email string `json:"email"`
}

func pathUUID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperrors.ValidationError("invalid " + name + " parameter")
	}
	return id, nil
}

func (s *Server) handleLists(c echo.Context) error {
	lists, err := s.app.Lists(c.Request().Context(), currentUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, lists)
}

func (s *Server) handleCreateList(c echo.Context) error {
	var req listRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	list, err := s.app.CreateList(c.Request().Context(), currentUserID(c), req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, list)
}

func (s *Server) handleGetList(c echo.Context) error {
	listID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	list, err := s.app.GetList(c.Request().Context(), listID, currentUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) handleRenameList(c echo.Context) error {
	listID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	var req listRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	list, err := s.app.RenameList(c.Request().Context(), listID, currentUserID(c), req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) handleDeleteList(c echo.Context) error {
	listID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	if err := s.app.DeleteList(c.Request().Context(), listID, currentUserID(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleAddCollaborator(c echo.Context) error {
	listID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	var req collaboratorRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	collab, err := s.app.AddCollaborator(c.Request().Context(), listID, currentUserID(c), req.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, collab)
}
