package app

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"

	"github.com/Niza-Khunga/collaborative-todo/internal/domain"
	"github.com/Niza-Khunga/collaborative-todo/internal/errors"
)

// role is the caller's relationship to a list, decided per request.
type role int

const (
	roleNone role = iota
	roleCollaborator
	roleOwner
)

// authorizeList resolves the caller's role on a list. Lists the caller
// cannot see report not-found rather than forbidden, so outsiders
// cannot probe which list IDs exist.
func (s *Service) authorizeList(ctx context.Context, listID, userID uuid.UUID) (*domain.List, role, error) {
	list, err := s.lists.GetByID(ctx, listID)
	if stderrors.Is(err, domain.ErrListNotFound) {
		return nil, roleNone, errors.NotFoundError("list not found")
	}
	if err != nil {
		return nil, roleNone, errors.InternalError("failed to load list", err)
	}

	if list.OwnerID == userID {
		return list, roleOwner, nil
	}

	ok, err := s.lists.IsCollaborator(ctx, listID, userID)
	if err != nil {
		return nil, roleNone, errors.InternalError("failed to check collaborator grant", err)
	}
	if ok {
		return list, roleCollaborator, nil
	}

	return nil, roleNone, errors.NotFoundError("list not found")
}

// authorizeOwner is authorizeList restricted to the owner. Collaborators
// get forbidden: they can see the list, so hiding it would be pointless.
func (s *Service) authorizeOwner(ctx context.Context, listID, userID uuid.UUID) (*domain.List, error) {
	list, r, err := s.authorizeList(ctx, listID, userID)
	if err != nil {
		return nil, err
	}
	if r != roleOwner {
		return nil, errors.ForbiddenError("only the list owner may do this")
	}
	return list, nil
}

// authorizeTodo checks item-level rights: owners may mutate any todo in
// their list, collaborators only the todos they created themselves.
func (s *Service) authorizeTodo(ctx context.Context, todoID, userID uuid.UUID) (*domain.Todo, *domain.List, error) {
	todo, err := s.todos.GetByID(ctx, todoID)
	if stderrors.Is(err, domain.ErrTodoNotFound) {
		return nil, nil, errors.NotFoundError("todo not found")
	}
	if err != nil {
		return nil, nil, errors.InternalError("failed to load todo", err)
	}

	list, r, err := s.authorizeList(ctx, todo.ListID, userID)
	if err != nil {
		return nil, nil, err
	}
	if r == roleCollaborator && todo.UserID != userID {
		return nil, nil, errors.ForbiddenError("collaborators may only modify their own todos")
	}

	return todo, list, nil
}
