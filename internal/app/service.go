// Package app implements the mutation coordinator: every state change
// runs through here in the fixed order authorize, validate, persist,
// broadcast. Events are only published after the store accepted the
// change, so no session ever sees an event for a mutation that did not
// happen.
package app

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/mail"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Niza-Khunga/collaborative-todo/internal/auth"
	"github.com/Niza-Khunga/collaborative-todo/internal/domain"
	"github.com/Niza-Khunga/collaborative-todo/internal/errors"
	"github.com/Niza-Khunga/collaborative-todo/internal/metrics"
)

const (
	maxContentLength  = 2000
	maxListNameLength = 200
	minPasswordLength = 8
)

// Service coordinates all mutations against the repositories and the
// event publisher.
type Service struct {
	users     domain.UserRepository
	lists     domain.ListRepository
	todos     domain.TodoRepository
	publisher domain.EventPublisher
	tokens    *auth.TokenService

	// listLocks serializes the reorder critical section per list, so
	// two concurrent reorders of the same list cannot interleave
	// between authorization and persistence.
	locksMu   sync.Mutex
	listLocks map[uuid.UUID]*sync.Mutex
}

func NewService(users domain.UserRepository, lists domain.ListRepository, todos domain.TodoRepository, publisher domain.EventPublisher, tokens *auth.TokenService) *Service {
	return &Service{
		users:     users,
		lists:     lists,
		todos:     todos,
		publisher: publisher,
		tokens:    tokens,
		listLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *Service) listLock(listID uuid.UUID) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.listLocks[listID]
	if !ok {
		lock = &sync.Mutex{}
		s.listLocks[listID] = lock
	}
	return lock
}

func record(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = string(errors.AsStructuredError(err).Type)
	}
	metrics.MutationsTotal.WithLabelValues(operation, outcome).Inc()
}

// AuthResult is a freshly authenticated account and its bearer token.
type AuthResult struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

// Register creates an account and signs the caller in.
func (s *Service) Register(ctx context.Context, username, email, password string) (result *AuthResult, err error) {
	defer func() { record("register", err) }()

	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))
	if username == "" {
		return nil, errors.ValidationError("username must not be empty")
	}
	if _, mailErr := mail.ParseAddress(email); mailErr != nil {
		return nil, errors.ValidationError("invalid email address")
	}
	if len(password) < minPasswordLength {
		return nil, errors.ValidationError("password must be at least 8 characters")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, errors.InternalError("failed to hash password", err)
	}

	user, err := s.users.Create(ctx, username, email, hash)
	if stderrors.Is(err, domain.ErrEmailTaken) {
		return nil, errors.ConflictError("email already registered")
	}
	if err != nil {
		return nil, errors.InternalError("failed to create user", err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, errors.InternalError("failed to issue token", err)
	}

	slog.Info("User registered", "user_id", user.ID.String())
	return &AuthResult{User: user, Token: token}, nil
}

// Login verifies credentials and returns a bearer token. Unknown email
// and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (result *AuthResult, err error) {
	defer func() { record("login", err) }()

	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.users.GetByEmail(ctx, email)
	if stderrors.Is(err, domain.ErrUserNotFound) {
		return nil, errors.UnauthorizedError("invalid email or password")
	}
	if err != nil {
		return nil, errors.InternalError("failed to load user", err)
	}

	if !auth.CheckPassword(password, user.PasswordHash) {
		return nil, errors.UnauthorizedError("invalid email or password")
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, errors.InternalError("failed to issue token", err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// CreateList creates a list owned by the caller.
func (s *Service) CreateList(ctx context.Context, userID uuid.UUID, name string) (list *domain.List, err error) {
	defer func() { record("create_list", err) }()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.ValidationError("list name must not be empty")
	}
	if len(name) > maxListNameLength {
		return nil, errors.ValidationError("list name too long")
	}

	list, err = s.lists.Create(ctx, name, userID)
	if err != nil {
		return nil, errors.InternalError("failed to create list", err)
	}
	slog.Info("List created", "list_id", list.ID.String(), "owner_id", userID.String())
	return list, nil
}

// Lists returns every list the caller owns or collaborates on.
func (s *Service) Lists(ctx context.Context, userID uuid.UUID) ([]domain.List, error) {
	lists, err := s.lists.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.InternalError("failed to list lists", err)
	}
	return lists, nil
}

// GetList returns a single list visible to the caller.
func (s *Service) GetList(ctx context.Context, listID, userID uuid.UUID) (*domain.List, error) {
	list, _, err := s.authorizeList(ctx, listID, userID)
	return list, err
}

// RenameList renames a list. Owner only.
func (s *Service) RenameList(ctx context.Context, listID, userID uuid.UUID, name string) (list *domain.List, err error) {
	defer func() { record("rename_list", err) }()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.ValidationError("list name must not be empty")
	}
	if len(name) > maxListNameLength {
		return nil, errors.ValidationError("list name too long")
	}

	if _, err = s.authorizeOwner(ctx, listID, userID); err != nil {
		return nil, err
	}

	list, err = s.lists.Rename(ctx, listID, name)
	if stderrors.Is(err, domain.ErrListNotFound) {
		return nil, errors.NotFoundError("list not found")
	}
	if err != nil {
		return nil, errors.InternalError("failed to rename list", err)
	}
	return list, nil
}

// DeleteList removes a list and everything in it. Owner only.
func (s *Service) DeleteList(ctx context.Context, listID, userID uuid.UUID) (err error) {
	defer func() { record("delete_list", err) }()

	if _, err = s.authorizeOwner(ctx, listID, userID); err != nil {
		return err
	}

	if err = s.lists.Delete(ctx, listID); err != nil {
		if stderrors.Is(err, domain.ErrListNotFound) {
			return errors.NotFoundError("list not found")
		}
		return errors.InternalError("failed to delete list", err)
	}
	slog.Info("List deleted", "list_id", listID.String())
	return nil
}

// AddCollaborator grants mutation rights on a list to the account
// behind the given email. Owner only.
func (s *Service) AddCollaborator(ctx context.Context, listID, ownerID uuid.UUID, email string) (collab *domain.Collaborator, err error) {
	defer func() { record("add_collaborator", err) }()

	if _, err = s.authorizeOwner(ctx, listID, ownerID); err != nil {
		return nil, err
	}

	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.users.GetByEmail(ctx, email)
	if stderrors.Is(err, domain.ErrUserNotFound) {
		return nil, errors.NotFoundError("no account with that email")
	}
	if err != nil {
		return nil, errors.InternalError("failed to look up user", err)
	}

	if user.ID == ownerID {
		return nil, errors.ValidationError("owner is already a member of the list")
	}

	collab, err = s.lists.AddCollaborator(ctx, listID, user.ID)
	if stderrors.Is(err, domain.ErrDuplicateGrant) {
		return nil, errors.ConflictError("user is already a collaborator")
	}
	if err != nil {
		return nil, errors.InternalError("failed to add collaborator", err)
	}

	slog.Info("Collaborator added", "list_id", listID.String(), "user_id", user.ID.String())
	return collab, nil
}

// Todos returns the list's todos in position order, visible to owner
// and collaborators.
func (s *Service) Todos(ctx context.Context, listID, userID uuid.UUID) ([]domain.Todo, error) {
	if _, _, err := s.authorizeList(ctx, listID, userID); err != nil {
		return nil, err
	}

	todos, err := s.todos.ListByList(ctx, listID)
	if err != nil {
		return nil, errors.InternalError("failed to list todos", err)
	}
	return todos, nil
}

// CreateTodo appends a todo to the list. A requested position beyond
// the current maximum is honored as-is; anything else lands one past
// the maximum. Pass requestedPosition 0 for a plain append.
func (s *Service) CreateTodo(ctx context.Context, listID, userID uuid.UUID, content string, requestedPosition int) (todo *domain.Todo, err error) {
	defer func() { record("create_todo", err) }()

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errors.ValidationError("todo content must not be empty")
	}
	if len(content) > maxContentLength {
		return nil, errors.ValidationError("todo content too long")
	}

	if _, _, err = s.authorizeList(ctx, listID, userID); err != nil {
		return nil, err
	}

	maxPos, err := s.todos.MaxPosition(ctx, listID)
	if err != nil {
		return nil, errors.InternalError("failed to get max position", err)
	}
	position := domain.NextPosition(maxPos, requestedPosition)

	todo, err = s.todos.Create(ctx, listID, userID, content, false, position)
	if err != nil {
		return nil, errors.InternalError("failed to create todo", err)
	}

	s.publisher.Publish(listID, domain.EventItemAdded, todo)
	return todo, nil
}

// UpdateTodo applies a sparse patch to a todo. Owners may update any
// todo in their list, collaborators only their own.
func (s *Service) UpdateTodo(ctx context.Context, todoID, userID uuid.UUID, patch domain.TodoPatch) (todo *domain.Todo, err error) {
	defer func() { record("update_todo", err) }()

	if patch.Empty() {
		return nil, errors.ValidationError("patch must set at least one field")
	}
	if patch.Content != nil {
		trimmed := strings.TrimSpace(*patch.Content)
		if trimmed == "" {
			return nil, errors.ValidationError("todo content must not be empty")
		}
		if len(trimmed) > maxContentLength {
			return nil, errors.ValidationError("todo content too long")
		}
		patch.Content = &trimmed
	}
	if patch.Position != nil && *patch.Position < 0 {
		return nil, errors.ValidationError("position must not be negative")
	}

	current, _, err := s.authorizeTodo(ctx, todoID, userID)
	if err != nil {
		return nil, err
	}

	todo, err = s.todos.Update(ctx, todoID, patch)
	if stderrors.Is(err, domain.ErrTodoNotFound) {
		return nil, errors.NotFoundError("todo not found")
	}
	if err != nil {
		return nil, errors.InternalError("failed to update todo", err)
	}

	s.publisher.Publish(current.ListID, domain.EventItemChanged, todo)
	return todo, nil
}

// DeleteTodo removes a todo. Same item-level rule as UpdateTodo.
func (s *Service) DeleteTodo(ctx context.Context, todoID, userID uuid.UUID) (err error) {
	defer func() { record("delete_todo", err) }()

	current, _, err := s.authorizeTodo(ctx, todoID, userID)
	if err != nil {
		return err
	}

	if err = s.todos.Delete(ctx, todoID); err != nil {
		if stderrors.Is(err, domain.ErrTodoNotFound) {
			return errors.NotFoundError("todo not found")
		}
		return errors.InternalError("failed to delete todo", err)
	}

	s.publisher.Publish(current.ListID, domain.EventItemRemoved, map[string]any{"id": current.ID, "list_id": current.ListID})
	return nil
}

// ReorderResult is the committed outcome of a reorder.
type ReorderResult struct {
	ListID  uuid.UUID             `json:"list_id"`
	Entries []domain.ReorderEntry `json:"entries"`
	Version int64                 `json:"version"`
}

// ReorderTodos atomically re-assigns every todo in the batch its new
// position and bumps the list version. The batch must be a complete
// permutation of positions 0..n-1 over distinct todos. Pass
// expectedVersion < 0 to skip the optimistic version check.
func (s *Service) ReorderTodos(ctx context.Context, listID, userID uuid.UUID, entries []domain.ReorderEntry, expectedVersion int64) (result *ReorderResult, err error) {
	defer func() { record("reorder_todos", err) }()

	if len(entries) == 0 {
		return nil, errors.ValidationError("reorder batch must not be empty")
	}

	normalized, err := domain.NormalizeReorder(entries)
	if err != nil {
		return nil, errors.ValidationError(err.Error())
	}

	if _, _, err = s.authorizeList(ctx, listID, userID); err != nil {
		return nil, err
	}

	lock := s.listLock(listID)
	lock.Lock()
	defer lock.Unlock()

	version, err := s.todos.Reorder(ctx, listID, normalized, expectedVersion)
	switch {
	case stderrors.Is(err, domain.ErrListNotFound):
		return nil, errors.NotFoundError("list not found")
	case stderrors.Is(err, domain.ErrTodoNotFound):
		return nil, errors.ValidationError("reorder batch references a todo not in this list")
	case stderrors.Is(err, domain.ErrVersionMismatch):
		return nil, errors.ConflictError("list was reordered by someone else").WithContext("expected_version", expectedVersion)
	case err != nil:
		return nil, errors.InternalError("failed to reorder todos", err)
	}

	result = &ReorderResult{ListID: listID, Entries: normalized, Version: version}
	s.publisher.Publish(listID, domain.EventItemsReordered, result)
	slog.Debug("List reordered", "list_id", listID.String(), "entries", len(normalized), "version", version)
	return result, nil
}
