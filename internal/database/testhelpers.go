package database

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/Niza-Khunga/collaborative-todo/internal/domain"
)

// CreateTestUser creates a user with default values for testing.
func CreateTestUser(t *testing.T, pool *pgxpool.Pool, email string) *domain.User {
	t.Helper()

	repo := NewUserRepo(pool)
	user, err := repo.Create(context.Background(), "testuser", email, "not-a-real-hash")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, user.ID)

	return user
}

// CreateTestList creates a list owned by the given user.
func CreateTestList(t *testing.T, pool *pgxpool.Pool, ownerID uuid.UUID, name string) *domain.List {
	t.Helper()

	repo := NewListRepo(pool)
	list, err := repo.Create(context.Background(), name, ownerID)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, list.ID)

	return list
}

// CreateTestTodo creates a todo in the given list.
func CreateTestTodo(t *testing.T, pool *pgxpool.Pool, listID, userID uuid.UUID, content string, position int) *domain.Todo {
	t.Helper()

	repo := NewTodoRepo(pool)
	todo, err := repo.Create(context.Background(), listID, userID, content, false, position)
	require.NoError(t, err)

	return todo
}
