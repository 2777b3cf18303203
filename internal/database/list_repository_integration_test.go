package database

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Niza-Khunga/collaborative-todo/internal/domain"
)

func TestUserRepo_CreateAndGet(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewUserRepo(pool)
	ctx := context.Background()

	user, err := repo.Create(ctx, "ada", "ada@example.com", "hash")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "ada", user.Username)

	byID, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, byID.Email)

	byEmail, err := repo.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
}

func TestUserRepo_DuplicateEmail(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewUserRepo(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, "ada", "taken@example.com", "hash")
	require.NoError(t, err)

	_, err = repo.Create(ctx, "eva", "taken@example.com", "hash")
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestUserRepo_NotFound(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewUserRepo(pool)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestListRepo_CreateRenameDelete(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewListRepo(pool)
	ctx := context.Background()

	user := CreateTestUser(t, pool, "lists@example.com")

	list, err := repo.Create(ctx, "groceries", user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, list.OwnerID)
	assert.Equal(t, int64(0), list.Version)

	renamed, err := repo.Rename(ctx, list.ID, "weekly groceries")
	require.NoError(t, err)
	assert.Equal(t, "weekly groceries", renamed.Name)

	require.NoError(t, repo.Delete(ctx, list.ID))
	assert.ErrorIs(t, repo.Delete(ctx, list.ID), domain.ErrListNotFound)
}

func TestListRepo_DeleteCascadesTodos(t *testing.T) {
	pool := setupTestDB(t)
	listRepo := NewListRepo(pool)
	todoRepo := NewTodoRepo(pool)
	ctx := context.Background()

	user := CreateTestUser(t, pool, "cascade@example.com")
	list := CreateTestList(t, pool, user.ID, "doomed")
	todo := CreateTestTodo(t, pool, list.ID, user.ID, "goes with it", 1)

	require.NoError(t, listRepo.Delete(ctx, list.ID))

	_, err := todoRepo.GetByID(ctx, todo.ID)
	assert.ErrorIs(t, err, domain.ErrTodoNotFound)
}

func TestListRepo_ListByUserIncludesSharedLists(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewListRepo(pool)
	ctx := context.Background()

	owner := CreateTestUser(t, pool, "owner@example.com")
	collab := CreateTestUser(t, pool, "collab@example.com")

	owned := CreateTestList(t, pool, owner.ID, "owned")
	shared := CreateTestList(t, pool, owner.ID, "shared")
	CreateTestList(t, pool, owner.ID, "not shared")

	_, err := repo.AddCollaborator(ctx, shared.ID, collab.ID)
	require.NoError(t, err)

	ownerLists, err := repo.ListByUser(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, ownerLists, 3)

	collabLists, err := repo.ListByUser(ctx, collab.ID)
	require.NoError(t, err)
	require.Len(t, collabLists, 1)
	assert.Equal(t, shared.ID, collabLists[0].ID)
	assert.NotEqual(t, owned.ID, collabLists[0].ID)
}

func TestListRepo_CollaboratorGrants(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewListRepo(pool)
	ctx := context.Background()

	owner := CreateTestUser(t, pool, "grantowner@example.com")
	collab := CreateTestUser(t, pool, "grantee@example.com")
	list := CreateTestList(t, pool, owner.ID, "granted")

	ok, err := repo.IsCollaborator(ctx, list.ID, collab.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	grant, err := repo.AddCollaborator(ctx, list.ID, collab.ID)
	require.NoError(t, err)
	assert.Equal(t, list.ID, grant.ListID)
	assert.Equal(t, collab.ID, grant.UserID)

	ok, err = repo.IsCollaborator(ctx, list.ID, collab.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// At most one grant per (list, user)
	_, err = repo.AddCollaborator(ctx, list.ID, collab.ID)
	assert.ErrorIs(t, err, domain.ErrDuplicateGrant)
}
