package database

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Niza-Khunga/collaborative-todo/internal/domain"
)

func TestTodoRepo_CreateAndList(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewTodoRepo(pool)
	ctx := context.Background()

	user := CreateTestUser(t, pool, "todos@example.com")
	list := CreateTestList(t, pool, user.ID, "groceries")

	first, err := repo.Create(ctx, list.ID, user.ID, "milk", false, 1)
	require.NoError(t, err)
	assert.Equal(t, "milk", first.Content)
	assert.Equal(t, 1, first.Position)
	assert.False(t, first.IsCompleted)

	_, err = repo.Create(ctx, list.ID, user.ID, "eggs", false, 2)
	require.NoError(t, err)

	todos, err := repo.ListByList(ctx, list.ID)
	require.NoError(t, err)
	require.Len(t, todos, 2)
	assert.Equal(t, "milk", todos[0].Content)
	assert.Equal(t, "eggs", todos[1].Content)
}

func TestTodoRepo_MaxPosition(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewTodoRepo(pool)
	ctx := context.Background()

	user := CreateTestUser(t, pool, "maxpos@example.com")
	list := CreateTestList(t, pool, user.ID, "positions")

	// Empty list reports 0
	maxPos, err := repo.MaxPosition(ctx, list.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, maxPos)

	CreateTestTodo(t, pool, list.ID, user.ID, "a", 3)
	CreateTestTodo(t, pool, list.ID, user.ID, "b", 7)

	maxPos, err = repo.MaxPosition(ctx, list.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, maxPos)
}

func TestTodoRepo_UpdateSparsePatch(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewTodoRepo(pool)
	ctx := context.Background()

	user := CreateTestUser(t, pool, "patch@example.com")
	list := CreateTestList(t, pool, user.ID, "patching")
	todo := CreateTestTodo(t, pool, list.ID, user.ID, "original", 1)

	done := true
	updated, err := repo.Update(ctx, todo.ID, domain.TodoPatch{IsCompleted: &done})
	require.NoError(t, err)
	assert.True(t, updated.IsCompleted)
	assert.Equal(t, "original", updated.Content, "unset fields must not change")
	assert.Equal(t, 1, updated.Position)

	content := "rewritten"
	updated, err = repo.Update(ctx, todo.ID, domain.TodoPatch{Content: &content})
	require.NoError(t, err)
	assert.Equal(t, "rewritten", updated.Content)
	assert.True(t, updated.IsCompleted, "earlier patch must survive")
}

func TestTodoRepo_UpdateMissing(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewTodoRepo(pool)
	ctx := context.Background()

	content := "ghost"
	_, err := repo.Update(ctx, uuid.New(), domain.TodoPatch{Content: &content})
	assert.ErrorIs(t, err, domain.ErrTodoNotFound)
}

func TestTodoRepo_ConcurrentUpdatesLastWriterWins(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewTodoRepo(pool)
	ctx := context.Background()

	user := CreateTestUser(t, pool, "race@example.com")
	list := CreateTestList(t, pool, user.ID, "racing")
	todo := CreateTestTodo(t, pool, list.ID, user.ID, "original", 1)

	first, second := "from first writer", "from second writer"
	errs := make([]error, 2)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = repo.Update(ctx, todo.ID, domain.TodoPatch{Content: &first})
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = repo.Update(ctx, todo.ID, domain.TodoPatch{Content: &second})
	}()
	wg.Wait()

	// Neither writer fails, the row ends up holding exactly one of
	// the two contents.
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	final, err := repo.GetByID(ctx, todo.ID)
	require.NoError(t, err)
	assert.Contains(t, []string{first, second}, final.Content)
}

func TestTodoRepo_Delete(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewTodoRepo(pool)
	ctx := context.Background()

	user := CreateTestUser(t, pool, "delete@example.com")
	list := CreateTestList(t, pool, user.ID, "deleting")
	todo := CreateTestTodo(t, pool, list.ID, user.ID, "doomed", 1)

	require.NoError(t, repo.Delete(ctx, todo.ID))
	assert.ErrorIs(t, repo.Delete(ctx, todo.ID), domain.ErrTodoNotFound)
}

func TestTodoRepo_ReorderCommitsAtomically(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewTodoRepo(pool)
	ctx := context.Background()

	user := CreateTestUser(t, pool, "reorder@example.com")
	list := CreateTestList(t, pool, user.ID, "reordering")

	a := CreateTestTodo(t, pool, list.ID, user.ID, "A", 1)
	b := CreateTestTodo(t, pool, list.ID, user.ID, "B", 2)
	c := CreateTestTodo(t, pool, list.ID, user.ID, "C", 3)

	version, err := repo.Reorder(ctx, list.ID, []domain.ReorderEntry{
		{ID: b.ID, Position: 0},
		{ID: c.ID, Position: 1},
		{ID: a.ID, Position: 2},
	}, -1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	todos, err := repo.ListByList(ctx, list.ID)
	require.NoError(t, err)
	require.Len(t, todos, 3)
	assert.Equal(t, "B", todos[0].Content)
	assert.Equal(t, "C", todos[1].Content)
	assert.Equal(t, "A", todos[2].Content)
}

func TestTodoRepo_ReorderRollsBackOnForeignTodo(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewTodoRepo(pool)
	ctx := context.Background()

	user := CreateTestUser(t, pool, "rollback@example.com")
	list := CreateTestList(t, pool, user.ID, "mine")
	other := CreateTestList(t, pool, user.ID, "other")

	a := CreateTestTodo(t, pool, list.ID, user.ID, "A", 1)
	foreign := CreateTestTodo(t, pool, other.ID, user.ID, "X", 1)

	_, err := repo.Reorder(ctx, list.ID, []domain.ReorderEntry{
		{ID: a.ID, Position: 0},
		{ID: foreign.ID, Position: 1},
	}, -1)
	assert.ErrorIs(t, err, domain.ErrTodoNotFound)

	// The valid entry must not have been applied
	todos, err := repo.ListByList(ctx, list.ID)
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, 1, todos[0].Position)

	// And the list version must be untouched
	fresh, err := NewListRepo(pool).GetByID(ctx, list.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), fresh.Version)
}

func TestTodoRepo_ReorderVersionCheck(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewTodoRepo(pool)
	ctx := context.Background()

	user := CreateTestUser(t, pool, "version@example.com")
	list := CreateTestList(t, pool, user.ID, "versioned")
	a := CreateTestTodo(t, pool, list.ID, user.ID, "A", 1)

	batch := []domain.ReorderEntry{{ID: a.ID, Position: 0}}

	version, err := repo.Reorder(ctx, list.ID, batch, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	_, err = repo.Reorder(ctx, list.ID, batch, 0)
	assert.ErrorIs(t, err, domain.ErrVersionMismatch)

	// Disabled check still applies
	version, err = repo.Reorder(ctx, list.ID, batch, -1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
}

func TestTodoRepo_ReorderUnknownList(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewTodoRepo(pool)
	ctx := context.Background()

	_, err := repo.Reorder(ctx, uuid.New(), []domain.ReorderEntry{{ID: uuid.New(), Position: 0}}, -1)
	assert.ErrorIs(t, err, domain.ErrListNotFound)
}
