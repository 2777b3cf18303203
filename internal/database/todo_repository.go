package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Niza-Khunga/collaborative-todo/internal/domain"
)

// todoColumns must match the Scan order in scanTodo.
const todoColumns = `id, list_id, user_id, content, is_completed, position, created_at, updated_at`

// TodoRepo implements domain.TodoRepository backed by PostgreSQL.
type TodoRepo struct {
	pool *pgxpool.Pool
}

func NewTodoRepo(pool *pgxpool.Pool) *TodoRepo {
	return &TodoRepo{pool: pool}
}

func scanTodo(row pgx.Row) (*domain.Todo, error) {
	var todo domain.Todo
	err := row.Scan(
		&todo.ID, &todo.ListID, &todo.UserID, &todo.Content,
		&todo.IsCompleted, &todo.Position, &todo.CreatedAt, &todo.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &todo, nil
}

func (r *TodoRepo) ListByList(ctx context.Context, listID uuid.UUID) ([]domain.Todo, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE list_id = $1 ORDER BY position ASC`, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to query todos: %w", err)
	}
	defer rows.Close()

	var todos []domain.Todo
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		todos = append(todos, *todo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate todos: %w", err)
	}
	return todos, nil
}

// MaxPosition returns 0 for an empty list, matching the allocator's
// empty-max convention.
func (r *TodoRepo) MaxPosition(ctx context.Context, listID uuid.UUID) (int, error) {
	var maxPos int
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(position), 0) FROM todos WHERE list_id = $1`, listID).Scan(&maxPos)
	if err != nil {
		return 0, fmt.Errorf("failed to get max position: %w", err)
	}
	return maxPos, nil
}

func (r *TodoRepo) Create(ctx context.Context, listID, userID uuid.UUID, content string, isCompleted bool, position int) (*domain.Todo, error) {
	todo, err := scanTodo(r.pool.QueryRow(ctx, `
		INSERT INTO todos (list_id, user_id, content, is_completed, position)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+todoColumns,
		listID, userID, content, isCompleted, position))
	if err != nil {
		return nil, fmt.Errorf("failed to create todo: %w", err)
	}
	return todo, nil
}

func (r *TodoRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Todo, error) {
	todo, err := scanTodo(r.pool.QueryRow(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTodoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get todo by ID: %w", err)
	}
	return todo, nil
}

// Update applies a sparse patch: COALESCE keeps any column whose patch
// field is nil.
func (r *TodoRepo) Update(ctx context.Context, id uuid.UUID, patch domain.TodoPatch) (*domain.Todo, error) {
	todo, err := scanTodo(r.pool.QueryRow(ctx, `
		UPDATE todos SET
			content = COALESCE($1, content),
			is_completed = COALESCE($2, is_completed),
			position = COALESCE($3, position),
			updated_at = NOW()
		WHERE id = $4
		RETURNING `+todoColumns,
		patch.Content, patch.IsCompleted, patch.Position, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTodoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}
	return todo, nil
}

func (r *TodoRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM todos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTodoNotFound
	}
	return nil
}

// Reorder applies every entry in one transaction: either all position
// updates commit together with a version bump, or none do. A missing
// or foreign todo aborts the batch with ErrTodoNotFound; a stale
// expectedVersion aborts with ErrVersionMismatch. expectedVersion < 0
// disables the check.
func (r *TodoRepo) Reorder(ctx context.Context, listID uuid.UUID, entries []domain.ReorderEntry, expectedVersion int64) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var version int64
	err = tx.QueryRow(ctx,
		`SELECT version FROM lists WHERE id = $1 FOR UPDATE`, listID).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrListNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to lock list: %w", err)
	}
	if expectedVersion >= 0 && version != expectedVersion {
		return 0, domain.ErrVersionMismatch
	}

	for _, e := range entries {
		tag, err := tx.Exec(ctx, `
			UPDATE todos SET position = $1, updated_at = NOW()
			WHERE id = $2 AND list_id = $3`,
			e.Position, e.ID, listID)
		if err != nil {
			return 0, fmt.Errorf("failed to reposition todo %s: %w", e.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return 0, domain.ErrTodoNotFound
		}
	}

	var newVersion int64
	err = tx.QueryRow(ctx, `
		UPDATE lists SET version = version + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING version`, listID).Scan(&newVersion)
	if err != nil {
		return 0, fmt.Errorf("failed to bump list version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit reorder: %w", err)
	}
	return newVersion, nil
}
