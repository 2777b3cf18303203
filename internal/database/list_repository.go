package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Niza-Khunga/collaborative-todo/internal/domain"
)

// listColumns must match the Scan order in scanList.
const listColumns = `id, name, owner_id, version, created_at, updated_at`

// ListRepo implements domain.ListRepository backed by PostgreSQL.
type ListRepo struct {
	pool *pgxpool.Pool
}

func NewListRepo(pool *pgxpool.Pool) *ListRepo {
	return &ListRepo{pool: pool}
}

func scanList(row pgx.Row) (*domain.List, error) {
	var list domain.List
	err := row.Scan(
		&list.ID, &list.Name, &list.OwnerID, &list.Version,
		&list.CreatedAt, &list.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &list, nil
}

func (r *ListRepo) Create(ctx context.Context, name string, ownerID uuid.UUID) (*domain.List, error) {
	list, err := scanList(r.pool.QueryRow(ctx, `
		INSERT INTO lists (name, owner_id)
		VALUES ($1, $2)
		RETURNING `+listColumns,
		name, ownerID))
	if err != nil {
		return nil, fmt.Errorf("failed to create list: %w", err)
	}
	return list, nil
}

func (r *ListRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.List, error) {
	list, err := scanList(r.pool.QueryRow(ctx,
		`SELECT `+listColumns+` FROM lists WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrListNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get list by ID: %w", err)
	}
	return list, nil
}

// ListByUser returns lists the user owns plus lists they hold a
// collaborator grant for, newest first.
func (r *ListRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.List, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+listColumns+` FROM lists
		WHERE owner_id = $1
		   OR id IN (SELECT list_id FROM list_collaborators WHERE user_id = $1)
		ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lists: %w", err)
	}
	defer rows.Close()

	var lists []domain.List
	for rows.Next() {
		list, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan list: %w", err)
		}
		lists = append(lists, *list)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lists: %w", err)
	}
	return lists, nil
}

func (r *ListRepo) Rename(ctx context.Context, id uuid.UUID, name string) (*domain.List, error) {
	list, err := scanList(r.pool.QueryRow(ctx, `
		UPDATE lists SET name = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+listColumns,
		name, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrListNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to rename list: %w", err)
	}
	return list, nil
}

// Delete removes the list; todos and grants go with it via ON DELETE
// CASCADE.
func (r *ListRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM lists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete list: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrListNotFound
	}
	return nil
}

func (r *ListRepo) AddCollaborator(ctx context.Context, listID, userID uuid.UUID) (*domain.Collaborator, error) {
	var grant domain.Collaborator
	err := r.pool.QueryRow(ctx, `
		INSERT INTO list_collaborators (list_id, user_id)
		VALUES ($1, $2)
		RETURNING list_id, user_id, created_at`,
		listID, userID).Scan(&grant.ListID, &grant.UserID, &grant.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return nil, domain.ErrDuplicateGrant
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add collaborator: %w", err)
	}
	return &grant, nil
}

func (r *ListRepo) IsCollaborator(ctx context.Context, listID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM list_collaborators WHERE list_id = $1 AND user_id = $2
		)`,
		listID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check collaborator grant: %w", err)
	}
	return exists, nil
}
