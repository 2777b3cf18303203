// Package domain holds the core entities and the interfaces the
// coordinator depends on. Repositories and publishers are implemented
// in internal/database, internal/room and internal/relay.
package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User is a registered account.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// List is a named, owned collection of ordered todos. Version is
// bumped by every successful reorder and lets clients detect stale
// orderings.
type List struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Todo is a single orderable entry within a list.
type Todo struct {
	ID          uuid.UUID `json:"id"`
	ListID      uuid.UUID `json:"list_id"`
	UserID      uuid.UUID `json:"user_id"`
	Content     string    `json:"content"`
	IsCompleted bool      `json:"is_completed"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Collaborator is a grant of mutation rights on a list, short of
// ownership. At most one grant per (list, user).
type Collaborator struct {
	ListID    uuid.UUID `json:"list_id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TodoPatch is a sparse update: nil fields are left untouched.
type TodoPatch struct {
	Content     *string `json:"content"`
	IsCompleted *bool   `json:"is_completed"`
	Position    *int    `json:"position"`
}

// Empty reports whether the patch would change nothing.
func (p TodoPatch) Empty() bool {
	return p.Content == nil && p.IsCompleted == nil && p.Position == nil
}

// ReorderEntry assigns a position to one todo within a reorder batch.
type ReorderEntry struct {
	ID       uuid.UUID `json:"id"`
	Position int       `json:"position"`
}

// UserRepository persists accounts.
type UserRepository interface {
	Create(ctx context.Context, username, email, passwordHash string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// ListRepository persists lists and collaborator grants.
type ListRepository interface {
	Create(ctx context.Context, name string, ownerID uuid.UUID) (*List, error)
	GetByID(ctx context.Context, id uuid.UUID) (*List, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]List, error)
	Rename(ctx context.Context, id uuid.UUID, name string) (*List, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AddCollaborator(ctx context.Context, listID, userID uuid.UUID) (*Collaborator, error)
	IsCollaborator(ctx context.Context, listID, userID uuid.UUID) (bool, error)
}

// TodoRepository persists todos. All writes return the canonical
// stored rows; timestamps and positions are repository-authoritative.
type TodoRepository interface {
	ListByList(ctx context.Context, listID uuid.UUID) ([]Todo, error)
	MaxPosition(ctx context.Context, listID uuid.UUID) (int, error)
	Create(ctx context.Context, listID, userID uuid.UUID, content string, isCompleted bool, position int) (*Todo, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Todo, error)
	Update(ctx context.Context, id uuid.UUID, patch TodoPatch) (*Todo, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// Reorder applies the whole batch in a single transaction and bumps
	// the list version. expectedVersion < 0 skips the version check.
	Reorder(ctx context.Context, listID uuid.UUID, entries []ReorderEntry, expectedVersion int64) (int64, error)
}

// Event kinds broadcast to list rooms.
const (
	EventItemAdded      = "item-added"
	EventItemChanged    = "item-changed"
	EventItemRemoved    = "item-removed"
	EventItemsReordered = "items-reordered"
)

// EventPublisher fans an event out to every session joined to the
// list's room. Delivery is fire-and-forget.
type EventPublisher interface {
	Publish(listID uuid.UUID, event string, payload any)
}
