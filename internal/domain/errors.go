package domain

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailTaken      = errors.New("email already registered")
	ErrListNotFound    = errors.New("list not found")
	ErrTodoNotFound    = errors.New("todo not found")
	ErrDuplicateGrant  = errors.New("collaborator grant already exists")
	ErrVersionMismatch = errors.New("list version mismatch")
)
