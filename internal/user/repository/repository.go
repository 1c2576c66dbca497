package repository

import (
	"context"
	"errors"

	"filevault/backend/internal/user/domain"
)

// ErrEmailTaken is returned by Create when another user already has the email.
var ErrEmailTaken = errors.New("email already registered")

// Repository defines persistence for users.
type Repository interface {
	// GetByID returns the user for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByEmail returns the user with the given normalized email, or nil if not found.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// Create inserts u. Returns ErrEmailTaken on a duplicate email.
	Create(ctx context.Context, u *domain.User) error
}
