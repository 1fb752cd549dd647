package repository

import (
	"context"

	"github.com/ErlanBelekov/interview-genie/internal/domain"
)

type UserRepository interface {
	// Create inserts a new user. Returns domain.ErrEmailTaken on a unique violation.
	Create(ctx context.Context, u *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	// UpdateProfile sets name and image; nil leaves a field unchanged.
	UpdateProfile(ctx context.Context, id string, name, image *string) (*domain.User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}
