package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ErlanBelekov/interview-genie/internal/cache"
	"github.com/ErlanBelekov/interview-genie/internal/domain"
	"github.com/ErlanBelekov/interview-genie/internal/repository"
)

type UserUsecase struct {
	users  repository.UserRepository
	cache  *cache.UserCache
	logger *slog.Logger
}

func NewUserUsecase(users repository.UserRepository, userCache *cache.UserCache, logger *slog.Logger) *UserUsecase {
	return &UserUsecase{users: users, cache: userCache, logger: logger.With("component", "user_usecase")}
}

type UpdateProfileInput struct {
	Name  *string
	Image *string
}

// GetProfile returns the caller's own profile, read through the user cache.
func (u *UserUsecase) GetProfile(ctx context.Context, callerID, userID string) (*domain.Profile, error) {
	if callerID != userID {
		return nil, domain.ErrUnauthorized
	}

	p, err := u.cache.ByID(ctx, userID)
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		u.logger.WarnContext(ctx, "user cache read", "user_id", userID, "error", err)
	}

	// taken before the durable read so a concurrent update voids the write below
	version, verr := u.cache.Version(ctx, userID)

	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	p = user.Profile()
	if verr != nil {
		u.logger.WarnContext(ctx, "user cache version", "user_id", userID, "error", verr)
		return &p, nil
	}
	if _, err := u.cache.Put(ctx, p, version); err != nil {
		u.logger.WarnContext(ctx, "cache user", "user_id", userID, "error", err)
	}
	return &p, nil
}

// UpdateProfile changes the caller's name and image, then drops both cache keys.
func (u *UserUsecase) UpdateProfile(ctx context.Context, callerID, userID string, in UpdateProfileInput) (*domain.Profile, error) {
	if callerID != userID {
		return nil, domain.ErrUnauthorized
	}

	user, err := u.users.UpdateProfile(ctx, userID, in.Name, in.Image)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	if err := u.cache.Invalidate(ctx, user.ID, user.Email); err != nil {
		u.logger.ErrorContext(ctx, "invalidate user cache", "user_id", user.ID, "error", err)
	}

	p := user.Profile()
	return &p, nil
}
