package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/interview-genie/internal/domain"
)

type SessionRepository interface {
	// Create inserts s while holding a share lock on the owner's row. Returns
	// domain.ErrInvalidCredentials when the owner's password_changed_at no
	// longer equals passwordChangedAt, i.e. a reset committed after the caller
	// checked the password.
	Create(ctx context.Context, s *domain.Session, passwordChangedAt time.Time) (*domain.Session, error)
	// FindLive returns domain.ErrSessionNotFound for absent or expired sessions.
	FindLive(ctx context.Context, id string, now time.Time) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
