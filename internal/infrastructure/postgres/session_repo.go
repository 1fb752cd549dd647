package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/interview-genie/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, s *domain.Session, passwordChangedAt time.Time) (*domain.Session, error) {
	var created *domain.Session
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		// FOR SHARE conflicts with the reset's UPDATE: either the reset waits
		// and then deletes this session, or this read sees the new timestamp.
		var changedAt time.Time
		err := tx.QueryRow(ctx,
			`SELECT password_changed_at FROM users WHERE id = $1 FOR SHARE`, s.UserID,
		).Scan(&changedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrUserNotFound
			}
			return fmt.Errorf("lock session owner: %w", err)
		}
		if !changedAt.Equal(passwordChangedAt) {
			return domain.ErrInvalidCredentials
		}

		query := `
			INSERT INTO sessions (user_id, user_agent, ip, expires_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id, user_id, user_agent, ip, expires_at, created_at`

		created, err = scanSession(tx.QueryRow(ctx, query, s.UserID, s.UserAgent, s.IP, s.ExpiresAt))
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *SessionRepository) FindLive(ctx context.Context, id string, now time.Time) (*domain.Session, error) {
	query := `
		SELECT id, user_id, user_agent, ip, expires_at, created_at
		FROM sessions
		WHERE id = $1 AND expires_at > $2`

	return scanSession(r.pool.QueryRow(ctx, query, id, now))
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// deleteUserSessions removes every session of userID inside tx and returns their ids.
func deleteUserSessions(ctx context.Context, tx pgx.Tx, userID string) ([]string, error) {
	rows, err := tx.Query(ctx, `DELETE FROM sessions WHERE user_id = $1 RETURNING id`, userID)
	if err != nil {
		return nil, fmt.Errorf("delete user sessions: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect session ids: %w", err)
	}
	return ids, nil
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var s domain.Session
	err := row.Scan(&s.ID, &s.UserID, &s.UserAgent, &s.IP, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &s, nil
}
