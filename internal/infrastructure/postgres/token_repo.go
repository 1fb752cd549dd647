package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/interview-genie/internal/domain"
	"github.com/ErlanBelekov/interview-genie/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

func (r *TokenRepository) CreateResetToken(ctx context.Context, t *domain.PasswordResetToken) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO password_reset_tokens (user_id, email, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)`,
		t.UserID, t.Email, t.TokenHash, t.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("create reset token: %w", err)
	}
	return nil
}

func (r *TokenRepository) ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*repository.ResetResult, error) {
	var result *repository.ResetResult
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var tokenID string
		res := repository.ResetResult{}

		// row lock: a concurrent reset with the same token waits, then finds nothing
		err := tx.QueryRow(ctx, `
			SELECT id, user_id, email
			FROM password_reset_tokens
			WHERE token_hash = $1 AND expires_at > $2
			FOR UPDATE`,
			tokenHash, now,
		).Scan(&tokenID, &res.UserID, &res.Email)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrTokenInvalid
			}
			return fmt.Errorf("find reset token: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE users SET hashed_password = $2, password_changed_at = NOW(), updated_at = NOW() WHERE id = $1`,
			res.UserID, passwordHash,
		); err != nil {
			return fmt.Errorf("update password: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM password_reset_tokens WHERE id = $1`, tokenID); err != nil {
			return fmt.Errorf("delete reset token: %w", err)
		}

		res.SessionIDs, err = deleteUserSessions(ctx, tx, res.UserID)
		if err != nil {
			return err
		}

		result = &res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *TokenRepository) ReplaceOTP(ctx context.Context, otp *domain.OTPVerification) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		verified, err := lockUser(ctx, tx, otp.UserID)
		if err != nil {
			return err
		}
		if verified {
			return fmt.Errorf("%w: email is already verified", domain.ErrValidation)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM otp_verifications WHERE user_id = $1`, otp.UserID); err != nil {
			return fmt.Errorf("delete otps: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO otp_verifications (user_id, code_hash, expires_at)
			VALUES ($1, $2, $3)`,
			otp.UserID, otp.CodeHash, otp.ExpiresAt,
		); err != nil {
			return fmt.Errorf("insert otp: %w", err)
		}
		return nil
	})
}

func (r *TokenRepository) VerifyOTP(ctx context.Context, userID, codeHash string, now time.Time) ([]string, error) {
	var sessionIDs []string
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		// serialises with ReplaceOTP, so no code can be issued once this commits
		if _, err := lockUser(ctx, tx, userID); err != nil {
			return err
		}

		var otpID string
		err := tx.QueryRow(ctx, `
			SELECT id
			FROM otp_verifications
			WHERE user_id = $1 AND code_hash = $2 AND expires_at > $3
			FOR UPDATE`,
			userID, codeHash, now,
		).Scan(&otpID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrTokenInvalid
			}
			return fmt.Errorf("find otp: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE users SET is_verified = TRUE, updated_at = NOW() WHERE id = $1`, userID); err != nil {
			return fmt.Errorf("mark verified: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM otp_verifications WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("delete otps: %w", err)
		}

		sessionIDs, err = deleteUserSessions(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sessionIDs, nil
}

// lockUser takes the row lock on a user for the rest of tx and returns its
// verified flag.
func lockUser(ctx context.Context, tx pgx.Tx, userID string) (bool, error) {
	var verified bool
	err := tx.QueryRow(ctx, `SELECT is_verified FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&verified)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domain.ErrUserNotFound
		}
		return false, fmt.Errorf("lock user: %w", err)
	}
	return verified, nil
}

func (r *TokenRepository) DeleteExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM password_reset_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired reset tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *TokenRepository) DeleteExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM otp_verifications WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired otps: %w", err)
	}
	return tag.RowsAffected(), nil
}
