package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/interview-genie/internal/domain"
)

// ResetResult describes what a committed password reset changed.
type ResetResult struct {
	UserID     string
	Email      string
	SessionIDs []string // sessions deleted by the reset
}

type TokenRepository interface {
	CreateResetToken(ctx context.Context, t *domain.PasswordResetToken) error

	// ResetPassword consumes the live token with tokenHash, stores passwordHash
	// and deletes every session of the owner, all in one transaction.
	// Returns domain.ErrTokenInvalid when no live token matches.
	ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*ResetResult, error)

	// ReplaceOTP deletes every OTP of otp.UserID and inserts otp, atomically.
	// Returns domain.ErrValidation when the user is already verified, checked
	// under the same user row lock VerifyOTP takes.
	ReplaceOTP(ctx context.Context, otp *domain.OTPVerification) error

	// VerifyOTP finds the live OTP (userID, codeHash), then marks the user
	// verified, deletes all of the user's OTPs and sessions in one transaction.
	// Returns the deleted session ids, or domain.ErrTokenInvalid.
	VerifyOTP(ctx context.Context, userID, codeHash string, now time.Time) ([]string, error)

	DeleteExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
	DeleteExpiredOTPs(ctx context.Context, now time.Time) (int64, error)
}
