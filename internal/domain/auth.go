package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("email is not verified")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrTokenInvalid       = errors.New("token is invalid or expired")
	ErrPasswordBreached   = errors.New("password appears in a known data breach")
	ErrSessionNotFound    = errors.New("session not found")
	ErrRateLimited        = errors.New("too many attempts")
	ErrUpstream           = errors.New("upstream service failed")
)

// RateLimitedError carries how long the caller must wait before the limiter
// admits another attempt. errors.Is(err, ErrRateLimited) matches it.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many attempts, retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

type PasswordResetToken struct {
	ID        string
	UserID    string
	Email     string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type OTPVerification struct {
	ID        string
	UserID    string
	CodeHash  string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type Session struct {
	ID        string
	UserID    string
	UserAgent string
	IP        string
	ExpiresAt time.Time
	CreatedAt time.Time
}
