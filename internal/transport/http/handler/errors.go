package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/ErlanBelekov/interview-genie/internal/domain"
	"github.com/gin-gonic/gin"
)

const (
	errInternalServer     = "Internal server error"
	errInvalidCredentials = "Invalid email or password"
	errEmailNotVerified   = "Please verify your email before signing in"
	errEmailTaken         = "An account with this email already exists"
	errTokenInvalid       = "Token is invalid or expired"
	errOTPInvalid         = "Verification code is invalid or expired"
	errPasswordBreached   = "This password has appeared in a data breach. Please choose a different one"
	errUnauthorized       = "Unauthorized"
	errUserNotFound       = "User not found"
	errTooManyAttempts    = "Too many attempts. Try again in %d seconds"
)

// respondError maps a usecase error onto a status and a caller-facing message.
// Anything unexpected is logged with its full chain and surfaces as a 500.
func respondError(c *gin.Context, logger *slog.Logger, op string, err error) {
	var rl *domain.RateLimitedError
	switch {
	case errors.As(err, &rl):
		secs := int(math.Ceil(rl.RetryAfter.Seconds()))
		c.Header("Retry-After", strconv.Itoa(secs))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": fmt.Sprintf(errTooManyAttempts, secs)})
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": errInvalidCredentials})
	case errors.Is(err, domain.ErrEmailNotVerified):
		c.JSON(http.StatusForbidden, gin.H{"error": errEmailNotVerified})
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
	case errors.Is(err, domain.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": errUserNotFound})
	case errors.Is(err, domain.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": errEmailTaken})
	case errors.Is(err, domain.ErrTokenInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": errTokenInvalid})
	case errors.Is(err, domain.ErrPasswordBreached):
		c.JSON(http.StatusBadRequest, gin.H{"error": errPasswordBreached})
	default:
		logger.ErrorContext(c.Request.Context(), op, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
