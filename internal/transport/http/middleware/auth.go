package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ErlanBelekov/interview-genie/internal/domain"
	"github.com/ErlanBelekov/interview-genie/internal/requestid"
	"github.com/ErlanBelekov/interview-genie/internal/usecase"
	"github.com/gin-gonic/gin"
)

const errUnauthorized = "Unauthorized"

// Authenticator is satisfied by *usecase.AuthUsecase.
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (*usecase.Principal, error)
}

// Auth validates a Bearer session token and sets "userID" and "sessionID" in
// the gin context. A revoked or expired session is rejected even when the
// token signature is still valid.
func Auth(auth Authenticator, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		rawToken := strings.TrimPrefix(header, "Bearer ")

		principal, err := auth.Authenticate(c.Request.Context(), rawToken)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
				return
			}
			logger.ErrorContext(c.Request.Context(), "authenticate", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		c.Set("userID", principal.UserID)
		c.Set("sessionID", principal.SessionID)
		c.Request = c.Request.WithContext(requestid.WithUserID(c.Request.Context(), principal.UserID))
		c.Next()
	}
}
