package httptransport

import (
	"log/slog"

	"github.com/ErlanBelekov/interview-genie/internal/transport/http/handler"
	"github.com/ErlanBelekov/interview-genie/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

func NewRouter(logger *slog.Logger, authHandler *handler.AuthHandler, userHandler *handler.UserHandler, authenticator middleware.Authenticator) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.NewWithConfig(logger, sloggin.Config{
		WithRequestID: false,
		Filters: []sloggin.Filter{
			sloggin.IgnorePath("/favicon.ico"),
		},
	}))
	r.Use(middleware.Metrics())

	authMW := middleware.Auth(authenticator, logger)

	// Public auth routes
	auth := r.Group("/auth")
	auth.POST("/signup", authHandler.Signup)
	auth.POST("/login", authHandler.Login)
	auth.POST("/verify-otp", authHandler.VerifyOTP)
	auth.POST("/resend-otp", authHandler.ResendOTP)
	auth.POST("/forgot-password", authHandler.ForgotPassword)
	auth.POST("/reset-password", authHandler.ResetPassword)
	auth.POST("/logout", authMW, authHandler.Logout)

	// Protected user routes
	users := r.Group("/users", authMW)
	users.GET("/:id", userHandler.Get)
	users.PATCH("/:id", userHandler.Update)

	return r
}
