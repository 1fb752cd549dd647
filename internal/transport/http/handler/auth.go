package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ErlanBelekov/interview-genie/internal/domain"
	"github.com/ErlanBelekov/interview-genie/internal/usecase"
	"github.com/gin-gonic/gin"
)

// authUsecaser is the subset of AuthUsecase the handler needs.
// Defined here (point of use) so tests can inject a fake.
type authUsecaser interface {
	Signup(ctx context.Context, in usecase.SignupInput) (*domain.Profile, error)
	Login(ctx context.Context, in usecase.LoginInput) (*usecase.LoginResult, error)
	VerifyOTP(ctx context.Context, userID, otp string) error
	ResendOTP(ctx context.Context, userID string) error
	ForgotPassword(ctx context.Context, email, clientIP string) error
	ResetPassword(ctx context.Context, rawToken, password string) error
	Logout(ctx context.Context, sessionID string) error
}

type AuthHandler struct {
	authUsecase authUsecaser
	logger      *slog.Logger
}

func NewAuthHandler(authUsecase authUsecaser, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
		logger:      logger.With("component", "auth_handler"),
	}
}

type signupRequest struct {
	Name     *string `json:"name"     binding:"omitempty,max=100"`
	Email    string  `json:"email"    binding:"required,email,max=254"`
	Password string  `json:"password" binding:"required,min=8,max=72"`
}

type signupResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// POST /auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	p, err := h.authUsecase.Signup(c.Request.Context(), usecase.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, h.logger, "signup", err)
		return
	}

	c.JSON(http.StatusCreated, signupResponse{ID: p.ID, Email: p.Email})
}

type loginRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token string         `json:"token"`
	User  domain.Profile `json:"user"`
}

// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.authUsecase.Login(c.Request.Context(), usecase.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		respondError(c, h.logger, "login", err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{Token: res.Token, User: res.User})
}

type verifyOTPRequest struct {
	UserID string `json:"userId" binding:"required,uuid"`
	OTP    string `json:"otp"    binding:"required,len=6,numeric"`
}

// POST /auth/verify-otp
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.authUsecase.VerifyOTP(c.Request.Context(), req.UserID, req.OTP); err != nil {
		if errors.Is(err, domain.ErrTokenInvalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": errOTPInvalid})
			return
		}
		respondError(c, h.logger, "verify otp", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Email verified successfully"})
}

type resendOTPRequest struct {
	UserID string `json:"userId" binding:"required,uuid"`
}

// POST /auth/resend-otp
func (h *AuthHandler) ResendOTP(c *gin.Context) {
	var req resendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.authUsecase.ResendOTP(c.Request.Context(), req.UserID); err != nil {
		respondError(c, h.logger, "resend otp", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// POST /auth/forgot-password
// Always returns 200 to avoid revealing whether the email exists.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.authUsecase.ForgotPassword(c.Request.Context(), req.Email, c.ClientIP()); err != nil {
		h.logger.ErrorContext(c.Request.Context(), "forgot password", "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type resetPasswordRequest struct {
	Token    string `json:"token"    binding:"required"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// POST /auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.authUsecase.ResetPassword(c.Request.Context(), strings.TrimSpace(req.Token), req.Password); err != nil {
		respondError(c, h.logger, "reset password", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// POST /auth/logout
// Runs behind middleware.Auth, which sets "sessionID".
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authUsecase.Logout(c.Request.Context(), c.GetString("sessionID")); err != nil {
		respondError(c, h.logger, "logout", err)
		return
	}
	c.Status(http.StatusNoContent)
}
