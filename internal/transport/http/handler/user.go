package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/interview-genie/internal/domain"
	"github.com/ErlanBelekov/interview-genie/internal/usecase"
	"github.com/gin-gonic/gin"
)

type userUsecaser interface {
	GetProfile(ctx context.Context, callerID, userID string) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, callerID, userID string, in usecase.UpdateProfileInput) (*domain.Profile, error)
}

type UserHandler struct {
	userUsecase userUsecaser
	logger      *slog.Logger
}

func NewUserHandler(userUsecase userUsecaser, logger *slog.Logger) *UserHandler {
	return &UserHandler{userUsecase: userUsecase, logger: logger.With("component", "user_handler")}
}

type updateProfileRequest struct {
	Name  *string `json:"name"  binding:"omitempty,min=1,max=100"`
	Image *string `json:"image" binding:"omitempty,url,max=2048"`
}

// GET /users/:id
func (h *UserHandler) Get(c *gin.Context) {
	p, err := h.userUsecase.GetProfile(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "get profile", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// PATCH /users/:id
func (h *UserHandler) Update(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	p, err := h.userUsecase.UpdateProfile(c.Request.Context(), c.GetString("userID"), c.Param("id"), usecase.UpdateProfileInput{
		Name:  req.Name,
		Image: req.Image,
	})
	if err != nil {
		respondError(c, h.logger, "update profile", err)
		return
	}
	c.JSON(http.StatusOK, p)
}
