package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "plata/internal/errors"
	"plata/internal/models"
	"plata/internal/services"
)

// UserHandler handles user-level settings.
type UserHandler struct {
	userService services.UserServicer
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService services.UserServicer) *UserHandler {
	return &UserHandler{userService: userService}
}

// UpdateTrackingModeRequest represents the request payload for changing the
// user's default consistency mode.
type UpdateTrackingModeRequest struct {
	Mode models.TrackingMode `json:"mode" binding:"required,tracking_mode"`
}

// UpdateTrackingMode switches the user between strict balance enforcement
// and logging-only mode. Per-account overrides are unaffected.
func (h *UserHandler) UpdateTrackingMode(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateTrackingModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, err := h.userService.SetTrackingMode(userID, req.Mode)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}
