package social

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wayfarerhq/wayfarer/internal/app/middleware"
	"github.com/wayfarerhq/wayfarer/internal/app/models"
)

type FollowHandler struct {
	followRepo Repository
	logger     *zap.Logger
}

func NewFollowHandler(followRepo Repository, logger *zap.Logger) *FollowHandler {
	return &FollowHandler{
		followRepo: followRepo,
		logger:     logger,
	}
}

// Follow godoc
// @Summary Follow a user
// @Tags social
// @Produce json
// @Param id path string true "User ID to follow"
// @Success 204
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/users/{id}/follow [post]
func (h *FollowHandler) Follow(c *gin.Context) {
	userIDStr := middleware.GetUserIDFromContext(c)
	followerID, err := uuid.Parse(userIDStr)
	if err != nil {
		h.logger.Error("Invalid user ID", zap.String("userID", userIDStr), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	followeeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target user ID"})
		return
	}

	if err := h.followRepo.Follow(c.Request.Context(), followerID, followeeID); err != nil {
		switch {
		case errors.Is(err, models.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot follow yourself"})
		case errors.Is(err, models.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		default:
			h.logger.Error("Failed to follow user", zap.String("userID", userIDStr), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to follow user"})
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// Unfollow godoc
// @Summary Unfollow a user
// @Tags social
// @Produce json
// @Param id path string true "User ID to unfollow"
// @Success 204
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/users/{id}/follow [delete]
func (h *FollowHandler) Unfollow(c *gin.Context) {
	userIDStr := middleware.GetUserIDFromContext(c)
	followerID, err := uuid.Parse(userIDStr)
	if err != nil {
		h.logger.Error("Invalid user ID", zap.String("userID", userIDStr), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	followeeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target user ID"})
		return
	}

	if err := h.followRepo.Unfollow(c.Request.Context(), followerID, followeeID); err != nil {
		h.logger.Error("Failed to unfollow user", zap.String("userID", userIDStr), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unfollow user"})
		return
	}

	c.Status(http.StatusNoContent)
}
