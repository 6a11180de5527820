package interests

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wayfarerhq/wayfarer/internal/app/middleware"
	"github.com/wayfarerhq/wayfarer/internal/app/models"
)

type InterestHandler struct {
	interestRepo Repository
	logger       *zap.Logger
}

func NewInterestHandler(interestRepo Repository, logger *zap.Logger) *InterestHandler {
	return &InterestHandler{
		interestRepo: interestRepo,
		logger:       logger,
	}
}

type setInterestRequest struct {
	Category models.InterestCategory `json:"category" binding:"required"`
	Weight   int                     `json:"weight" binding:"required"`
}

// SetInterest godoc
// @Summary Declare or update an interest
// @Description Upsert a declared interest category with a 1-10 weight
// @Tags interests
// @Accept json
// @Produce json
// @Param interest body setInterestRequest true "Interest to set"
// @Success 200 {object} models.UserInterest
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/interests [put]
func (h *InterestHandler) SetInterest(c *gin.Context) {
	userIDStr := middleware.GetUserIDFromContext(c)
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		h.logger.Error("Invalid user ID", zap.String("userID", userIDStr), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var req setInterestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	interest, err := h.interestRepo.SetInterest(c.Request.Context(), userID, req.Category, req.Weight)
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Weight must be between 1 and 10"})
			return
		}
		h.logger.Error("Failed to set interest", zap.String("userID", userIDStr), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to set interest"})
		return
	}

	c.JSON(http.StatusOK, interest)
}

// RemoveInterest godoc
// @Summary Remove a declared interest
// @Tags interests
// @Produce json
// @Param category path string true "Interest category"
// @Success 204
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/interests/{category} [delete]
func (h *InterestHandler) RemoveInterest(c *gin.Context) {
	userIDStr := middleware.GetUserIDFromContext(c)
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		h.logger.Error("Invalid user ID", zap.String("userID", userIDStr), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	category := models.InterestCategory(c.Param("category"))
	if err := h.interestRepo.RemoveInterest(c.Request.Context(), userID, category); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Interest not found"})
			return
		}
		h.logger.Error("Failed to remove interest", zap.String("userID", userIDStr), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove interest"})
		return
	}

	c.Status(http.StatusNoContent)
}

// GetInterests godoc
// @Summary List declared interests
// @Tags interests
// @Produce json
// @Success 200 {array} models.UserInterest
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/interests [get]
func (h *InterestHandler) GetInterests(c *gin.Context) {
	userIDStr := middleware.GetUserIDFromContext(c)
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		h.logger.Error("Invalid user ID", zap.String("userID", userIDStr), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	list, err := h.interestRepo.GetUserInterests(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list interests", zap.String("userID", userIDStr), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve interests"})
		return
	}

	c.JSON(http.StatusOK, list)
}
