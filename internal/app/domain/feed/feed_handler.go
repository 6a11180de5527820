package feed

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wayfarerhq/wayfarer/internal/app/middleware"
	"github.com/wayfarerhq/wayfarer/internal/app/models"
)

type FeedHandler struct {
	feedService Service
	logger      *zap.Logger
}

func NewFeedHandler(feedService Service, logger *zap.Logger) *FeedHandler {
	return &FeedHandler{
		feedService: feedService,
		logger:      logger,
	}
}

// GetRecommendedFeed godoc
// @Summary Get the personalized recommended feed
// @Description Ranked moments for the authenticated user, optionally filtered by free-text query and country
// @Tags feed
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param q query string false "Free-text query over title, body and place name"
// @Param country query string false "Country filter"
// @Success 200 {object} models.RecommendedFeedResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/feed/recommended [get]
func (h *FeedHandler) GetRecommendedFeed(c *gin.Context) {
	userIDStr := middleware.GetUserIDFromContext(c)
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		h.logger.Error("Invalid user ID", zap.String("userID", userIDStr), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page"})
		return
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pageSize"})
		return
	}

	filters := models.FeedFilters{
		Query:   c.Query("q"),
		Country: c.Query("country"),
	}

	resp, err := h.feedService.GetRecommendedFeed(c.Request.Context(), userID, page, pageSize, filters)
	if err != nil {
		h.logger.Error("Failed to build recommended feed", zap.String("userID", userIDStr), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build feed"})
		return
	}

	c.JSON(http.StatusOK, resp)
}
