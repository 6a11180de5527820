package moments

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wayfarerhq/wayfarer/internal/app/middleware"
	"github.com/wayfarerhq/wayfarer/internal/app/models"
)

type MomentHandler struct {
	momentRepo Repository
	logger     *zap.Logger
}

func NewMomentHandler(momentRepo Repository, logger *zap.Logger) *MomentHandler {
	return &MomentHandler{
		momentRepo: momentRepo,
		logger:     logger,
	}
}

// CreateMoment godoc
// @Summary Create a moment
// @Description Publish a new moment for the authenticated user
// @Tags moments
// @Accept json
// @Produce json
// @Param moment body CreateMomentParams true "Moment to create"
// @Success 201 {object} models.Moment
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/moments [post]
func (h *MomentHandler) CreateMoment(c *gin.Context) {
	userIDStr := middleware.GetUserIDFromContext(c)
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		h.logger.Error("Invalid user ID", zap.String("userID", userIDStr), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var params CreateMomentParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	params.AuthorID = userID

	moment, err := h.momentRepo.CreateMoment(c.Request.Context(), params)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown place"})
			return
		}
		h.logger.Error("Failed to create moment", zap.String("userID", userIDStr), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create moment"})
		return
	}

	c.JSON(http.StatusCreated, moment)
}

// GetMoment godoc
// @Summary Get a moment
// @Tags moments
// @Produce json
// @Param id path string true "Moment ID"
// @Success 200 {object} models.Moment
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/moments/{id} [get]
func (h *MomentHandler) GetMoment(c *gin.Context) {
	momentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid moment ID"})
		return
	}

	moment, err := h.momentRepo.GetMoment(c.Request.Context(), momentID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Moment not found"})
			return
		}
		h.logger.Error("Failed to get moment", zap.String("momentID", momentID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve moment"})
		return
	}

	c.JSON(http.StatusOK, moment)
}
