package events

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wayfarerhq/wayfarer/internal/app/middleware"
	"github.com/wayfarerhq/wayfarer/internal/app/models"
)

type EventHandler struct {
	eventService Service
	logger       *zap.Logger
}

func NewEventHandler(eventService Service, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		eventService: eventService,
		logger:       logger,
	}
}

type recordEventRequest struct {
	EventType string `json:"eventType" binding:"required"`
}

// RecordMomentEvent godoc
// @Summary Record an engagement event on a moment
// @Description Append a VIEW, SAVE or LIKE event for the authenticated user
// @Tags events
// @Accept json
// @Produce json
// @Param id path string true "Moment ID"
// @Param event body recordEventRequest true "Event to record"
// @Success 204
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/moments/{id}/events [post]
func (h *EventHandler) RecordMomentEvent(c *gin.Context) {
	userIDStr := middleware.GetUserIDFromContext(c)
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		h.logger.Error("Invalid user ID", zap.String("userID", userIDStr), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	momentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid moment ID"})
		return
	}

	var req recordEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.eventService.RecordMomentEvent(c.Request.Context(), userID, momentID, models.EventType(req.EventType)); err != nil {
		switch {
		case errors.Is(err, models.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown event type"})
		case errors.Is(err, models.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Moment not found"})
		default:
			h.logger.Error("Failed to record event", zap.String("userID", userIDStr), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record event"})
		}
		return
	}

	c.Status(http.StatusNoContent)
}
