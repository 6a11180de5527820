package events

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/wayfarerhq/wayfarer/internal/app/domain/moments"
	"github.com/wayfarerhq/wayfarer/internal/app/models"
	"github.com/wayfarerhq/wayfarer/internal/app/observability/metrics"
)

var _ Service = (*ServiceImpl)(nil)

// Service ingests engagement events. Each event is appended to the event log
// and reflected in the moment's denormalized counters.
type Service interface {
	RecordMomentEvent(ctx context.Context, userID, momentID uuid.UUID, eventType models.EventType) error
}

type ServiceImpl struct {
	logger  *zap.Logger
	events  Repository
	moments moments.Repository
}

func NewService(eventsRepo Repository, momentsRepo moments.Repository, logger *zap.Logger) *ServiceImpl {
	metrics.InitAppMetrics()
	return &ServiceImpl{
		logger:  logger,
		events:  eventsRepo,
		moments: momentsRepo,
	}
}

func (s *ServiceImpl) RecordMomentEvent(ctx context.Context, userID, momentID uuid.UUID, eventType models.EventType) error {
	switch eventType {
	case models.EventView, models.EventSave, models.EventLike:
	default:
		return fmt.Errorf("%w: unknown event type %q", models.ErrValidation, eventType)
	}

	if _, err := s.moments.GetMoment(ctx, momentID); err != nil {
		return fmt.Errorf("error resolving moment %s: %w", momentID, err)
	}

	if err := s.events.RecordEvent(ctx, userID, eventType, models.TargetMoment, momentID); err != nil {
		return fmt.Errorf("error recording event: %w", err)
	}
	metrics.Get().EventsIngestedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", string(eventType)),
	))

	// Counter drift is tolerable, the event log is the source of truth.
	if err := s.moments.IncrementCounter(ctx, momentID, eventType); err != nil {
		s.logger.Warn("Failed to bump moment counter",
			zap.String("momentID", momentID.String()),
			zap.String("eventType", string(eventType)),
			zap.Error(err))
	}
	return nil
}
