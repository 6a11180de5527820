package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wayfarerhq/wayfarer/internal/app/models"
)

var _ Repository = (*RepositoryImpl)(nil)

// Repository is the append-only event log plus the read side the
// recommendation engine consumes. Events are never mutated or deleted here.
type Repository interface {
	RecordEvent(ctx context.Context, userID uuid.UUID, eventType models.EventType, targetType string, targetID uuid.UUID) error
	// GetMomentEngagements returns the user's MOMENT-targeted VIEW/SAVE/LIKE
	// events since the given time, each joined with the place category of the
	// moment it targeted.
	GetMomentEngagements(ctx context.Context, userID uuid.UUID, since time.Time) ([]models.MomentEngagement, error)
	// CountMomentEvents returns the user's lifetime MOMENT-targeted
	// engagement event count, used for cold-start detection.
	CountMomentEvents(ctx context.Context, userID uuid.UUID) (int, error)
	// GetGlobalSaveRate returns the user's lifetime SAVE/VIEW ratio across
	// all moments, defaulting when the user has no recorded views.
	GetGlobalSaveRate(ctx context.Context, userID uuid.UUID) (float64, error)
}

type RepositoryImpl struct {
	logger *zap.Logger
	pgpool *pgxpool.Pool
}

func NewRepositoryImpl(pgxpool *pgxpool.Pool, logger *zap.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgxpool,
	}
}

func (r *RepositoryImpl) RecordEvent(ctx context.Context, userID uuid.UUID, eventType models.EventType, targetType string, targetID uuid.UUID) error {
	ctx, span := otel.Tracer("EventsRepo").Start(ctx, "RecordEvent", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "user_events"),
		attribute.String("event.type", string(eventType)),
		attribute.String("event.target_type", targetType),
	))
	defer span.End()

	l := r.logger.With(zap.String("method", "RecordEvent"), zap.String("userID", userID.String()), zap.String("type", string(eventType)))

	query := `
        INSERT INTO user_events (user_id, event_type, target_type, target_id)
        VALUES ($1, $2, $3, $4)`

	if _, err := r.pgpool.Exec(ctx, query, userID, string(eventType), targetType, targetID); err != nil {
		l.Error("Failed to insert user event", zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return fmt.Errorf("database error recording event: %w", err)
	}

	l.Debug("User event recorded")
	span.SetStatus(codes.Ok, "Event recorded")
	return nil
}

func (r *RepositoryImpl) GetMomentEngagements(ctx context.Context, userID uuid.UUID, since time.Time) ([]models.MomentEngagement, error) {
	ctx, span := otel.Tracer("EventsRepo").Start(ctx, "GetMomentEngagements", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "user_events"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	l := r.logger.With(zap.String("method", "GetMomentEngagements"), zap.String("userID", userID.String()))

	query := `
        SELECT e.event_type, p.category, e.created_at
        FROM user_events e
        JOIN moments m ON m.id = e.target_id
        LEFT JOIN places p ON p.id = m.place_id
        WHERE e.user_id = $1
          AND e.target_type = $2
          AND e.event_type = ANY($3)
          AND e.created_at >= $4
        ORDER BY e.created_at`

	eventTypes := []string{string(models.EventView), string(models.EventSave), string(models.EventLike)}
	rows, err := r.pgpool.Query(ctx, query, userID, models.TargetMoment, eventTypes, since)
	if err != nil {
		l.Error("Failed to query moment engagements", zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching engagements: %w", err)
	}
	defer rows.Close()

	var engagements []models.MomentEngagement
	for rows.Next() {
		var e models.MomentEngagement
		var category *string
		if err := rows.Scan(&e.EventType, &category, &e.CreatedAt); err != nil {
			l.Error("Failed to scan engagement row", zap.Any("error", err))
			span.RecordError(err)
			return nil, fmt.Errorf("database error scanning engagement: %w", err)
		}
		if category != nil {
			pc := models.PlaceCategory(*category)
			e.PlaceCategory = &pc
		}
		engagements = append(engagements, e)
	}
	if err := rows.Err(); err != nil {
		l.Error("Error iterating engagement rows", zap.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("database error reading engagements: %w", err)
	}

	l.Debug("Fetched moment engagements", zap.Int("count", len(engagements)))
	span.SetAttributes(attribute.Int("engagements.count", len(engagements)))
	span.SetStatus(codes.Ok, "Engagements fetched")
	return engagements, nil
}

func (r *RepositoryImpl) CountMomentEvents(ctx context.Context, userID uuid.UUID) (int, error) {
	ctx, span := otel.Tracer("EventsRepo").Start(ctx, "CountMomentEvents", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "user_events"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	query := `
        SELECT COUNT(*)
        FROM user_events
        WHERE user_id = $1 AND target_type = $2 AND event_type = ANY($3)`

	eventTypes := []string{string(models.EventView), string(models.EventSave), string(models.EventLike)}
	var count int
	if err := r.pgpool.QueryRow(ctx, query, userID, models.TargetMoment, eventTypes).Scan(&count); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return 0, fmt.Errorf("database error counting events: %w", err)
	}

	span.SetAttributes(attribute.Int("events.count", count))
	span.SetStatus(codes.Ok, "Events counted")
	return count, nil
}

func (r *RepositoryImpl) GetGlobalSaveRate(ctx context.Context, userID uuid.UUID) (float64, error) {
	ctx, span := otel.Tracer("EventsRepo").Start(ctx, "GetGlobalSaveRate", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "user_events"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	query := `
        SELECT
            COUNT(*) FILTER (WHERE event_type = $3) AS saves,
            COUNT(*) FILTER (WHERE event_type = $4) AS views
        FROM user_events
        WHERE user_id = $1 AND target_type = $2`

	var saves, views int
	if err := r.pgpool.QueryRow(ctx, query, userID, models.TargetMoment, string(models.EventSave), string(models.EventView)).Scan(&saves, &views); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return 0, fmt.Errorf("database error computing save rate: %w", err)
	}

	rate := 0.1
	if views > 0 {
		rate = float64(saves) / float64(views)
	}

	span.SetAttributes(attribute.Float64("save_rate", rate))
	span.SetStatus(codes.Ok, "Save rate computed")
	return rate, nil
}
