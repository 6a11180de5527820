package interests

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
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

// Repository persists declared onboarding interests: one (category, weight)
// pair per user, set at onboarding and mutable later.
type Repository interface {
	SetInterest(ctx context.Context, userID uuid.UUID, category models.InterestCategory, weight int) (*models.UserInterest, error)
	RemoveInterest(ctx context.Context, userID uuid.UUID, category models.InterestCategory) error
	GetUserInterests(ctx context.Context, userID uuid.UUID) ([]models.UserInterest, error)
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

// SetInterest upserts a declared interest for a user.
func (r *RepositoryImpl) SetInterest(ctx context.Context, userID uuid.UUID, category models.InterestCategory, weight int) (*models.UserInterest, error) {
	ctx, span := otel.Tracer("InterestsRepo").Start(ctx, "SetInterest", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "user_interests"),
		attribute.String("db.user.id", userID.String()),
		attribute.String("interest.category", string(category)),
	))
	defer span.End()

	l := r.logger.With(zap.String("method", "SetInterest"), zap.String("userID", userID.String()), zap.String("category", string(category)))
	l.Debug("Upserting declared interest")

	if weight < 1 || weight > 10 {
		span.SetStatus(codes.Error, "Weight out of range")
		return nil, fmt.Errorf("interest weight must be between 1 and 10: %w", models.ErrBadRequest)
	}

	var interest models.UserInterest
	query := `
        INSERT INTO user_interests (user_id, category, weight)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id, category) DO UPDATE SET weight = EXCLUDED.weight
        RETURNING user_id, category, weight, created_at`

	err := r.pgpool.QueryRow(ctx, query, userID, string(category), weight).Scan(
		&interest.UserID,
		&interest.Category,
		&interest.Weight,
		&interest.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" { // FK violation
			l.Warn("Attempted to set interest for unknown user", zap.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "Unknown user")
			return nil, fmt.Errorf("user %s not found: %w", userID.String(), models.ErrNotFound)
		}
		l.Error("Failed to upsert declared interest", zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error setting interest: %w", err)
	}

	l.Info("Declared interest set", zap.Int("weight", weight))
	span.SetStatus(codes.Ok, "Interest set")
	return &interest, nil
}

func (r *RepositoryImpl) RemoveInterest(ctx context.Context, userID uuid.UUID, category models.InterestCategory) error {
	ctx, span := otel.Tracer("InterestsRepo").Start(ctx, "RemoveInterest", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "DELETE"),
		attribute.String("db.sql.table", "user_interests"),
		attribute.String("db.user.id", userID.String()),
		attribute.String("interest.category", string(category)),
	))
	defer span.End()

	l := r.logger.With(zap.String("method", "RemoveInterest"), zap.String("userID", userID.String()), zap.String("category", string(category)))

	query := `DELETE FROM user_interests WHERE user_id = $1 AND category = $2`
	tag, err := r.pgpool.Exec(ctx, query, userID, string(category))
	if err != nil {
		l.Error("Failed to delete declared interest", zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB DELETE failed")
		return fmt.Errorf("database error removing interest: %w", err)
	}

	if tag.RowsAffected() == 0 {
		l.Warn("Attempted to remove non-existent declared interest")
		span.SetStatus(codes.Error, "Interest not found")
		return fmt.Errorf("declared interest not found: %w", models.ErrNotFound)
	}

	l.Info("Declared interest removed")
	span.SetStatus(codes.Ok, "Interest removed")
	return nil
}

func (r *RepositoryImpl) GetUserInterests(ctx context.Context, userID uuid.UUID) ([]models.UserInterest, error) {
	ctx, span := otel.Tracer("InterestsRepo").Start(ctx, "GetUserInterests", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "user_interests"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	l := r.logger.With(zap.String("method", "GetUserInterests"), zap.String("userID", userID.String()))

	query := `
        SELECT user_id, category, weight, created_at
        FROM user_interests
        WHERE user_id = $1
        ORDER BY category`

	rows, err := r.pgpool.Query(ctx, query, userID)
	if err != nil {
		l.Error("Failed to query declared interests", zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching interests: %w", err)
	}
	defer rows.Close()

	var interests []models.UserInterest
	for rows.Next() {
		var i models.UserInterest
		if err := rows.Scan(&i.UserID, &i.Category, &i.Weight, &i.CreatedAt); err != nil {
			l.Error("Failed to scan interest row", zap.Any("error", err))
			span.RecordError(err)
			return nil, fmt.Errorf("database error scanning interest: %w", err)
		}
		interests = append(interests, i)
	}
	if err := rows.Err(); err != nil {
		l.Error("Error iterating interest rows", zap.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("database error reading interests: %w", err)
	}

	l.Debug("Fetched declared interests", zap.Int("count", len(interests)))
	span.SetStatus(codes.Ok, "Interests fetched")
	return interests, nil
}
