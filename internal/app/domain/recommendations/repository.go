package recommendations

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wayfarerhq/wayfarer/internal/app/models"
)

var _ Repository = (*RepositoryImpl)(nil)

// PgxPool is the subset of pgxpool.Pool the cache repository needs. It is
// satisfied by both *pgxpool.Pool and pgxmock's pool interface.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository owns the recommendation_scores table. No other component writes
// to it.
type Repository interface {
	// ReplaceUserScores atomically swaps the user's entire cached ranking:
	// delete everything, bulk-insert the new generation, commit as one unit.
	ReplaceUserScores(ctx context.Context, userID uuid.UUID, scores []ScoredCandidate) error
	// GetUserScoresPage reads one page of the cached ranking ordered by
	// score descending, insert position breaking ties.
	GetUserScoresPage(ctx context.Context, userID uuid.UUID, offset, limit int) ([]models.RecommendationScore, error)
	// GetUserScores reads the full cached ranking in the same order as
	// GetUserScoresPage, for post-rank filtering.
	GetUserScores(ctx context.Context, userID uuid.UUID) ([]models.RecommendationScore, error)
	// CountUserScores returns the size of the user's cached ranking.
	CountUserScores(ctx context.Context, userID uuid.UUID) (int, error)
}

type RepositoryImpl struct {
	logger *zap.Logger
	pgpool PgxPool
}

func NewRepository(pgpool PgxPool, logger *zap.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

func (r *RepositoryImpl) ReplaceUserScores(ctx context.Context, userID uuid.UUID, scores []ScoredCandidate) error {
	ctx, span := otel.Tracer("RecommendationsRepo").Start(ctx, "ReplaceUserScores", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "recommendation_scores"),
		attribute.String("db.user.id", userID.String()),
		attribute.Int("scores.count", len(scores)),
	))
	defer span.End()

	l := r.logger.With(zap.String("method", "ReplaceUserScores"), zap.String("userID", userID.String()))

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		l.Error("Failed to begin transaction for score swap", zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB BEGIN failed")
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && rollbackErr != pgx.ErrTxClosed {
			l.Error("Failed to rollback transaction", zap.Any("error", rollbackErr))
		}
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM recommendation_scores WHERE user_id = $1`, userID); err != nil {
		l.Error("Failed to delete prior score generation", zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB DELETE failed")
		return fmt.Errorf("failed to delete prior scores: %w", err)
	}

	// position pins the scorer's stable ordering, score ties included.
	insert := `
        INSERT INTO recommendation_scores (user_id, moment_id, position, score, factors)
        VALUES ($1, $2, $3, $4, $5)`
	for i, s := range scores {
		factors, err := json.Marshal(s.Factors)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to marshal score factors: %w", err)
		}
		if _, err := tx.Exec(ctx, insert, userID, s.MomentID, i, s.Score, factors); err != nil {
			l.Error("Failed to insert score row", zap.Any("error", err), zap.String("momentID", s.MomentID.String()))
			span.RecordError(err)
			span.SetStatus(codes.Error, "DB INSERT failed")
			return fmt.Errorf("failed to insert score row: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		l.Error("Failed to commit score swap", zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB COMMIT failed")
		return fmt.Errorf("failed to commit score swap: %w", err)
	}

	l.Info("Replaced user score generation", zap.Int("count", len(scores)))
	span.SetStatus(codes.Ok, "Scores replaced")
	return nil
}

func (r *RepositoryImpl) GetUserScoresPage(ctx context.Context, userID uuid.UUID, offset, limit int) ([]models.RecommendationScore, error) {
	ctx, span := otel.Tracer("RecommendationsRepo").Start(ctx, "GetUserScoresPage", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "recommendation_scores"),
		attribute.String("db.user.id", userID.String()),
		attribute.Int("page.offset", offset),
		attribute.Int("page.limit", limit),
	))
	defer span.End()

	query := `
        SELECT user_id, moment_id, score, factors, created_at
        FROM recommendation_scores
        WHERE user_id = $1
        ORDER BY score DESC, position ASC
        OFFSET $2 LIMIT $3`

	return r.queryScores(ctx, span, query, userID, offset, limit)
}

func (r *RepositoryImpl) GetUserScores(ctx context.Context, userID uuid.UUID) ([]models.RecommendationScore, error) {
	ctx, span := otel.Tracer("RecommendationsRepo").Start(ctx, "GetUserScores", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "recommendation_scores"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	query := `
        SELECT user_id, moment_id, score, factors, created_at
        FROM recommendation_scores
        WHERE user_id = $1
        ORDER BY score DESC, position ASC`

	return r.queryScores(ctx, span, query, userID)
}

func (r *RepositoryImpl) CountUserScores(ctx context.Context, userID uuid.UUID) (int, error) {
	ctx, span := otel.Tracer("RecommendationsRepo").Start(ctx, "CountUserScores", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "recommendation_scores"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	var count int
	query := `SELECT COUNT(*) FROM recommendation_scores WHERE user_id = $1`
	if err := r.pgpool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return 0, fmt.Errorf("database error counting recommendation scores: %w", err)
	}

	span.SetAttributes(attribute.Int("scores.count", count))
	span.SetStatus(codes.Ok, "Scores counted")
	return count, nil
}

func (r *RepositoryImpl) queryScores(ctx context.Context, span trace.Span, query string, args ...any) ([]models.RecommendationScore, error) {
	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query recommendation scores", zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching recommendation scores: %w", err)
	}
	defer rows.Close()

	var scores []models.RecommendationScore
	for rows.Next() {
		var s models.RecommendationScore
		var factors []byte
		if err := rows.Scan(&s.UserID, &s.MomentID, &s.Score, &factors, &s.CreatedAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("database error scanning recommendation score: %w", err)
		}
		if err := json.Unmarshal(factors, &s.Factors); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to unmarshal score factors: %w", err)
		}
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("database error reading recommendation scores: %w", err)
	}

	span.SetAttributes(attribute.Int("scores.count", len(scores)))
	span.SetStatus(codes.Ok, "Scores fetched")
	return scores, nil
}
