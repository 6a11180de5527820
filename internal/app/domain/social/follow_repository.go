package social

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

// Repository persists directed follow edges. The recommendation engine only
// needs the following-set read.
type Repository interface {
	Follow(ctx context.Context, followerID, followeeID uuid.UUID) error
	Unfollow(ctx context.Context, followerID, followeeID uuid.UUID) error
	// GetFollowingSet returns the set of users the given user follows.
	GetFollowingSet(ctx context.Context, followerID uuid.UUID) (map[uuid.UUID]bool, error)
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

func (r *RepositoryImpl) Follow(ctx context.Context, followerID, followeeID uuid.UUID) error {
	ctx, span := otel.Tracer("SocialRepo").Start(ctx, "Follow", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "follows"),
	))
	defer span.End()

	l := r.logger.With(zap.String("method", "Follow"), zap.String("followerID", followerID.String()), zap.String("followeeID", followeeID.String()))

	if followerID == followeeID {
		span.SetStatus(codes.Error, "Self follow")
		return fmt.Errorf("cannot follow yourself: %w", models.ErrBadRequest)
	}

	query := `
        INSERT INTO follows (follower_id, followee_id)
        VALUES ($1, $2)
        ON CONFLICT DO NOTHING`

	if _, err := r.pgpool.Exec(ctx, query, followerID, followeeID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			l.Warn("Follow references unknown user", zap.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "Unknown user")
			return fmt.Errorf("user not found: %w", models.ErrNotFound)
		}
		l.Error("Failed to insert follow edge", zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return fmt.Errorf("database error creating follow: %w", err)
	}

	l.Info("Follow edge created")
	span.SetStatus(codes.Ok, "Followed")
	return nil
}

func (r *RepositoryImpl) Unfollow(ctx context.Context, followerID, followeeID uuid.UUID) error {
	ctx, span := otel.Tracer("SocialRepo").Start(ctx, "Unfollow", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "DELETE"),
		attribute.String("db.sql.table", "follows"),
	))
	defer span.End()

	l := r.logger.With(zap.String("method", "Unfollow"), zap.String("followerID", followerID.String()), zap.String("followeeID", followeeID.String()))

	query := `DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`
	tag, err := r.pgpool.Exec(ctx, query, followerID, followeeID)
	if err != nil {
		l.Error("Failed to delete follow edge", zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB DELETE failed")
		return fmt.Errorf("database error removing follow: %w", err)
	}

	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "Follow not found")
		return fmt.Errorf("follow edge not found: %w", models.ErrNotFound)
	}

	l.Info("Follow edge removed")
	span.SetStatus(codes.Ok, "Unfollowed")
	return nil
}

func (r *RepositoryImpl) GetFollowingSet(ctx context.Context, followerID uuid.UUID) (map[uuid.UUID]bool, error) {
	ctx, span := otel.Tracer("SocialRepo").Start(ctx, "GetFollowingSet", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "follows"),
		attribute.String("db.user.id", followerID.String()),
	))
	defer span.End()

	l := r.logger.With(zap.String("method", "GetFollowingSet"), zap.String("followerID", followerID.String()))

	query := `SELECT followee_id FROM follows WHERE follower_id = $1`
	rows, err := r.pgpool.Query(ctx, query, followerID)
	if err != nil {
		l.Error("Failed to query following set", zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching following set: %w", err)
	}
	defer rows.Close()

	following := make(map[uuid.UUID]bool)
	for rows.Next() {
		var followeeID uuid.UUID
		if err := rows.Scan(&followeeID); err != nil {
			l.Error("Failed to scan follow row", zap.Any("error", err))
			span.RecordError(err)
			return nil, fmt.Errorf("database error scanning follow: %w", err)
		}
		following[followeeID] = true
	}
	if err := rows.Err(); err != nil {
		l.Error("Error iterating follow rows", zap.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("database error reading follows: %w", err)
	}

	l.Debug("Fetched following set", zap.Int("count", len(following)))
	span.SetAttributes(attribute.Int("following.count", len(following)))
	span.SetStatus(codes.Ok, "Following set fetched")
	return following, nil
}
