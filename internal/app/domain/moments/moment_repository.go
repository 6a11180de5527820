package moments

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
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

// CreateMomentParams carries the caller-supplied fields of a new moment. The
// composite score is produced upstream once the moment is rated.
type CreateMomentParams struct {
	AuthorID uuid.UUID  `json:"-"`
	PlaceID  *uuid.UUID `json:"place_id,omitempty"`
	Title    string     `json:"title" binding:"required"`
	Body     string     `json:"body"`
}

type Repository interface {
	CreateMoment(ctx context.Context, params CreateMomentParams) (*models.Moment, error)
	GetMoment(ctx context.Context, momentID uuid.UUID) (*models.Moment, error)
	// GetMomentsByIDs fetches the given moments and returns them in the
	// order requested, skipping IDs that no longer exist.
	GetMomentsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Moment, error)
	// ListCandidates returns every moment eligible for ranking for the given
	// viewer: authored by someone else, with a non-null composite score.
	ListCandidates(ctx context.Context, viewerID uuid.UUID) ([]models.Moment, error)
	// ListByQuality is the last-resort feed ordering: eligible moments by
	// composite score descending, optionally filtered by country.
	ListByQuality(ctx context.Context, viewerID uuid.UUID, country *string, offset, limit int) ([]models.Moment, error)
	// CountEligible counts the moments ListByQuality would return unpaged.
	CountEligible(ctx context.Context, viewerID uuid.UUID, country *string) (int, error)
	// IncrementCounter bumps the aggregate counter matching the event type.
	IncrementCounter(ctx context.Context, momentID uuid.UUID, eventType models.EventType) error
}

type RepositoryImpl struct {
	logger *zap.Logger
	pgpool *pgxpool.Pool
}

func NewRepository(pgxpool *pgxpool.Pool, logger *zap.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgxpool,
	}
}

const momentColumns = `
    m.id, m.author_id, m.place_id, p.name, p.country, p.category,
    m.title, m.body, m.composite_score,
    m.like_count, m.view_count, m.save_count, m.created_at`

func scanMoment(row pgx.Row) (*models.Moment, error) {
	var m models.Moment
	var category *string
	err := row.Scan(
		&m.ID, &m.AuthorID, &m.PlaceID, &m.PlaceName, &m.PlaceCountry, &category,
		&m.Title, &m.Body, &m.CompositeScore,
		&m.LikeCount, &m.ViewCount, &m.SaveCount, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if category != nil {
		pc := models.PlaceCategory(*category)
		m.PlaceCategory = &pc
	}
	return &m, nil
}

func (r *RepositoryImpl) CreateMoment(ctx context.Context, params CreateMomentParams) (*models.Moment, error) {
	ctx, span := otel.Tracer("MomentsRepo").Start(ctx, "CreateMoment", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "moments"),
	))
	defer span.End()

	l := r.logger.With(zap.String("method", "CreateMoment"), zap.String("authorID", params.AuthorID.String()))

	if params.Title == "" {
		span.SetStatus(codes.Error, "Moment title cannot be empty")
		return nil, fmt.Errorf("moment title cannot be empty: %w", models.ErrBadRequest)
	}

	var id uuid.UUID
	query := `
        INSERT INTO moments (author_id, place_id, title, body)
        VALUES ($1, $2, $3, $4)
        RETURNING id`

	if err := r.pgpool.QueryRow(ctx, query, params.AuthorID, params.PlaceID, params.Title, params.Body).Scan(&id); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			l.Warn("Moment references unknown author or place", zap.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "Unknown reference")
			return nil, fmt.Errorf("author or place not found: %w", models.ErrNotFound)
		}
		l.Error("Failed to insert moment", zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error creating moment: %w", err)
	}

	l.Info("Moment created", zap.String("momentID", id.String()))
	span.SetAttributes(attribute.String("db.moment.id", id.String()))
	span.SetStatus(codes.Ok, "Moment created")
	return r.GetMoment(ctx, id)
}

func (r *RepositoryImpl) GetMoment(ctx context.Context, momentID uuid.UUID) (*models.Moment, error) {
	ctx, span := otel.Tracer("MomentsRepo").Start(ctx, "GetMoment", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "moments"),
		attribute.String("db.moment.id", momentID.String()),
	))
	defer span.End()

	query := fmt.Sprintf(`
        SELECT %s
        FROM moments m
        LEFT JOIN places p ON p.id = m.place_id
        WHERE m.id = $1`, momentColumns)

	m, err := scanMoment(r.pgpool.QueryRow(ctx, query, momentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Moment not found")
			return nil, fmt.Errorf("moment %s: %w", momentID.String(), models.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching moment: %w", err)
	}

	span.SetStatus(codes.Ok, "Moment fetched")
	return m, nil
}

func (r *RepositoryImpl) GetMomentsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Moment, error) {
	ctx, span := otel.Tracer("MomentsRepo").Start(ctx, "GetMomentsByIDs", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "moments"),
		attribute.Int("ids.count", len(ids)),
	))
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
        SELECT %s
        FROM moments m
        LEFT JOIN places p ON p.id = m.place_id
        WHERE m.id = ANY($1)`, momentColumns)

	fetched, err := r.queryMoments(ctx, span, query, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]models.Moment, len(fetched))
	for _, m := range fetched {
		byID[m.ID] = m
	}

	ordered := make([]models.Moment, 0, len(ids))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			ordered = append(ordered, m)
		}
	}

	span.SetStatus(codes.Ok, "Moments fetched")
	return ordered, nil
}

func (r *RepositoryImpl) ListCandidates(ctx context.Context, viewerID uuid.UUID) ([]models.Moment, error) {
	ctx, span := otel.Tracer("MomentsRepo").Start(ctx, "ListCandidates", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "moments"),
		attribute.String("db.user.id", viewerID.String()),
	))
	defer span.End()

	l := r.logger.With(zap.String("method", "ListCandidates"), zap.String("viewerID", viewerID.String()))

	// Candidate order is the tie-break order of the ranking, so it must be
	// deterministic across calls.
	query := fmt.Sprintf(`
        SELECT %s
        FROM moments m
        LEFT JOIN places p ON p.id = m.place_id
        WHERE m.author_id <> $1 AND m.composite_score IS NOT NULL
        ORDER BY m.created_at DESC, m.id`, momentColumns)

	candidates, err := r.queryMoments(ctx, span, query, viewerID)
	if err != nil {
		l.Error("Failed to list candidates", zap.Any("error", err))
		return nil, err
	}

	l.Debug("Listed candidates", zap.Int("count", len(candidates)))
	span.SetAttributes(attribute.Int("candidates.count", len(candidates)))
	span.SetStatus(codes.Ok, "Candidates listed")
	return candidates, nil
}

func (r *RepositoryImpl) ListByQuality(ctx context.Context, viewerID uuid.UUID, country *string, offset, limit int) ([]models.Moment, error) {
	ctx, span := otel.Tracer("MomentsRepo").Start(ctx, "ListByQuality", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "moments"),
		attribute.String("db.user.id", viewerID.String()),
	))
	defer span.End()

	l := r.logger.With(zap.String("method", "ListByQuality"), zap.String("viewerID", viewerID.String()))

	builder := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Select(
			"m.id", "m.author_id", "m.place_id", "p.name", "p.country", "p.category",
			"m.title", "m.body", "m.composite_score",
			"m.like_count", "m.view_count", "m.save_count", "m.created_at",
		).
		From("moments m").
		LeftJoin("places p ON p.id = m.place_id").
		Where(sq.NotEq{"m.author_id": viewerID}).
		Where("m.composite_score IS NOT NULL").
		OrderBy("m.composite_score DESC", "m.created_at DESC", "m.id")

	if country != nil && *country != "" {
		builder = builder.Where(sq.Eq{"p.country": *country})
	}
	if offset > 0 {
		builder = builder.Offset(uint64(offset))
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to build quality query: %w", err)
	}

	ms, err := r.queryMoments(ctx, span, query, args...)
	if err != nil {
		l.Error("Failed to list moments by quality", zap.Any("error", err))
		return nil, err
	}

	l.Debug("Listed moments by quality", zap.Int("count", len(ms)))
	span.SetStatus(codes.Ok, "Moments listed")
	return ms, nil
}

func (r *RepositoryImpl) CountEligible(ctx context.Context, viewerID uuid.UUID, country *string) (int, error) {
	ctx, span := otel.Tracer("MomentsRepo").Start(ctx, "CountEligible", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "moments"),
		attribute.String("db.user.id", viewerID.String()),
	))
	defer span.End()

	builder := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Select("COUNT(*)").
		From("moments m").
		LeftJoin("places p ON p.id = m.place_id").
		Where(sq.NotEq{"m.author_id": viewerID}).
		Where("m.composite_score IS NOT NULL")

	if country != nil && *country != "" {
		builder = builder.Where(sq.Eq{"p.country": *country})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var count int
	if err := r.pgpool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return 0, fmt.Errorf("database error counting eligible moments: %w", err)
	}

	span.SetAttributes(attribute.Int("eligible.count", count))
	span.SetStatus(codes.Ok, "Eligible moments counted")
	return count, nil
}

func (r *RepositoryImpl) IncrementCounter(ctx context.Context, momentID uuid.UUID, eventType models.EventType) error {
	ctx, span := otel.Tracer("MomentsRepo").Start(ctx, "IncrementCounter", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "moments"),
		attribute.String("db.moment.id", momentID.String()),
		attribute.String("event.type", string(eventType)),
	))
	defer span.End()

	var column string
	switch eventType {
	case models.EventView:
		column = "view_count"
	case models.EventSave:
		column = "save_count"
	case models.EventLike:
		column = "like_count"
	default:
		span.SetStatus(codes.Error, "Unknown counter")
		return fmt.Errorf("no counter for event type %q: %w", eventType, models.ErrBadRequest)
	}

	query := fmt.Sprintf(`UPDATE moments SET %s = %s + 1 WHERE id = $1`, column, column)
	tag, err := r.pgpool.Exec(ctx, query, momentID)
	if err != nil {
		r.logger.Error("Failed to bump moment counter", zap.Any("error", err), zap.String("momentID", momentID.String()))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error bumping counter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "Moment not found")
		return fmt.Errorf("moment %s: %w", momentID.String(), models.ErrNotFound)
	}

	span.SetStatus(codes.Ok, "Counter bumped")
	return nil
}

func (r *RepositoryImpl) queryMoments(ctx context.Context, span trace.Span, query string, args ...any) ([]models.Moment, error) {
	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching moments: %w", err)
	}
	defer rows.Close()

	var ms []models.Moment
	for rows.Next() {
		m, err := scanMoment(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("database error scanning moment: %w", err)
		}
		ms = append(ms, *m)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("database error reading moments: %w", err)
	}
	return ms, nil
}
