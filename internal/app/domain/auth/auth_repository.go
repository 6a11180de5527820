package auth

import (
	"context"
	"errors"
	"fmt"

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

type Repository interface {
	// Register stores a new user with a hashed password and returns it.
	Register(ctx context.Context, username, email, hashedPassword string) (*models.User, error)
	// GetUserByEmail fetches user details needed for login.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// GetUserByID fetches user details by ID.
	GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
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

const userColumns = `id, username, email, password_hash, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *RepositoryImpl) Register(ctx context.Context, username, email, hashedPassword string) (*models.User, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "Register", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("user.email", email),
	))
	defer span.End()

	l := r.logger.With(zap.String("method", "Register"), zap.String("email", email))

	query := `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns
	user, err := scanUser(r.pgpool.QueryRow(ctx, query, username, email, hashedPassword))
	if err != nil {
		span.RecordError(err)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			span.SetStatus(codes.Error, "Email or username conflict")
			return nil, fmt.Errorf("email or username already exists: %w", models.ErrConflict)
		}
		l.Error("Failed to insert user", zap.Error(err))
		span.SetStatus(codes.Error, "Database insert failed")
		return nil, fmt.Errorf("database error registering user: %w", err)
	}

	l.Info("User registered", zap.String("userID", user.ID.String()))
	span.SetStatus(codes.Ok, "User created")
	return user, nil
}

func (r *RepositoryImpl) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "GetUserByEmail", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
	))
	defer span.End()

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND is_active = TRUE`
	user, err := scanUser(r.pgpool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "User not found")
			return nil, fmt.Errorf("user with email %s not found: %w", email, models.ErrNotFound)
		}
		r.logger.Error("Failed to fetch user by email", zap.String("email", email), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database query failed")
		return nil, fmt.Errorf("database error fetching user: %w", err)
	}
	return user, nil
}

func (r *RepositoryImpl) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "GetUserByID", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND is_active = TRUE`
	user, err := scanUser(r.pgpool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "User not found")
			return nil, fmt.Errorf("user with ID %s not found: %w", userID, models.ErrNotFound)
		}
		r.logger.Error("Failed to fetch user by ID", zap.String("userID", userID.String()), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database query failed")
		return nil, fmt.Errorf("database error fetching user by ID: %w", err)
	}
	return user, nil
}
