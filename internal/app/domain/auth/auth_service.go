package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wayfarerhq/wayfarer/internal/app/models"
	"github.com/wayfarerhq/wayfarer/internal/pkg/config"
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (token string, user *models.User, err error)
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

type ServiceImpl struct {
	logger *zap.Logger
	repo   Repository
	jwt    *JWTService
	cfg    JWTConfig
}

func NewService(repo Repository, cfg *config.Config, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
		jwt:    NewJWTService(),
		cfg: JWTConfig{
			SecretKey:       cfg.JWT.SecretKey,
			TokenExpiration: cfg.JWT.TokenExpiration,
		},
	}
}

func (s *ServiceImpl) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	if username == "" || email == "" || len(password) < 8 {
		return nil, fmt.Errorf("username, email and a password of at least 8 characters are required: %w", models.ErrValidation)
	}

	hashed, err := s.jwt.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user, err := s.repo.Register(ctx, username, email, hashed)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *ServiceImpl) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		// Same error for unknown email and bad password.
		return "", nil, fmt.Errorf("invalid credentials: %w", models.ErrUnauthenticated)
	}

	if !s.jwt.CheckPassword(user.PasswordHash, password) {
		s.logger.Warn("Password mismatch during login", zap.String("userID", user.ID.String()))
		return "", nil, fmt.Errorf("invalid credentials: %w", models.ErrUnauthenticated)
	}

	token, err := s.jwt.GenerateToken(s.cfg, user.ID.String(), user.Email, user.Username)
	if err != nil {
		s.logger.Error("Failed to generate token", zap.String("userID", user.ID.String()), zap.Error(err))
		return "", nil, fmt.Errorf("error generating token: %w", err)
	}

	return token, user, nil
}

func (s *ServiceImpl) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}
