package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/wayfarerhq/wayfarer/internal/app/models"
	"github.com/wayfarerhq/wayfarer/internal/pkg/config"
)

// MockAuthRepo is a mock implementation of the Repository interface
type MockAuthRepo struct {
	mock.Mock
}

func (m *MockAuthRepo) Register(ctx context.Context, username, email, hashedPassword string) (*models.User, error) {
	args := m.Called(ctx, username, email, hashedPassword)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockAuthRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockAuthRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			SecretKey:       "test-secret-key-at-least-32-characters",
			TokenExpiration: 24 * time.Hour,
		},
	}
}

func TestLogin(t *testing.T) {
	mockRepo := new(MockAuthRepo)
	service := NewService(mockRepo, testConfig(), zap.NewNop())

	t.Run("Success", func(t *testing.T) {
		ctx := context.Background()
		email := "test@example.com"
		password := "password123"
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		assert.NoError(t, err)

		user := &models.User{
			ID:           uuid.New(),
			Username:     "testuser",
			Email:        email,
			PasswordHash: string(hashedPassword),
		}

		mockRepo.On("GetUserByEmail", ctx, email).Return(user, nil).Once()

		token, gotUser, err := service.Login(ctx, email, password)

		assert.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Equal(t, user.ID, gotUser.ID)
		mockRepo.AssertExpectations(t)

		claims, err := NewJWTService().ValidateToken(JWTConfig{
			SecretKey:       "test-secret-key-at-least-32-characters",
			TokenExpiration: 24 * time.Hour,
		}, token)
		assert.NoError(t, err)
		assert.Equal(t, user.ID.String(), claims.UserID)
	})

	t.Run("UserNotFound", func(t *testing.T) {
		ctx := context.Background()
		email := "nonexistent@example.com"

		mockRepo.On("GetUserByEmail", ctx, email).Return(nil, models.ErrNotFound).Once()

		token, gotUser, err := service.Login(ctx, email, "password123")

		assert.Error(t, err)
		assert.Empty(t, token)
		assert.Nil(t, gotUser)
		assert.ErrorIs(t, err, models.ErrUnauthenticated)
		mockRepo.AssertExpectations(t)
	})

	t.Run("InvalidPassword", func(t *testing.T) {
		ctx := context.Background()
		email := "test@example.com"
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte("correctpassword"), bcrypt.DefaultCost)
		assert.NoError(t, err)

		user := &models.User{
			ID:           uuid.New(),
			Username:     "testuser",
			Email:        email,
			PasswordHash: string(hashedPassword),
		}

		mockRepo.On("GetUserByEmail", ctx, email).Return(user, nil).Once()

		token, gotUser, err := service.Login(ctx, email, "wrongpassword")

		assert.Error(t, err)
		assert.Empty(t, token)
		assert.Nil(t, gotUser)
		assert.ErrorIs(t, err, models.ErrUnauthenticated)
		mockRepo.AssertExpectations(t)
	})
}

func TestRegister(t *testing.T) {
	mockRepo := new(MockAuthRepo)
	service := NewService(mockRepo, testConfig(), zap.NewNop())

	t.Run("Success", func(t *testing.T) {
		ctx := context.Background()
		created := &models.User{
			ID:       uuid.New(),
			Username: "newuser",
			Email:    "new@example.com",
		}

		mockRepo.On("Register", ctx, "newuser", "new@example.com", mock.AnythingOfType("string")).Return(created, nil).Once()

		user, err := service.Register(ctx, "newuser", "new@example.com", "password123")

		assert.NoError(t, err)
		assert.Equal(t, created.ID, user.ID)
		mockRepo.AssertExpectations(t)
	})

	t.Run("ShortPassword", func(t *testing.T) {
		ctx := context.Background()
		freshRepo := new(MockAuthRepo)
		freshService := NewService(freshRepo, testConfig(), zap.NewNop())

		user, err := freshService.Register(ctx, "newuser", "new@example.com", "short")

		assert.Error(t, err)
		assert.Nil(t, user)
		assert.ErrorIs(t, err, models.ErrValidation)
		freshRepo.AssertNotCalled(t, "Register", ctx, "newuser", "new@example.com", mock.Anything)
	})

	t.Run("EmailConflict", func(t *testing.T) {
		ctx := context.Background()

		mockRepo.On("Register", ctx, "newuser", "taken@example.com", mock.AnythingOfType("string")).Return(nil, models.ErrConflict).Once()

		user, err := service.Register(ctx, "newuser", "taken@example.com", "password123")

		assert.Error(t, err)
		assert.Nil(t, user)
		assert.ErrorIs(t, err, models.ErrConflict)
		mockRepo.AssertExpectations(t)
	})
}
