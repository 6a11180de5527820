package recommendations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/wayfarerhq/wayfarer/internal/app/domain/moments"
	"github.com/wayfarerhq/wayfarer/internal/app/models"
)

// --- Mocks for Dependencies ---

type MockScoreRepo struct {
	mock.Mock
}

func (m *MockScoreRepo) ReplaceUserScores(ctx context.Context, userID uuid.UUID, scores []ScoredCandidate) error {
	args := m.Called(ctx, userID, scores)
	return args.Error(0)
}

func (m *MockScoreRepo) GetUserScoresPage(ctx context.Context, userID uuid.UUID, offset, limit int) ([]models.RecommendationScore, error) {
	args := m.Called(ctx, userID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RecommendationScore), args.Error(1)
}

func (m *MockScoreRepo) GetUserScores(ctx context.Context, userID uuid.UUID) ([]models.RecommendationScore, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RecommendationScore), args.Error(1)
}

func (m *MockScoreRepo) CountUserScores(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type MockEventRepo struct {
	mock.Mock
}

func (m *MockEventRepo) RecordEvent(ctx context.Context, userID uuid.UUID, eventType models.EventType, targetType string, targetID uuid.UUID) error {
	args := m.Called(ctx, userID, eventType, targetType, targetID)
	return args.Error(0)
}

func (m *MockEventRepo) GetMomentEngagements(ctx context.Context, userID uuid.UUID, since time.Time) ([]models.MomentEngagement, error) {
	args := m.Called(ctx, userID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MomentEngagement), args.Error(1)
}

func (m *MockEventRepo) CountMomentEvents(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockEventRepo) GetGlobalSaveRate(ctx context.Context, userID uuid.UUID) (float64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(float64), args.Error(1)
}

type MockInterestRepo struct {
	mock.Mock
}

func (m *MockInterestRepo) SetInterest(ctx context.Context, userID uuid.UUID, category models.InterestCategory, weight int) (*models.UserInterest, error) {
	args := m.Called(ctx, userID, category, weight)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserInterest), args.Error(1)
}

func (m *MockInterestRepo) RemoveInterest(ctx context.Context, userID uuid.UUID, category models.InterestCategory) error {
	args := m.Called(ctx, userID, category)
	return args.Error(0)
}

func (m *MockInterestRepo) GetUserInterests(ctx context.Context, userID uuid.UUID) ([]models.UserInterest, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.UserInterest), args.Error(1)
}

type MockFollowRepo struct {
	mock.Mock
}

func (m *MockFollowRepo) Follow(ctx context.Context, followerID, followeeID uuid.UUID) error {
	args := m.Called(ctx, followerID, followeeID)
	return args.Error(0)
}

func (m *MockFollowRepo) Unfollow(ctx context.Context, followerID, followeeID uuid.UUID) error {
	args := m.Called(ctx, followerID, followeeID)
	return args.Error(0)
}

func (m *MockFollowRepo) GetFollowingSet(ctx context.Context, followerID uuid.UUID) (map[uuid.UUID]bool, error) {
	args := m.Called(ctx, followerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]bool), args.Error(1)
}

type MockMomentRepo struct {
	mock.Mock
}

func (m *MockMomentRepo) CreateMoment(ctx context.Context, params moments.CreateMomentParams) (*models.Moment, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Moment), args.Error(1)
}

func (m *MockMomentRepo) GetMoment(ctx context.Context, momentID uuid.UUID) (*models.Moment, error) {
	args := m.Called(ctx, momentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Moment), args.Error(1)
}

func (m *MockMomentRepo) GetMomentsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Moment, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Moment), args.Error(1)
}

func (m *MockMomentRepo) ListCandidates(ctx context.Context, viewerID uuid.UUID) ([]models.Moment, error) {
	args := m.Called(ctx, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Moment), args.Error(1)
}

func (m *MockMomentRepo) ListByQuality(ctx context.Context, viewerID uuid.UUID, country *string, offset, limit int) ([]models.Moment, error) {
	args := m.Called(ctx, viewerID, country, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Moment), args.Error(1)
}

func (m *MockMomentRepo) CountEligible(ctx context.Context, viewerID uuid.UUID, country *string) (int, error) {
	args := m.Called(ctx, viewerID, country)
	return args.Int(0), args.Error(1)
}

func (m *MockMomentRepo) IncrementCounter(ctx context.Context, momentID uuid.UUID, eventType models.EventType) error {
	args := m.Called(ctx, momentID, eventType)
	return args.Error(0)
}

// --- Tests ---

type serviceFixture struct {
	scores    *MockScoreRepo
	events    *MockEventRepo
	interests *MockInterestRepo
	follows   *MockFollowRepo
	moments   *MockMomentRepo
	service   *ServiceImpl
}

func newServiceFixture(t *testing.T, now time.Time) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		scores:    new(MockScoreRepo),
		events:    new(MockEventRepo),
		interests: new(MockInterestRepo),
		follows:   new(MockFollowRepo),
		moments:   new(MockMomentRepo),
	}
	f.service = NewService(f.scores, f.events, f.interests, f.follows, f.moments, zap.NewNop())
	f.service.now = func() time.Time { return now }
	t.Cleanup(f.service.Close)
	return f
}

func (f *serviceFixture) expectInput(userID uuid.UUID, engagements []models.MomentEngagement, declared []models.UserInterest, following map[uuid.UUID]bool, candidates []models.Moment, eventCount int, saveRate float64) {
	f.events.On("GetMomentEngagements", mock.Anything, userID, mock.AnythingOfType("time.Time")).Return(engagements, nil)
	f.events.On("CountMomentEvents", mock.Anything, userID).Return(eventCount, nil)
	f.events.On("GetGlobalSaveRate", mock.Anything, userID).Return(saveRate, nil)
	f.interests.On("GetUserInterests", mock.Anything, userID).Return(declared, nil)
	f.follows.On("GetFollowingSet", mock.Anything, userID).Return(following, nil)
	f.moments.On("ListCandidates", mock.Anything, userID).Return(candidates, nil)
}

func TestRefresh(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Deterministic", func(t *testing.T) {
		f := newServiceFixture(t, now)
		userID := uuid.New()
		author := uuid.New()

		candidates := []models.Moment{
			{ID: uuid.New(), AuthorID: author, PlaceCategory: categoryPtr(models.PlaceMuseum), CompositeScore: scorePtr(8.0), SaveCount: 5, CreatedAt: now.Add(-72 * time.Hour)},
			{ID: uuid.New(), AuthorID: author, PlaceCategory: categoryPtr(models.PlaceCafe), CompositeScore: scorePtr(6.5), SaveCount: 2, CreatedAt: now.Add(-24 * time.Hour)},
		}
		engagements := []models.MomentEngagement{
			{EventType: models.EventSave, PlaceCategory: categoryPtr(models.PlaceMuseum), CreatedAt: now.Add(-48 * time.Hour)},
		}
		f.expectInput(userID, engagements, nil, map[uuid.UUID]bool{author: true}, candidates, 20, 0.2)

		first, err := f.service.ComputeRanking(context.Background(), userID)
		assert.NoError(t, err)
		second, err := f.service.ComputeRanking(context.Background(), userID)
		assert.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Len(t, first, 2)
	})

	t.Run("EmptyCandidateSetIsNoOp", func(t *testing.T) {
		f := newServiceFixture(t, now)
		userID := uuid.New()

		f.expectInput(userID, nil, nil, map[uuid.UUID]bool{}, []models.Moment{}, 0, 0.1)

		err := f.service.Refresh(context.Background(), userID)

		assert.NoError(t, err)
		f.scores.AssertNotCalled(t, "ReplaceUserScores", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("PersistsScoredCandidates", func(t *testing.T) {
		f := newServiceFixture(t, now)
		userID := uuid.New()
		candidates := []models.Moment{
			{ID: uuid.New(), AuthorID: uuid.New(), CompositeScore: scorePtr(7.0), SaveCount: 5, CreatedAt: now.Add(-24 * time.Hour)},
		}

		f.expectInput(userID, nil, nil, map[uuid.UUID]bool{}, candidates, 15, 0.1)
		f.scores.On("ReplaceUserScores", mock.Anything, userID, mock.AnythingOfType("[]recommendations.ScoredCandidate")).Return(nil).Once()

		err := f.service.Refresh(context.Background(), userID)

		assert.NoError(t, err)
		f.scores.AssertExpectations(t)
	})

	t.Run("InputFetchFailurePropagates", func(t *testing.T) {
		f := newServiceFixture(t, now)
		userID := uuid.New()

		dbErr := errors.New("connection reset")
		f.events.On("GetMomentEngagements", mock.Anything, userID, mock.AnythingOfType("time.Time")).Return(nil, dbErr)
		f.events.On("CountMomentEvents", mock.Anything, userID).Return(0, nil).Maybe()
		f.events.On("GetGlobalSaveRate", mock.Anything, userID).Return(0.1, nil).Maybe()
		f.interests.On("GetUserInterests", mock.Anything, userID).Return(nil, nil).Maybe()
		f.follows.On("GetFollowingSet", mock.Anything, userID).Return(map[uuid.UUID]bool{}, nil).Maybe()
		f.moments.On("ListCandidates", mock.Anything, userID).Return(nil, nil).Maybe()

		err := f.service.Refresh(context.Background(), userID)

		assert.Error(t, err)
		f.scores.AssertNotCalled(t, "ReplaceUserScores", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("AsyncRefreshSwallowsErrors", func(t *testing.T) {
		f := newServiceFixture(t, now)
		userID := uuid.New()

		done := make(chan struct{})
		dbErr := errors.New("connection reset")
		f.events.On("GetMomentEngagements", mock.Anything, userID, mock.AnythingOfType("time.Time")).
			Run(func(mock.Arguments) { close(done) }).
			Return(nil, dbErr)
		f.events.On("CountMomentEvents", mock.Anything, userID).Return(0, nil).Maybe()
		f.events.On("GetGlobalSaveRate", mock.Anything, userID).Return(0.1, nil).Maybe()
		f.interests.On("GetUserInterests", mock.Anything, userID).Return(nil, nil).Maybe()
		f.follows.On("GetFollowingSet", mock.Anything, userID).Return(map[uuid.UUID]bool{}, nil).Maybe()
		f.moments.On("ListCandidates", mock.Anything, userID).Return(nil, nil).Maybe()

		f.service.RefreshAsync(userID)

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("background refresh never ran")
		}
	})

	t.Run("AsyncRefreshAfterCloseIsNoOp", func(t *testing.T) {
		f := newServiceFixture(t, now)

		f.service.Close()

		assert.NotPanics(t, func() { f.service.RefreshAsync(uuid.New()) })
		assert.NotPanics(t, f.service.Close)
	})
}
