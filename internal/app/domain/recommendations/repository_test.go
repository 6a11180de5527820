package recommendations

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wayfarerhq/wayfarer/internal/app/models"
)

func TestReplaceUserScores(t *testing.T) {
	userID := uuid.New()
	scores := []ScoredCandidate{
		{MomentID: uuid.New(), Score: 9.1, Factors: models.ScoreFactors{Interest: 0.8, Quality: 0.5}},
		{MomentID: uuid.New(), Score: 4.2, Factors: models.ScoreFactors{Freshness: 1.2}},
	}

	t.Run("SwapCommitsAsOneUnit", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		repo := NewRepository(mockPool, zap.NewNop())

		mockPool.ExpectBegin()
		mockPool.ExpectExec("DELETE FROM recommendation_scores").
			WithArgs(userID).
			WillReturnResult(pgxmock.NewResult("DELETE", 3))
		for i, s := range scores {
			factors, mErr := json.Marshal(s.Factors)
			require.NoError(t, mErr)
			mockPool.ExpectExec("INSERT INTO recommendation_scores").
				WithArgs(userID, s.MomentID, i, s.Score, factors).
				WillReturnResult(pgxmock.NewResult("INSERT", 1))
		}
		mockPool.ExpectCommit()

		err = repo.ReplaceUserScores(context.Background(), userID, scores)

		assert.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("InsertFailureRollsBackWholeGeneration", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		repo := NewRepository(mockPool, zap.NewNop())

		mockPool.ExpectBegin()
		mockPool.ExpectExec("DELETE FROM recommendation_scores").
			WithArgs(userID).
			WillReturnResult(pgxmock.NewResult("DELETE", 3))
		firstFactors, mErr := json.Marshal(scores[0].Factors)
		require.NoError(t, mErr)
		mockPool.ExpectExec("INSERT INTO recommendation_scores").
			WithArgs(userID, scores[0].MomentID, 0, scores[0].Score, firstFactors).
			WillReturnError(errors.New("disk full"))
		mockPool.ExpectRollback()

		err = repo.ReplaceUserScores(context.Background(), userID, scores)

		assert.Error(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("BeginFailure", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		repo := NewRepository(mockPool, zap.NewNop())

		mockPool.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

		err = repo.ReplaceUserScores(context.Background(), userID, scores)

		assert.Error(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestGetUserScoresPage(t *testing.T) {
	userID := uuid.New()
	momentID := uuid.New()
	createdAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("ScansFactorsJSON", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		repo := NewRepository(mockPool, zap.NewNop())

		factors, mErr := json.Marshal(models.ScoreFactors{Interest: 0.8, Social: 0.5})
		require.NoError(t, mErr)

		rows := pgxmock.NewRows([]string{"user_id", "moment_id", "score", "factors", "created_at"}).
			AddRow(userID, momentID, 9.9, factors, createdAt)
		mockPool.ExpectQuery("SELECT user_id, moment_id, score, factors, created_at").
			WithArgs(userID, 0, 20).
			WillReturnRows(rows)

		scores, err := repo.GetUserScoresPage(context.Background(), userID, 0, 20)

		assert.NoError(t, err)
		require.Len(t, scores, 1)
		assert.Equal(t, momentID, scores[0].MomentID)
		assert.Equal(t, 9.9, scores[0].Score)
		assert.Equal(t, 0.8, scores[0].Factors.Interest)
		assert.Equal(t, 0.5, scores[0].Factors.Social)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("TiedScoresKeepGenerationOrder", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		repo := NewRepository(mockPool, zap.NewNop())

		first := uuid.New()
		second := uuid.New()
		factors, mErr := json.Marshal(models.ScoreFactors{})
		require.NoError(t, mErr)

		rows := pgxmock.NewRows([]string{"user_id", "moment_id", "score", "factors", "created_at"}).
			AddRow(userID, first, 9.1, factors, createdAt).
			AddRow(userID, second, 9.1, factors, createdAt)
		mockPool.ExpectQuery(`ORDER BY score DESC, position ASC`).
			WithArgs(userID, 0, 2).
			WillReturnRows(rows)

		scores, err := repo.GetUserScoresPage(context.Background(), userID, 0, 2)

		assert.NoError(t, err)
		require.Len(t, scores, 2)
		assert.Equal(t, first, scores[0].MomentID)
		assert.Equal(t, second, scores[1].MomentID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("EmptyPage", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		repo := NewRepository(mockPool, zap.NewNop())

		rows := pgxmock.NewRows([]string{"user_id", "moment_id", "score", "factors", "created_at"})
		mockPool.ExpectQuery("SELECT user_id, moment_id, score, factors, created_at").
			WithArgs(userID, 40, 20).
			WillReturnRows(rows)

		scores, err := repo.GetUserScoresPage(context.Background(), userID, 40, 20)

		assert.NoError(t, err)
		assert.Empty(t, scores)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestCountUserScores(t *testing.T) {
	userID := uuid.New()

	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewRepository(mockPool, zap.NewNop())

	mockPool.ExpectQuery("SELECT COUNT").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(42))

	count, err := repo.CountUserScores(context.Background(), userID)

	assert.NoError(t, err)
	assert.Equal(t, 42, count)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
