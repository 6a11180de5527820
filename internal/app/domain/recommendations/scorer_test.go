package recommendations

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/wayfarerhq/wayfarer/internal/app/models"
)

func scorePtr(v float64) *float64 { return &v }

func TestScoreCandidates(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("EmptyCandidateSet", func(t *testing.T) {
		scored := ScoreCandidates(nil, AffinityMap{}, nil, 0.1, now)
		assert.Empty(t, scored)
	})

	t.Run("FollowedAuthorMuseumScenario", func(t *testing.T) {
		// U follows V; V posts a MUSEUM moment with compositeScore 8.0 and
		// 5 saves. U has ART_CULTURE affinity 0.8 from declared interests
		// and has never engaged a MUSEUM place.
		author := uuid.New()
		momentID := uuid.New()
		createdAt := now.Add(-3 * 24 * time.Hour)

		moment := models.Moment{
			ID:             momentID,
			AuthorID:       author,
			PlaceCategory:  categoryPtr(models.PlaceMuseum),
			CompositeScore: scorePtr(8.0),
			SaveCount:      5,
			CreatedAt:      createdAt,
		}
		affinities := AffinityMap{
			string(models.InterestArtCulture): 0.8,
		}
		following := map[uuid.UUID]bool{author: true}

		scored := ScoreCandidates([]models.Moment{moment}, affinities, following, 0.2, now)

		assert.Len(t, scored, 1)
		f := scored[0].Factors
		assert.InDelta(t, 0.8, f.Interest, 1e-9)
		assert.InDelta(t, 0.5, f.Social, 1e-9)
		assert.InDelta(t, 1.6, f.Behavioral, 1e-9)
		assert.InDelta(t, 0.8, f.Quality, 1e-9)
		assert.InDelta(t, 1.0, f.Discovery, 1e-9)

		freshness := math.Exp(-3.0 / 14.0)
		assert.InDelta(t, freshness, f.Freshness, 1e-9)
		assert.InDelta(t, 9.9+freshness, scored[0].Score, 1e-9)
	})

	t.Run("RawCategoryFallback", func(t *testing.T) {
		// Behavioral affinity keyed by the raw place category is used when
		// no mapped interest-category entry exists.
		moment := models.Moment{
			ID:             uuid.New(),
			AuthorID:       uuid.New(),
			PlaceCategory:  categoryPtr(models.PlaceBeach),
			CompositeScore: scorePtr(6.0),
			CreatedAt:      now.Add(-24 * time.Hour),
		}
		affinities := AffinityMap{
			string(models.PlaceBeach): 0.4,
		}

		scored := ScoreCandidates([]models.Moment{moment}, affinities, nil, 0.1, now)

		assert.Len(t, scored, 1)
		assert.InDelta(t, 0.4, scored[0].Factors.Interest, 1e-9)
		// Engaged category, so no discovery bonus.
		assert.Equal(t, 0.0, scored[0].Factors.Discovery)
	})

	t.Run("QualityConfidenceDiscount", func(t *testing.T) {
		unvalidated := models.Moment{
			ID:             uuid.New(),
			AuthorID:       uuid.New(),
			CompositeScore: scorePtr(10.0),
			SaveCount:      0,
			CreatedAt:      now.Add(-24 * time.Hour),
		}
		validated := unvalidated
		validated.ID = uuid.New()
		validated.SaveCount = 10

		scored := ScoreCandidates([]models.Moment{unvalidated, validated}, AffinityMap{}, nil, 0.1, now)

		byID := map[uuid.UUID]ScoredCandidate{}
		for _, sc := range scored {
			byID[sc.MomentID] = sc
		}
		assert.Equal(t, 0.0, byID[unvalidated.ID].Factors.Quality)
		assert.InDelta(t, 1.0, byID[validated.ID].Factors.Quality, 1e-9)
	})

	t.Run("FreshnessBoostWindow", func(t *testing.T) {
		fresh := models.Moment{
			ID:             uuid.New(),
			AuthorID:       uuid.New(),
			CompositeScore: scorePtr(5.0),
			CreatedAt:      now.Add(-12 * time.Hour),
		}

		scored := ScoreCandidates([]models.Moment{fresh}, AffinityMap{}, nil, 0.1, now)

		want := math.Exp(-0.5/14.0) * 1.5
		assert.InDelta(t, want, scored[0].Factors.Freshness, 1e-9)
	})

	t.Run("BehavioralDefaultWithoutInterest", func(t *testing.T) {
		moment := models.Moment{
			ID:             uuid.New(),
			AuthorID:       uuid.New(),
			CompositeScore: scorePtr(5.0),
			CreatedAt:      now.Add(-24 * time.Hour),
		}

		scored := ScoreCandidates([]models.Moment{moment}, AffinityMap{}, nil, 0.25, now)

		assert.InDelta(t, 0.25, scored[0].Factors.Behavioral, 1e-9)
	})

	t.Run("SkipsUnratedMoments", func(t *testing.T) {
		moment := models.Moment{
			ID:        uuid.New(),
			AuthorID:  uuid.New(),
			CreatedAt: now,
		}

		scored := ScoreCandidates([]models.Moment{moment}, AffinityMap{}, nil, 0.1, now)

		assert.Empty(t, scored)
	})

	t.Run("StableOrderForTiedScores", func(t *testing.T) {
		// Identical moments score identically; the stable sort keeps input
		// order, so repeated runs return the same ranking.
		a := models.Moment{ID: uuid.New(), AuthorID: uuid.New(), CompositeScore: scorePtr(7.0), SaveCount: 5, CreatedAt: now.Add(-24 * time.Hour)}
		b := a
		b.ID = uuid.New()
		c := models.Moment{ID: uuid.New(), AuthorID: uuid.New(), CompositeScore: scorePtr(1.0), SaveCount: 5, CreatedAt: now.Add(-20 * 24 * time.Hour)}

		first := ScoreCandidates([]models.Moment{a, b, c}, AffinityMap{}, nil, 0.1, now)
		second := ScoreCandidates([]models.Moment{a, b, c}, AffinityMap{}, nil, 0.1, now)

		assert.Equal(t, first, second)
		assert.Equal(t, a.ID, first[0].MomentID)
		assert.Equal(t, b.ID, first[1].MomentID)
		assert.Equal(t, c.ID, first[2].MomentID)
		assert.Equal(t, first[0].Score, first[1].Score)
	})
}
