package recommendations

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/wayfarerhq/wayfarer/internal/app/models"
)

// Signal weights of the linear combination. Fixed constants, not learned.
const (
	weightInterest   = 3.0
	weightSocial     = 2.0
	weightBehavioral = 3.0
	weightQuality    = 1.5
	weightFreshness  = 1.0
	weightDiscovery  = 0.5
)

const (
	socialFollowBonus = 0.5
	// DefaultGlobalSaveRate applies when the user has no recorded views, so
	// newcomers still get non-zero behavioral scores.
	DefaultGlobalSaveRate = 0.1

	qualityConfidenceSaves = 5.0
	freshnessHalfLifeDays  = 14.0
	freshnessBoostWindow   = 48 * time.Hour
	freshnessBoost         = 1.5
)

// ScoredCandidate is one ranked moment with its signal breakdown.
type ScoredCandidate struct {
	MomentID uuid.UUID
	Score    float64
	Factors  models.ScoreFactors
}

// ScoreCandidates scores every candidate moment against the viewer's
// affinities and social graph and returns the list ordered by descending
// total. Ties keep candidate order (stable sort) so repeated runs over the
// same input produce identical rankings. Purely a computation over
// already-fetched data; an empty candidate set yields an empty list.
func ScoreCandidates(candidates []models.Moment, affinities AffinityMap, following map[uuid.UUID]bool, globalSaveRate float64, now time.Time) []ScoredCandidate {
	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, m := range candidates {
		if m.CompositeScore == nil {
			continue
		}
		f := models.ScoreFactors{
			Interest:  interestSignal(m, affinities),
			Social:    socialSignal(m, following),
			Quality:   qualitySignal(m),
			Freshness: freshnessSignal(m, now),
			Discovery: discoverySignal(m, affinities),
		}
		f.Behavioral = behavioralSignal(f.Interest, globalSaveRate)

		total := weightInterest*f.Interest +
			weightSocial*f.Social +
			weightBehavioral*f.Behavioral +
			weightQuality*f.Quality +
			weightFreshness*f.Freshness +
			weightDiscovery*f.Discovery

		scored = append(scored, ScoredCandidate{
			MomentID: m.ID,
			Score:    total,
			Factors:  f,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

// interestSignal looks up the candidate's mapped interest category first and
// falls back to the raw place category key.
func interestSignal(m models.Moment, affinities AffinityMap) float64 {
	if m.PlaceCategory == nil {
		return 0
	}
	if ic, ok := models.InterestCategoryFor(*m.PlaceCategory); ok {
		if a, ok := affinities[string(ic)]; ok {
			return a
		}
	}
	if a, ok := affinities[string(*m.PlaceCategory)]; ok {
		return a
	}
	return 0
}

// socialSignal is a deliberately coarse binary bonus for followed authors.
func socialSignal(m models.Moment, following map[uuid.UUID]bool) float64 {
	if following[m.AuthorID] {
		return socialFollowBonus
	}
	return 0
}

func behavioralSignal(interest, globalSaveRate float64) float64 {
	if interest > 0 {
		return interest * globalSaveRate * 10
	}
	return globalSaveRate
}

// qualitySignal discounts the composite score by a confidence factor derived
// from how many saves the moment has accumulated. A brand-new unsaved moment
// with a perfect score scores near zero here until other users validate it.
func qualitySignal(m models.Moment) float64 {
	confidence := math.Min(float64(m.SaveCount)/qualityConfidenceSaves, 1)
	return (*m.CompositeScore / 10) * confidence
}

func freshnessSignal(m models.Moment, now time.Time) float64 {
	age := now.Sub(m.CreatedAt)
	ageDays := age.Hours() / 24
	boost := 1.0
	if age < freshnessBoostWindow {
		boost = freshnessBoost
	}
	return math.Exp(-ageDays/freshnessHalfLifeDays) * boost
}

// discoverySignal rewards place categories the user has never engaged with.
func discoverySignal(m models.Moment, affinities AffinityMap) float64 {
	if m.PlaceCategory == nil {
		return 0
	}
	if _, ok := affinities[string(*m.PlaceCategory)]; ok {
		return 0
	}
	return 1.0
}
