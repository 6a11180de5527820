package recommendations

import (
	"math"
	"time"

	"github.com/wayfarerhq/wayfarer/internal/app/models"
)

// AffinityMap is a per-category interest strength. Behavioral entries are
// keyed by place category and normalized into (0,1]; declared entries injected
// by the cold-start blend are keyed by interest category and may exceed 1.0.
type AffinityMap map[string]float64

const (
	// EventWindow bounds the behavioral history the estimator reads.
	EventWindow = 30 * 24 * time.Hour

	// affinityHalfLife is half the event window: an action loses half its
	// weight roughly every 15 days.
	affinityHalfLife = EventWindow / 2

	// ColdStartThreshold is the lifetime event count below which declared
	// onboarding interests are blended into the behavioral map.
	ColdStartThreshold = 10

	// declaredWeightScale rescales declared weights (1-10) into affinity
	// space (0.2-2.0). Values above 1.0 are intentional headroom.
	declaredWeightScale = 5.0
)

func eventBaseWeight(t models.EventType) float64 {
	switch t {
	case models.EventSave:
		return 3
	case models.EventLike:
		return 2
	case models.EventView:
		return 1
	default:
		return 0
	}
}

// EstimateAffinities converts a user's recent moment engagements into a
// normalized per-category affinity map. Each event contributes
// base(type) * exp(-age / halfLife) to its moment's place category; the
// accumulated weights are divided by the maximum so the user's single most
// expressed category sits at exactly 1.0. Users with no history get an empty
// map, never an error.
func EstimateAffinities(engagements []models.MomentEngagement, now time.Time) AffinityMap {
	if len(engagements) == 0 {
		return AffinityMap{}
	}

	acc := make(AffinityMap)
	for _, e := range engagements {
		if e.PlaceCategory == nil {
			continue
		}
		base := eventBaseWeight(e.EventType)
		if base == 0 {
			continue
		}
		age := float64(now.Sub(e.CreatedAt).Milliseconds())
		decay := math.Exp(-age / float64(affinityHalfLife.Milliseconds()))
		acc[string(*e.PlaceCategory)] += base * decay
	}

	if len(acc) == 0 {
		return acc
	}

	maxWeight := 1.0
	for _, w := range acc {
		if w > maxWeight {
			maxWeight = w
		}
	}
	for c, w := range acc {
		acc[c] = w / maxWeight
	}
	return acc
}

// BlendDeclaredInterests applies the cold-start blend: when the user's
// lifetime event count is below the threshold, every declared interest
// category absent from the behavioral map is injected at weight/5.
// Behavioral signal always wins over declared signal for the same key.
func BlendDeclaredInterests(affinities AffinityMap, declared []models.UserInterest, totalEvents int) AffinityMap {
	if totalEvents >= ColdStartThreshold {
		return affinities
	}
	if affinities == nil {
		affinities = AffinityMap{}
	}
	for _, d := range declared {
		key := string(d.Category)
		if _, ok := affinities[key]; ok {
			continue
		}
		affinities[key] = float64(d.Weight) / declaredWeightScale
	}
	return affinities
}
