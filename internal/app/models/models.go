package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a platform account.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserInterest is a declared onboarding interest: one (category, weight) pair
// per user. Weight is 1-10, set at onboarding and mutable later.
type UserInterest struct {
	UserID    uuid.UUID        `json:"user_id"`
	Category  InterestCategory `json:"category"`
	Weight    int              `json:"weight"`
	CreatedAt time.Time        `json:"created_at"`
}

// Follow is a directed edge follower -> followee.
type Follow struct {
	FollowerID uuid.UUID `json:"follower_id"`
	FolloweeID uuid.UUID `json:"followee_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Place is an optional location tag on a moment.
type Place struct {
	ID        uuid.UUID     `json:"id"`
	Name      string        `json:"name"`
	Country   string        `json:"country"`
	Category  PlaceCategory `json:"category"`
	CreatedAt time.Time     `json:"created_at"`
}

// Moment is a user-authored, optionally place-tagged, optionally rated travel
// post. CompositeScore is produced upstream (0-10) and is nil until the moment
// has been rated; once set, the moment is immutable except for its counters.
type Moment struct {
	ID             uuid.UUID      `json:"id"`
	AuthorID       uuid.UUID      `json:"author_id"`
	PlaceID        *uuid.UUID     `json:"place_id,omitempty"`
	PlaceName      *string        `json:"place_name,omitempty"`
	PlaceCountry   *string        `json:"place_country,omitempty"`
	PlaceCategory  *PlaceCategory `json:"place_category,omitempty"`
	Title          string         `json:"title"`
	Body           string         `json:"body"`
	CompositeScore *float64       `json:"composite_score,omitempty"`
	LikeCount      int            `json:"like_count"`
	ViewCount      int            `json:"view_count"`
	SaveCount      int            `json:"save_count"`
	CreatedAt      time.Time      `json:"created_at"`
}

// EventType classifies a behavioral event.
type EventType string

const (
	EventView EventType = "VIEW"
	EventSave EventType = "SAVE"
	EventLike EventType = "LIKE"
)

// TargetMoment is the only target type the recommendation engine consumes.
const TargetMoment = "MOMENT"

// UserEvent is an append-only behavioral log entry. Rows are never mutated or
// deleted by the recommendation subsystem.
type UserEvent struct {
	ID         int64     `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	EventType  EventType `json:"event_type"`
	TargetType string    `json:"target_type"`
	TargetID   uuid.UUID `json:"target_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// MomentEngagement is a behavioral event joined with the place category of the
// moment it targeted, which is all the affinity estimator needs.
type MomentEngagement struct {
	EventType     EventType      `json:"event_type"`
	PlaceCategory *PlaceCategory `json:"place_category,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// ScoreFactors is the per-signal breakdown persisted alongside each
// recommendation score for explainability.
type ScoreFactors struct {
	Interest   float64 `json:"interest"`
	Social     float64 `json:"social"`
	Behavioral float64 `json:"behavioral"`
	Quality    float64 `json:"quality"`
	Freshness  float64 `json:"freshness"`
	Discovery  float64 `json:"discovery"`
}

// RecommendationScore is one cached ranking row for a (user, moment) pair.
// The full set of rows for a user is one coherent ranking generation,
// replaced wholesale by every refresh.
type RecommendationScore struct {
	UserID    uuid.UUID    `json:"user_id"`
	MomentID  uuid.UUID    `json:"moment_id"`
	Score     float64      `json:"score"`
	Factors   ScoreFactors `json:"factors"`
	CreatedAt time.Time    `json:"created_at"`
}

// FeedFilters are the optional filters a caller may supply on the recommended
// feed. They are intersected with the ranked ID set after ranking.
type FeedFilters struct {
	Query   string `json:"q,omitempty"`
	Country string `json:"country,omitempty"`
}

// FeedItem is one ranked entry in the recommended feed response.
type FeedItem struct {
	Moment  Moment       `json:"moment"`
	Score   float64      `json:"score"`
	Factors ScoreFactors `json:"factors"`
}

// FeedSource records which path produced a feed page.
type FeedSource string

const (
	FeedSourceCache   FeedSource = "cache"
	FeedSourceInline  FeedSource = "inline"
	FeedSourceQuality FeedSource = "quality"
)

// RecommendedFeedResponse is the paginated recommended feed payload.
type RecommendedFeedResponse struct {
	Items    []FeedItem `json:"items"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
	Total    int        `json:"total"`
	Source   FeedSource `json:"source"`
}
