package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	aho_corasick "github.com/petar-dambovaliev/aho-corasick"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/wayfarerhq/wayfarer/internal/app/domain/moments"
	"github.com/wayfarerhq/wayfarer/internal/app/domain/recommendations"
	"github.com/wayfarerhq/wayfarer/internal/app/models"
	"github.com/wayfarerhq/wayfarer/internal/app/observability/metrics"
)

var _ Service = (*ServiceImpl)(nil)

// Service serves the "recommended" feed filter. It prefers the cached
// ranking, falls back to an inline computation, and as a last resort orders
// eligible moments by composite score. It never surfaces an error for a
// degraded ranking.
type Service interface {
	GetRecommendedFeed(ctx context.Context, userID uuid.UUID, page, pageSize int, filters models.FeedFilters) (*models.RecommendedFeedResponse, error)
}

type ServiceImpl struct {
	logger    *zap.Logger
	recsRepo  recommendations.Repository
	recs      recommendations.Service
	moments   moments.Repository
	rankCache *cache.Cache
	fold      cases.Caser
}

const (
	defaultPageSize = 20
	maxPageSize     = 50

	// Upper bound on the quality-ordered rows scanned when a free-text
	// filter has to run in memory.
	qualityScanLimit = 500
)

func NewService(recsRepo recommendations.Repository, recsService recommendations.Service, momentsRepo moments.Repository, logger *zap.Logger) *ServiceImpl {
	metrics.InitAppMetrics()
	return &ServiceImpl{
		logger:    logger,
		recsRepo:  recsRepo,
		recs:      recsService,
		moments:   momentsRepo,
		rankCache: cache.New(2*time.Minute, 5*time.Minute),
		fold:      cases.Fold(),
	}
}

func (s *ServiceImpl) GetRecommendedFeed(ctx context.Context, userID uuid.UUID, page, pageSize int, filters models.FeedFilters) (*models.RecommendedFeedResponse, error) {
	ctx, span := otel.Tracer("FeedService").Start(ctx, "GetRecommendedFeed", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "GetRecommendedFeed"), zap.String("userID", userID.String()))

	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	// Opportunistic refresh once this response is computed. Fire-and-forget:
	// outcome not awaited, errors only logged inside the worker.
	defer s.recs.RefreshAsync(userID)

	var (
		resp *models.RecommendedFeedResponse
		err  error
	)
	if filters.Query == "" && filters.Country == "" {
		resp, err = s.pagedFeed(ctx, userID, page, pageSize)
	} else {
		resp, err = s.filteredFeed(ctx, userID, page, pageSize, filters)
	}
	if err != nil {
		l.Error("All feed paths failed", zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Feed unavailable")
		return nil, err
	}

	m := metrics.Get()
	m.FeedRequestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", string(resp.Source)),
	))
	if resp.Source == models.FeedSourceCache {
		m.FeedCacheHitsTotal.Add(ctx, 1)
	} else {
		m.FeedCacheMissesTotal.Add(ctx, 1)
	}

	span.SetAttributes(
		attribute.Int("items.count", len(resp.Items)),
		attribute.String("feed.source", string(resp.Source)),
	)
	span.SetStatus(codes.Ok, "Feed served")
	return resp, nil
}

// pagedFeed is the unfiltered path: one cache page, then the fallback chain.
func (s *ServiceImpl) pagedFeed(ctx context.Context, userID uuid.UUID, page, pageSize int) (*models.RecommendedFeedResponse, error) {
	l := s.logger.With(zap.String("method", "pagedFeed"), zap.String("userID", userID.String()))
	offset := (page - 1) * pageSize

	scores, err := s.recsRepo.GetUserScoresPage(ctx, userID, offset, pageSize)
	if err != nil {
		l.Warn("Cache read failed, falling back", zap.Any("error", err))
	} else if len(scores) > 0 {
		items, hErr := s.hydrateScores(ctx, scores)
		if hErr == nil {
			total, cErr := s.recsRepo.CountUserScores(ctx, userID)
			if cErr != nil {
				l.Warn("Cache count failed, approximating total", zap.Any("error", cErr))
				total = offset + len(items)
			}
			return &models.RecommendedFeedResponse{
				Items:    items,
				Page:     page,
				PageSize: pageSize,
				Total:    total,
				Source:   models.FeedSourceCache,
			}, nil
		}
		l.Warn("Cache hydration failed, falling back", zap.Any("error", hErr))
	}

	if items, total, ok := s.inlineRanking(ctx, userID, offset, pageSize); ok {
		return &models.RecommendedFeedResponse{
			Items:    items,
			Page:     page,
			PageSize: pageSize,
			Total:    total,
			Source:   models.FeedSourceInline,
		}, nil
	}

	return s.qualityFeed(ctx, userID, page, pageSize, nil)
}

// filteredFeed intersects caller filters with the full ranked set after
// ranking, preserving rank order among the survivors.
func (s *ServiceImpl) filteredFeed(ctx context.Context, userID uuid.UUID, page, pageSize int, filters models.FeedFilters) (*models.RecommendedFeedResponse, error) {
	l := s.logger.With(zap.String("method", "filteredFeed"), zap.String("userID", userID.String()))

	ranked, source, err := s.fullRanking(ctx, userID)
	if err != nil {
		l.Warn("Ranked feed unavailable for filtering, using quality order", zap.Any("error", err))
		country := filters.Country
		if filters.Query == "" {
			// Country alone is pushed down into the SQL, pagination stays
			// server-side.
			return s.qualityFeed(ctx, userID, page, pageSize, &country)
		}
		return s.qualityFilteredFeed(ctx, userID, page, pageSize, filters)
	}

	survivors := s.filterByCountry(ranked, filters.Country)
	survivors = s.filterByQuery(survivors, filters.Query)

	offset := (page - 1) * pageSize
	pageItems := paginate(survivors, offset, pageSize)

	return &models.RecommendedFeedResponse{
		Items:    pageItems,
		Page:     page,
		PageSize: pageSize,
		Total:    len(survivors),
		Source:   source,
	}, nil
}

// fullRanking returns the user's entire hydrated ranking, preferring the
// cache table and falling back to an inline computation. Hydrated results are
// memoized briefly since filtered requests tend to arrive in bursts.
func (s *ServiceImpl) fullRanking(ctx context.Context, userID uuid.UUID) ([]models.FeedItem, models.FeedSource, error) {
	cacheKey := userID.String()
	if cached, found := s.rankCache.Get(cacheKey); found {
		return cached.([]models.FeedItem), models.FeedSourceCache, nil
	}

	scores, err := s.recsRepo.GetUserScores(ctx, userID)
	if err == nil && len(scores) > 0 {
		items, hErr := s.hydrateScores(ctx, scores)
		if hErr == nil {
			s.rankCache.Set(cacheKey, items, cache.DefaultExpiration)
			return items, models.FeedSourceCache, nil
		}
		err = hErr
	}
	if err != nil {
		s.logger.Warn("Cache ranking unavailable, computing inline", zap.Any("error", err))
	}

	scored, err := s.recs.ComputeRanking(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("error computing inline ranking: %w", err)
	}
	items, err := s.hydrateScored(ctx, scored)
	if err != nil {
		return nil, "", fmt.Errorf("error hydrating inline ranking: %w", err)
	}
	s.rankCache.Set(cacheKey, items, cache.DefaultExpiration)
	return items, models.FeedSourceInline, nil
}

// inlineRanking is the legacy synchronous variant: score for just this
// request and slice out the requested page.
func (s *ServiceImpl) inlineRanking(ctx context.Context, userID uuid.UUID, offset, pageSize int) ([]models.FeedItem, int, bool) {
	scored, err := s.recs.ComputeRanking(ctx, userID)
	if err != nil {
		s.logger.Warn("Inline ranking failed, falling back to quality order", zap.Any("error", err))
		return nil, 0, false
	}
	if len(scored) == 0 {
		return nil, 0, false
	}

	pageScored := paginateScored(scored, offset, pageSize)
	items, err := s.hydrateScored(ctx, pageScored)
	if err != nil {
		s.logger.Warn("Inline hydration failed, falling back to quality order", zap.Any("error", err))
		return nil, 0, false
	}
	return items, len(scored), true
}

// qualityFilteredFeed handles a free-text query when no ranking is available.
// The query filter runs in memory, so the quality ordering is fetched unpaged
// (bounded) and paginated after filtering. Total counts the survivors, not a
// single page.
func (s *ServiceImpl) qualityFilteredFeed(ctx context.Context, userID uuid.UUID, page, pageSize int, filters models.FeedFilters) (*models.RecommendedFeedResponse, error) {
	var country *string
	if filters.Country != "" {
		country = &filters.Country
	}

	ms, err := s.moments.ListByQuality(ctx, userID, country, 0, qualityScanLimit)
	if err != nil {
		return nil, fmt.Errorf("error listing moments by quality: %w", err)
	}

	items := make([]models.FeedItem, 0, len(ms))
	for _, m := range ms {
		item := models.FeedItem{Moment: m}
		if m.CompositeScore != nil {
			item.Score = *m.CompositeScore
		}
		items = append(items, item)
	}
	survivors := s.filterByQuery(items, filters.Query)

	offset := (page - 1) * pageSize
	return &models.RecommendedFeedResponse{
		Items:    paginate(survivors, offset, pageSize),
		Page:     page,
		PageSize: pageSize,
		Total:    len(survivors),
		Source:   models.FeedSourceQuality,
	}, nil
}

// qualityFeed is the last resort: plain composite-score ordering.
func (s *ServiceImpl) qualityFeed(ctx context.Context, userID uuid.UUID, page, pageSize int, country *string) (*models.RecommendedFeedResponse, error) {
	offset := (page - 1) * pageSize

	ms, err := s.moments.ListByQuality(ctx, userID, country, offset, pageSize)
	if err != nil {
		return nil, fmt.Errorf("error listing moments by quality: %w", err)
	}
	total, err := s.moments.CountEligible(ctx, userID, country)
	if err != nil {
		s.logger.Warn("Eligible count failed, approximating total", zap.Any("error", err))
		total = offset + len(ms)
	}

	items := make([]models.FeedItem, 0, len(ms))
	for _, m := range ms {
		item := models.FeedItem{Moment: m}
		if m.CompositeScore != nil {
			item.Score = *m.CompositeScore
		}
		items = append(items, item)
	}

	return &models.RecommendedFeedResponse{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		Source:   models.FeedSourceQuality,
	}, nil
}

func (s *ServiceImpl) hydrateScores(ctx context.Context, scores []models.RecommendationScore) ([]models.FeedItem, error) {
	ids := make([]uuid.UUID, 0, len(scores))
	for _, sc := range scores {
		ids = append(ids, sc.MomentID)
	}
	ms, err := s.moments.GetMomentsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]models.Moment, len(ms))
	for _, m := range ms {
		byID[m.ID] = m
	}

	items := make([]models.FeedItem, 0, len(scores))
	for _, sc := range scores {
		m, ok := byID[sc.MomentID]
		if !ok {
			continue
		}
		items = append(items, models.FeedItem{
			Moment:  m,
			Score:   sc.Score,
			Factors: sc.Factors,
		})
	}
	return items, nil
}

func (s *ServiceImpl) hydrateScored(ctx context.Context, scored []recommendations.ScoredCandidate) ([]models.FeedItem, error) {
	scores := make([]models.RecommendationScore, 0, len(scored))
	for _, sc := range scored {
		scores = append(scores, models.RecommendationScore{
			MomentID: sc.MomentID,
			Score:    sc.Score,
			Factors:  sc.Factors,
		})
	}
	return s.hydrateScores(ctx, scores)
}

func (s *ServiceImpl) filterByCountry(items []models.FeedItem, country string) []models.FeedItem {
	if country == "" {
		return items
	}
	want := s.fold.String(strings.TrimSpace(country))
	out := make([]models.FeedItem, 0, len(items))
	for _, it := range items {
		if it.Moment.PlaceCountry == nil {
			continue
		}
		if s.fold.String(*it.Moment.PlaceCountry) == want {
			out = append(out, it)
		}
	}
	return out
}

// filterByQuery keeps items whose title, body or place name match any of the
// query terms, preserving rank order among the survivors.
func (s *ServiceImpl) filterByQuery(items []models.FeedItem, query string) []models.FeedItem {
	terms := strings.Fields(strings.TrimSpace(query))
	if len(terms) == 0 {
		return items
	}

	builder := aho_corasick.NewAhoCorasickBuilder(aho_corasick.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  false,
		MatchKind:            aho_corasick.LeftMostLongestMatch,
		DFA:                  true,
	})
	matcher := builder.Build(terms)

	out := make([]models.FeedItem, 0, len(items))
	for _, it := range items {
		haystack := it.Moment.Title + " " + it.Moment.Body
		if it.Moment.PlaceName != nil {
			haystack += " " + *it.Moment.PlaceName
		}
		if len(matcher.FindAll(haystack)) > 0 {
			out = append(out, it)
		}
	}
	return out
}

func paginate(items []models.FeedItem, offset, limit int) []models.FeedItem {
	if offset >= len(items) {
		return []models.FeedItem{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func paginateScored(scored []recommendations.ScoredCandidate, offset, limit int) []recommendations.ScoredCandidate {
	if offset >= len(scored) {
		return nil
	}
	end := offset + limit
	if end > len(scored) {
		end = len(scored)
	}
	return scored[offset:end]
}
