package recommendations

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wayfarerhq/wayfarer/internal/app/domain/events"
	"github.com/wayfarerhq/wayfarer/internal/app/domain/interests"
	"github.com/wayfarerhq/wayfarer/internal/app/domain/moments"
	"github.com/wayfarerhq/wayfarer/internal/app/domain/social"
	"github.com/wayfarerhq/wayfarer/internal/app/models"
	"github.com/wayfarerhq/wayfarer/internal/app/observability/metrics"
)

var _ Service = (*ServiceImpl)(nil)

// Service is the refresh orchestrator: it computes a user's full ranking and
// swaps the cached generation.
type Service interface {
	// Refresh recomputes and persists the user's ranking. An empty candidate
	// set is a no-op that leaves any prior cache generation in place.
	Refresh(ctx context.Context, userID uuid.UUID) error
	// RefreshAsync schedules a background refresh. It never blocks the
	// caller; failures are logged, not surfaced.
	RefreshAsync(userID uuid.UUID)
	// ComputeRanking runs the estimator and scorer end to end without
	// touching the cache. The feed adapter uses it as its inline fallback.
	ComputeRanking(ctx context.Context, userID uuid.UUID) ([]ScoredCandidate, error)
	// Close stops the background worker after draining pending refreshes.
	Close()
}

type ServiceImpl struct {
	logger    *zap.Logger
	repo      Repository
	events    events.Repository
	interests interests.Repository
	social    social.Repository
	moments   moments.Repository

	now  func() time.Time
	jobs chan uuid.UUID
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

const refreshQueueSize = 64

// background refreshes get their own deadline; a slow refresh is simply
// superseded by the next one.
const refreshTimeout = 30 * time.Second

func NewService(repo Repository, eventsRepo events.Repository, interestsRepo interests.Repository, socialRepo social.Repository, momentsRepo moments.Repository, logger *zap.Logger) *ServiceImpl {
	metrics.InitAppMetrics()
	s := &ServiceImpl{
		logger:    logger,
		repo:      repo,
		events:    eventsRepo,
		interests: interestsRepo,
		social:    socialRepo,
		moments:   momentsRepo,
		now:       time.Now,
		jobs:      make(chan uuid.UUID, refreshQueueSize),
		done:      make(chan struct{}),
	}
	go s.refreshWorker()
	return s
}

// rankingInput is everything one refresh pass reads. Fetched up front so the
// scoring itself is a pure computation.
type rankingInput struct {
	engagements []models.MomentEngagement
	declared    []models.UserInterest
	following   map[uuid.UUID]bool
	candidates  []models.Moment
	eventCount  int
	saveRate    float64
}

func (s *ServiceImpl) fetchInput(ctx context.Context, userID uuid.UUID, since time.Time) (*rankingInput, error) {
	in := &rankingInput{}
	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		in.engagements, err = s.events.GetMomentEngagements(groupCtx, userID, since)
		return err
	})
	g.Go(func() error {
		var err error
		in.eventCount, err = s.events.CountMomentEvents(groupCtx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		in.saveRate, err = s.events.GetGlobalSaveRate(groupCtx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		in.declared, err = s.interests.GetUserInterests(groupCtx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		in.following, err = s.social.GetFollowingSet(groupCtx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		in.candidates, err = s.moments.ListCandidates(groupCtx, userID)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return in, nil
}

func (s *ServiceImpl) ComputeRanking(ctx context.Context, userID uuid.UUID) ([]ScoredCandidate, error) {
	ctx, span := otel.Tracer("RecommendationsService").Start(ctx, "ComputeRanking", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "ComputeRanking"), zap.String("userID", userID.String()))

	now := s.now()
	in, err := s.fetchInput(ctx, userID, now.Add(-EventWindow))
	if err != nil {
		l.Error("Failed to fetch ranking input", zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Input fetch failed")
		return nil, fmt.Errorf("error fetching ranking input: %w", err)
	}

	affinities := EstimateAffinities(in.engagements, now)
	affinities = BlendDeclaredInterests(affinities, in.declared, in.eventCount)

	scored := ScoreCandidates(in.candidates, affinities, in.following, in.saveRate, now)

	span.SetAttributes(
		attribute.Int("candidates.count", len(in.candidates)),
		attribute.Int("scored.count", len(scored)),
	)
	span.SetStatus(codes.Ok, "Ranking computed")
	return scored, nil
}

func (s *ServiceImpl) Refresh(ctx context.Context, userID uuid.UUID) error {
	ctx, span := otel.Tracer("RecommendationsService").Start(ctx, "Refresh", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "Refresh"), zap.String("userID", userID.String()))

	scored, err := s.ComputeRanking(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Ranking computation failed")
		return fmt.Errorf("error refreshing recommendations: %w", err)
	}

	// Leave the prior generation in place rather than publishing an empty
	// ranking.
	if len(scored) == 0 {
		l.Debug("No candidates to rank, keeping prior cache generation")
		span.SetStatus(codes.Ok, "Nothing to rank")
		return nil
	}

	if err := s.repo.ReplaceUserScores(ctx, userID, scored); err != nil {
		l.Error("Failed to persist score generation", zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Score swap failed")
		return fmt.Errorf("error persisting recommendations: %w", err)
	}

	l.Info("Recommendations refreshed", zap.Int("count", len(scored)))
	span.SetStatus(codes.Ok, "Recommendations refreshed")
	return nil
}

func (s *ServiceImpl) RefreshAsync(userID uuid.UUID) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.logger.Debug("Refresh worker stopped, dropping background refresh",
			zap.String("userID", userID.String()))
		return
	}

	select {
	case s.jobs <- userID:
	default:
		// Queue full: drop rather than block the foreground path. The next
		// feed read schedules another refresh anyway.
		metrics.Get().RefreshJobsDropped.Add(context.Background(), 1)
		s.logger.Debug("Refresh queue full, dropping background refresh",
			zap.String("userID", userID.String()))
	}
}

func (s *ServiceImpl) refreshWorker() {
	for userID := range s.jobs {
		s.runRefreshJob(userID)
	}
	close(s.done)
}

func (s *ServiceImpl) runRefreshJob(userID uuid.UUID) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("Background refresh panicked",
				zap.String("userID", userID.String()),
				zap.Any("panic", rec))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	start := s.now()
	err := s.Refresh(ctx, userID)
	m := metrics.Get()
	m.RefreshDurationSeconds.Record(context.Background(), s.now().Sub(start).Seconds())
	m.RefreshJobsTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.Bool("success", err == nil),
	))
	if err != nil {
		s.logger.Warn("Background refresh failed",
			zap.String("userID", userID.String()),
			zap.Any("error", err))
	}
}

func (s *ServiceImpl) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.jobs)
	<-s.done
}
