package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/wayfarerhq/wayfarer/internal/app/domain/auth"
	"github.com/wayfarerhq/wayfarer/internal/app/domain/events"
	"github.com/wayfarerhq/wayfarer/internal/app/domain/feed"
	"github.com/wayfarerhq/wayfarer/internal/app/domain/interests"
	"github.com/wayfarerhq/wayfarer/internal/app/domain/moments"
	"github.com/wayfarerhq/wayfarer/internal/app/domain/recommendations"
	"github.com/wayfarerhq/wayfarer/internal/app/domain/social"
	"github.com/wayfarerhq/wayfarer/internal/app/middleware"
	"github.com/wayfarerhq/wayfarer/internal/pkg/config"
)

type AppHandlers struct {
	Auth      *auth.AuthHandler
	Moments   *moments.MomentHandler
	Events    *events.EventHandler
	Interests *interests.InterestHandler
	Social    *social.FollowHandler
	Feed      *feed.FeedHandler
}

// Setup wires repositories, services and handlers onto the router. The
// returned cleanup stops background workers and must be called on shutdown.
func Setup(r *gin.Engine, dbPool *pgxpool.Pool, cfg *config.Config, log *zap.Logger) func() {
	h, cleanup := setupDependencies(dbPool, cfg, log)
	setupRouter(r, h, cfg)
	return cleanup
}

func setupDependencies(dbPool *pgxpool.Pool, cfg *config.Config, log *zap.Logger) (*AppHandlers, func()) {
	// Repositories
	authRepo := auth.NewRepositoryImpl(dbPool, log)
	momentRepo := moments.NewRepository(dbPool, log)
	eventRepo := events.NewRepositoryImpl(dbPool, log)
	interestRepo := interests.NewRepositoryImpl(dbPool, log)
	followRepo := social.NewRepositoryImpl(dbPool, log)
	recsRepo := recommendations.NewRepository(dbPool, log)

	// Services
	authService := auth.NewService(authRepo, cfg, log)
	eventService := events.NewService(eventRepo, momentRepo, log)
	recsService := recommendations.NewService(recsRepo, eventRepo, interestRepo, followRepo, momentRepo, log)
	feedService := feed.NewService(recsRepo, recsService, momentRepo, log)

	h := &AppHandlers{
		Auth:      auth.NewAuthHandler(authService, log),
		Moments:   moments.NewMomentHandler(momentRepo, log),
		Events:    events.NewEventHandler(eventService, log),
		Interests: interests.NewInterestHandler(interestRepo, log),
		Social:    social.NewFollowHandler(followRepo, log),
		Feed:      feed.NewFeedHandler(feedService, log),
	}

	return h, recsService.Close
}

func setupRouter(r *gin.Engine, h *AppHandlers, cfg *config.Config) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")

	// Public routes
	api.POST("/auth/register", h.Auth.Register)
	api.POST("/auth/login", h.Auth.Login)

	// Authenticated routes
	authed := api.Group("")
	authed.Use(middleware.AuthMiddleware(cfg))
	{
		authed.GET("/auth/me", h.Auth.Me)

		authed.POST("/moments", h.Moments.CreateMoment)
		authed.GET("/moments/:id", h.Moments.GetMoment)
		authed.POST("/moments/:id/events", h.Events.RecordMomentEvent)

		authed.GET("/interests", h.Interests.GetInterests)
		authed.PUT("/interests", h.Interests.SetInterest)
		authed.DELETE("/interests/:category", h.Interests.RemoveInterest)

		authed.POST("/users/:id/follow", h.Social.Follow)
		authed.DELETE("/users/:id/follow", h.Social.Unfollow)

		authed.GET("/feed/recommended", h.Feed.GetRecommendedFeed)
	}
}
