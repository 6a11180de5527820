package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
// Make fields public so they can be accessed from other packages.
type AppMetrics struct {
	HTTPRequestsTotal      metric.Int64Counter
	HTTPRequestDuration    metric.Float64Histogram
	FeedRequestsTotal      metric.Int64Counter
	FeedCacheHitsTotal     metric.Int64Counter
	FeedCacheMissesTotal   metric.Int64Counter
	RefreshJobsTotal       metric.Int64Counter
	RefreshJobsDropped     metric.Int64Counter
	RefreshDurationSeconds metric.Float64Histogram
	EventsIngestedTotal    metric.Int64Counter
	DBQueryDurationSeconds metric.Float64Histogram
	DBQueryErrorsTotal     metric.Int64Counter
}

var (
	// Global instance of AppMetrics (initialized once)
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("wayfarer")
		var err error
		m := &AppMetrics{}

		m.HTTPRequestsTotal, err = meter.Int64Counter(
			"http_requests_total",
			metric.WithDescription("Total number of HTTP requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_requests_total: %v", err)
		}

		m.HTTPRequestDuration, err = meter.Float64Histogram(
			"http_request_duration_seconds",
			metric.WithDescription("Duration of HTTP requests in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_request_duration_seconds: %v", err)
		}

		m.FeedRequestsTotal, err = meter.Int64Counter(
			"feed_requests_total",
			metric.WithDescription("Total number of recommended feed requests, labeled by serving source"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create feed_requests_total: %v", err)
		}

		m.FeedCacheHitsTotal, err = meter.Int64Counter(
			"feed_cache_hits_total",
			metric.WithDescription("Feed requests served from the precomputed ranking"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create feed_cache_hits_total: %v", err)
		}

		m.FeedCacheMissesTotal, err = meter.Int64Counter(
			"feed_cache_misses_total",
			metric.WithDescription("Feed requests that fell through to inline or quality ordering"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create feed_cache_misses_total: %v", err)
		}

		m.RefreshJobsTotal, err = meter.Int64Counter(
			"refresh_jobs_total",
			metric.WithDescription("Total number of ranking refresh jobs processed"),
			metric.WithUnit("{job}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create refresh_jobs_total: %v", err)
		}

		m.RefreshJobsDropped, err = meter.Int64Counter(
			"refresh_jobs_dropped_total",
			metric.WithDescription("Refresh jobs dropped because the queue was full"),
			metric.WithUnit("{job}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create refresh_jobs_dropped_total: %v", err)
		}

		m.RefreshDurationSeconds, err = meter.Float64Histogram(
			"refresh_duration_seconds",
			metric.WithDescription("Duration of ranking refresh jobs in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create refresh_duration_seconds: %v", err)
		}

		m.EventsIngestedTotal, err = meter.Int64Counter(
			"events_ingested_total",
			metric.WithDescription("Total number of engagement events recorded"),
			metric.WithUnit("{event}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create events_ingested_total: %v", err)
		}

		m.DBQueryDurationSeconds, err = meter.Float64Histogram(
			"db_query_duration_seconds",
			metric.WithDescription("Duration of database queries in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_duration_seconds: %v", err)
		}

		m.DBQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance.
// Panics if InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}
