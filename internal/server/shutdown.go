package server

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// In-flight requests get this long to finish once a signal arrives.
const shutdownGrace = 10 * time.Second

// GracefulShutdown blocks until SIGINT/SIGTERM, drains the HTTP server and
// then signals done.
func GracefulShutdown(srv *http.Server, logger *zap.Logger, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info("Shutdown signal received, draining requests",
		zap.Duration("grace", shutdownGrace))

	// A second signal now kills the process immediately.
	stop()

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(drainCtx); err != nil {
		logger.Error("Forced shutdown, drain deadline exceeded", zap.Error(err))
	}

	done <- true
}
