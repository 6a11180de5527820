package server

import (
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StartPprofServer exposes the pprof endpoints on their own listener. Keep
// this port off the public ingress.
func StartPprofServer(addr string, logger *zap.Logger) {
	r := gin.New()
	pprof.Register(r)

	go func() {
		logger.Info("pprof listening", zap.String("addr", addr))
		if err := r.Run(addr); err != nil {
			logger.Fatal("pprof server failed", zap.Error(err))
		}
	}()
}
