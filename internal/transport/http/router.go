package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/payment-ledger/internal/config"
	"github.com/richardliu001/payment-ledger/internal/metrics"
	"go.uber.org/zap"
)

func NewRouter(ledger Ledger, apis ApiAdmin, rl config.RateLimitConfig, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware(log))
	r.Use(MetricsMiddleware())
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	limited := r.Group("")
	if rl.RPS > 0 {
		limited.Use(RateLimitMiddleware(rl.RPS, rl.Burst))
	}
	RegisterHandlers(limited, ledger, apis, log)
	return r
}
