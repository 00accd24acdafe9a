// Package server assembles the HTTP surface over the judging pipeline.
package server

import (
	"fmt"
	"net/http"
	"time"

	"judgebox/internal/config"
	"judgebox/internal/judge/service"
	"judgebox/internal/server/ratelimit"
	"judgebox/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxRequestBody bounds the JSON envelope around the size-capped fields:
// batch-judge carries up to 10 submissions of source plus 50 cases each.
const maxRequestBody = 32 << 20

// New builds the HTTP server. stop is closed on shutdown to end the
// metrics watcher.
func New(cfg *config.Config, svc *service.Service, limiter *ratelimit.Limiter, stop <-chan struct{}) *http.Server {
	metrics := newMetrics()
	metrics.observeQueue(svc.QueueStatus())
	go metrics.watchQueue(svc.QueueStatus, stop)

	router := gin.New()
	router.Use(RecoveryMiddleware())
	router.Use(RequestIDMiddleware())
	router.Use(RequestLoggerMiddleware())
	router.Use(SecurityHeadersMiddleware())
	router.Use(CORSMiddleware(DefaultCORSConfig()))
	router.Use(metrics.countRequests())

	router.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "route not found")
	})

	handler := NewHandler(svc, cfg)
	limited := RateLimitMiddleware(limiter)
	bodyCap := BodySizeLimitMiddleware(maxRequestBody)

	api := router.Group("/api")
	api.GET("/health", handler.Health)
	api.GET("/languages", handler.Languages)
	api.POST("/execute", limited, bodyCap, handler.Execute)
	api.POST("/judge", limited, bodyCap, handler.Judge)
	api.POST("/batch-judge", limited, bodyCap, handler.BatchJudge)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
}
