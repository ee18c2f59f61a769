package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/ZanzyTHEbar/archery-analyzer/docs"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/auth"
	apperrors "github.com/ZanzyTHEbar/archery-analyzer/internal/errors"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/monitoring"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/security"
)

// JSON analysis endpoints eligible for the response cache
const (
	pathAnalyzePose   = "/analyze/pose"
	pathAnalyzeTarget = "/analyze/target"
)

// Router wires the middleware chain and every route
func (a *App) Router() *gin.Engine {
	r := gin.New()

	r.Use(apperrors.RecoveryHandler())
	r.Use(a.security.RequestID)
	r.Use(a.compression.Handler())
	r.Use(monitoring.MonitoringMiddleware(a.metrics, a.logger))
	r.Use(monitoring.TracingMiddleware(a.tracer))
	r.Use(monitoring.SecurityMonitoringMiddleware(a.logger, a.cfg.Security.MaxBodyBytes))
	r.Use(apperrors.ErrorHandler())
	r.Use(security.SecurityHeadersMiddleware(a.cfg.Security.EnableHSTS))
	r.Use(a.security.CORS())
	r.Use(a.security.RequestTimeout)
	r.Use(a.security.ValidateContentType)
	r.Use(a.security.BodyLimit)
	r.Use(a.limiter.IPRateLimitMiddleware())

	r.GET("/health", a.handleHealth)
	r.GET("/metrics", a.handleMetrics)
	r.GET("/targets", a.handleTargets)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	analyze := r.Group("/analyze",
		a.limiter.EndpointRateLimitMiddleware("analyze", a.cfg.RateLimit.AnalyzePerMinute),
		a.respCache.Middleware(a.metrics, a.logger, pathAnalyzePose, pathAnalyzeTarget),
		auth.OptionalArcher(a.issuer),
	)
	analyze.POST("/pose", a.handleAnalyzePose)
	analyze.POST("/target", a.handleAnalyzeTarget)
	analyze.POST("/target/image", a.handleAnalyzeTargetImage)
	analyze.POST("/realtime", a.handleAnalyzeRealtime)

	r.POST("/auth/token", auth.RequireIssuerKey(a.cfg.Auth.IssuerKey), a.handleIssueToken)

	archers := r.Group("/archers/me", auth.RequireArcher(a.issuer))
	archers.GET("/sessions", a.handleSessions)
	archers.GET("/statistics", a.handleStatistics)
	archers.DELETE("", a.handleForget)

	return r
}
