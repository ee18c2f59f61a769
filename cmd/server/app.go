package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ZanzyTHEbar/archery-analyzer/internal/adapters"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/analysis"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/auth"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/cache"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/config"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/database"
	apperrors "github.com/ZanzyTHEbar/archery-analyzer/internal/errors"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/history"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/middleware"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/monitoring"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/ratelimit"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/resilience"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/security"
)

// poseEstimator turns a camera frame into landmarks
type poseEstimator interface {
	Estimate(ctx context.Context, frame adapters.Frame) (analysis.LandmarkSet, error)
	GetPoolStats() map[string]interface{}
	Close() error
}

// objectDetector turns a camera frame into target and arrow boxes
type objectDetector interface {
	Detect(ctx context.Context, frame adapters.Frame) ([]analysis.Detection, error)
	InputSize() int
	GetPoolStats() map[string]interface{}
	Close() error
}

// App owns every long-lived component of the server
type App struct {
	cfg    *config.Config
	logger *monitoring.Logger

	metrics     *monitoring.Metrics
	tracer      *monitoring.Tracer
	analyzer    *analysis.Analyzer
	breakers    *resilience.CircuitBreakerRegistry
	degradation *resilience.DegradationManager

	pose     poseEstimator
	detector objectDetector

	db         *database.DB
	statsCache *history.StatisticsCache
	history    *history.Service

	issuer      *auth.Issuer
	redis       *ratelimit.RedisClient
	limiter     *ratelimit.RateLimiter
	respCache   *cache.Cache
	compression *middleware.CompressionMiddleware
	security    *security.SecurityMiddleware
}

// NewApp builds the scoring core, perception clients, storage and request middlewares from cfg
func NewApp(ctx context.Context, cfg *config.Config, logger *monitoring.Logger) (*App, error) {
	a := &App{
		cfg:         cfg,
		logger:      logger,
		metrics:     monitoring.NewMetrics(),
		tracer:      monitoring.NewTracer("archery-analyzer", logger),
		degradation: resilience.NewDegradationManager(resilience.DefaultDegradationConfig()),
	}

	registry, err := analysis.NewTargetStore(cfg.TargetFile).Registry()
	if err != nil {
		return nil, apperrors.NewConfigurationError("invalid target configuration", err)
	}
	a.analyzer, err = analysis.NewAnalyzer(cfg.Scoring, registry)
	if err != nil {
		return nil, apperrors.NewConfigurationError("invalid scoring configuration", err)
	}

	a.breakers = resilience.NewCircuitBreakerRegistry(resilience.CircuitBreakerConfig{
		OnStateChange: a.onBreakerChange,
	})
	if err := a.initPerception(); err != nil {
		a.Close()
		return nil, err
	}

	a.db, err = database.NewDB(cfg.Server.DataDir)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.degradation.RegisterService(resilience.ServiceDatabase, false, a.db.Ping)
	a.statsCache = history.NewStatisticsCache(cfg.CacheTTL)
	a.history = history.NewService(database.NewRepository(a.db), a.statsCache)

	a.issuer, err = auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		a.Close()
		return nil, apperrors.NewConfigurationError("invalid token configuration", err)
	}

	a.redis, err = ratelimit.NewRedisClient(ctx, ratelimit.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		slog.Warn("Redis unavailable, rate limiting falls back to memory", "addr", cfg.Redis.Addr, "error", err)
	}
	if a.redis.IsEnabled() {
		a.degradation.RegisterService(resilience.ServiceRedis, true, a.redis.HealthCheck)
	}
	a.limiter = ratelimit.NewRateLimiter(a.redis, ratelimit.Config{
		IPLimitPerMin:      cfg.RateLimit.PerMinute,
		AnalyzeLimitPerMin: cfg.RateLimit.AnalyzePerMinute,
		BurstMultiplier:    1,
		CleanupInterval:    time.Hour,
	}, a.metrics)

	a.respCache = cache.NewCache(cfg.CacheTTL)
	a.compression = middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig())
	a.security = security.NewSecurityMiddleware(security.SecurityConfig{
		MaxBodyBytes:   cfg.Security.MaxBodyBytes,
		MaxUploadBytes: cfg.Security.MaxUploadBytes,
		RequestTimeout: cfg.Security.RequestTimeout,
		AllowedOrigins: cfg.Security.AllowedOrigins,
		EnableHSTS:     cfg.Security.EnableHSTS,
	})

	logger.SystemLogger("app_initialized", fmt.Sprintf("targets=%v pose_estimator=%t object_detector=%t redis=%t",
		a.analyzer.TargetTypes(), a.pose != nil, a.detector != nil, a.redis.IsEnabled()))
	return a, nil
}

// initPerception creates the clients for the configured perception services.
// Unconfigured services stay nil and their endpoints answer 503.
func (a *App) initPerception() error {
	p := a.cfg.Perception
	deps := adapters.Deps{
		Breakers:    a.breakers,
		Retries:     resilience.NewRetryManager(),
		Degradation: a.degradation,
		Metrics:     a.metrics,
		Logger:      a.logger,
		Tracer:      a.tracer,
	}

	if p.PoseEstimatorURL != "" {
		client, err := adapters.NewPoseEstimatorClient(adapters.ClientConfig{
			BaseURL: p.PoseEstimatorURL,
			APIKey:  p.APIKey,
			Timeout: p.Timeout,
		}, deps)
		if err != nil {
			return apperrors.NewConfigurationError("invalid pose estimator configuration", err)
		}
		a.pose = client
		a.degradation.RegisterService(resilience.ServicePoseEstimator, true, client.Ping)
	}

	if p.ObjectDetectorURL != "" {
		client, err := adapters.NewDetectorClient(adapters.ClientConfig{
			BaseURL: p.ObjectDetectorURL,
			APIKey:  p.APIKey,
			Timeout: p.Timeout,
		}, p.DetectorInputSize, deps)
		if err != nil {
			return apperrors.NewConfigurationError("invalid object detector configuration", err)
		}
		a.detector = client
		a.degradation.RegisterService(resilience.ServiceObjectDetector, true, client.Ping)
	}
	return nil
}

func (a *App) onBreakerChange(name string, from, to resilience.CircuitBreakerState) {
	switch to {
	case resilience.StateOpen:
		a.metrics.IncrementCircuitBreakerOpen()
	case resilience.StateClosed:
		a.metrics.IncrementCircuitBreakerClose()
		a.degradation.ResetService(name)
	}
	a.logger.SystemLogger("circuit_breaker", fmt.Sprintf("%s: %s -> %s", name, from, to))
}

// serviceReady reports whether a perception-backed analysis can currently run
func (a *App) serviceReady(configured bool, service string) bool {
	return configured && a.degradation.IsServiceAvailable(service)
}

// Close releases every component; it is safe on a partially built App
func (a *App) Close() {
	if a.limiter != nil {
		apperrors.SafeClose(a.limiter, "rate limiter")
	}
	if a.redis != nil {
		apperrors.SafeClose(a.redis, "redis client")
	}
	if a.respCache != nil {
		apperrors.SafeClose(a.respCache, "response cache")
	}
	if a.statsCache != nil {
		apperrors.SafeClose(a.statsCache, "statistics cache")
	}
	if a.pose != nil {
		apperrors.SafeClose(a.pose, "pose estimator client")
	}
	if a.detector != nil {
		apperrors.SafeClose(a.detector, "object detector client")
	}
	if a.db != nil {
		apperrors.SafeClose(a.db, "database")
	}
	a.degradation.GracefulShutdown()
	if a.logger != nil {
		_ = a.logger.Close()
	}
}
