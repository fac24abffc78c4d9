package main

import (
	"time"

	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/cache"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/config"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/logger"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/persistence"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/telemetry"
	"github.com/china-facil/chinafacil-backend-sub000/internal/interfaces/http/handler"
	"github.com/china-facil/chinafacil-backend-sub000/internal/interfaces/http/middleware"
	"github.com/china-facil/chinafacil-backend-sub000/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type engineDeps struct {
	app       *application
	db        *persistence.Database
	stores    *cache.Stores
	telemetry *telemetry.Providers
	version   string
}

func newEngine(cfg *config.Config, deps engineDeps, log *zap.Logger) *gin.Engine {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Warn("Invalid trusted proxies, trusting none", zap.Error(err))
		_ = engine.SetTrustedProxies(nil)
	}

	// Middleware order:
	// 1. Logger - assign request id, log requests
	// 2. Recovery - catch panics
	// 3. Tracing - server span, then request id and error status on it
	// 4. Metrics - request count and latency
	// 5. CORS and security headers
	// 6. BodyLimit and request deadline
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Tracing(cfg.Telemetry.ServiceName, deps.telemetry.Enabled())...)
	engine.Use(middleware.HTTPMetrics(deps.telemetry.Meter("http.server"), log))
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	engine.Use(middleware.CORSWithConfig(cors))
	engine.Use(middleware.Secure())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodyBytes))
	engine.Use(middleware.Timeout(cfg.HTTP.RequestTimeout))

	// Health and scrape endpoints (outside API versioning and rate limits)
	systemHandler := handler.NewSystemHandler(cfg.App.Name, deps.version, healthChecks(deps)...)
	systemHandler.RegisterSystemRoutes(engine)
	if cfg.Telemetry.PrometheusEnabled {
		sqlDB, err := deps.db.DB.DB()
		if err != nil {
			log.Warn("Database pool stats unavailable for /metrics", zap.Error(err))
		}
		reg := telemetry.NewRegistry(telemetry.ScrapeConfig{
			Queue:   deps.app.jobs,
			Catalog: deps.app.products,
			DB:      sqlDB,
			DBName:  cfg.Database.DBName,
			Runtime: true,
		}, log)
		engine.GET("/metrics", gin.WrapH(telemetry.MetricsHandler(reg)))
	}

	var apiMiddleware []gin.HandlerFunc
	if cfg.HTTP.RateLimitRPS > 0 {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst)
		go sweepLimiter(limiter, log)
		apiMiddleware = append(apiMiddleware, middleware.RateLimit(limiter))
		log.Info("Rate limiting enabled",
			zap.Float64("rps", cfg.HTTP.RateLimitRPS),
			zap.Int("burst", cfg.HTTP.RateLimitBurst),
		)
	}

	router.NewRouter(engine, router.WithAPIVersion("v1"), router.WithMiddleware(apiMiddleware...)).
		Register(
			handler.NewCatalogHandler(deps.app.catalog),
			handler.NewSearchHandler(deps.app.aggregator),
			handler.NewJobHandler(deps.app.jobAdmin),
			systemHandler,
		).
		Setup()

	return engine
}

func healthChecks(deps engineDeps) []handler.HealthCheck {
	checks := []handler.HealthCheck{
		{Name: "database", Check: deps.db.PingContext},
	}
	if deps.stores.Backend() == "redis" {
		checks = append(checks, handler.HealthCheck{Name: "redis", Check: deps.stores.Ping})
	}
	return checks
}

// sweepLimiter drops idle client buckets for the life of the process
func sweepLimiter(limiter *middleware.RateLimiter, log *zap.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		if n := limiter.Sweep(); n > 0 {
			log.Debug("Rate limiter buckets swept", zap.Int("removed", n))
		}
	}
}
