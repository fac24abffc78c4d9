package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const healthCheckTimeout = 3 * time.Second

// HealthCheck probes one dependency
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// SystemHandler serves the liveness probe and build information
type SystemHandler struct {
	BaseHandler
	name    string
	version string
	started time.Time
	checks  []HealthCheck
}

func NewSystemHandler(name, version string, checks ...HealthCheck) *SystemHandler {
	return &SystemHandler{name: name, version: version, started: time.Now(), checks: checks}
}

// SystemInfoResponse
// @name HandlerSystemInfoResponse
type SystemInfoResponse struct {
	Name      string `json:"name" example:"Popular Catalog API"`
	Version   string `json:"version" example:"1.0.0"`
	GoVersion string `json:"go_version" example:"go1.25.5"`
	Uptime    string `json:"uptime" example:"1h30m45s"`
}

// GetSystemInfo godoc
// @Summary  Service name, version and uptime
// @Tags     system
// @Produce  json
// @Success  200 {object} APIResponse[SystemInfoResponse]
// @Router   /system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
	})
}

// PingResponse
// @name HandlerPingResponse
type PingResponse struct {
	Message   string `json:"message" example:"pong"`
	Timestamp string `json:"timestamp" example:"2026-01-23T12:00:00Z"`
}

// Ping godoc
// @Summary  Round trip through the API middleware, including rate limits
// @Tags     system
// @Produce  json
// @Success  200 {object} APIResponse[PingResponse]
// @Router   /system/ping [get]
func (h *SystemHandler) Ping(c *gin.Context) {
	h.Success(c, PingResponse{Message: "pong", Timestamp: time.Now().UTC().Format(time.RFC3339)})
}

// HealthResponse reports overall and per-dependency status
type HealthResponse struct {
	Status     string            `json:"status" example:"healthy"`
	Components map[string]string `json:"components"`
}

// Health godoc
// @Summary  Probe every dependency concurrently; any failure answers 503
// @Tags     system
// @Produce  json
// @Success  200 {object} HealthResponse
// @Failure  503 {object} HealthResponse
// @Router   /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	failed := make([]error, len(h.checks))
	var g errgroup.Group
	for i, check := range h.checks {
		g.Go(func() error {
			failed[i] = check.Check(ctx)
			return nil
		})
	}
	_ = g.Wait()

	resp := HealthResponse{Status: "healthy", Components: make(map[string]string, len(h.checks))}
	status := http.StatusOK
	for i, check := range h.checks {
		if err := failed[i]; err != nil {
			logger.L(ctx).Warn("Health check failed", zap.String("component", check.Name), zap.Error(err))
			resp.Components[check.Name] = "unhealthy"
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Components[check.Name] = "healthy"
	}
	c.JSON(status, resp)
}

// RegisterSystemRoutes mounts /health on the engine, outside the API
// prefix and its rate limit
func (h *SystemHandler) RegisterSystemRoutes(engine *gin.Engine) {
	engine.GET("/health", h.Health)
}

// RegisterRoutes implements router.RouteRegistrar
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/system")
	g.GET("/info", h.GetSystemInfo)
	g.GET("/ping", h.Ping)
}
