package handler

import (
	"github.com/china-facil/chinafacil-backend-sub000/internal/application/jobadmin"
	"github.com/china-facil/chinafacil-backend-sub000/internal/interfaces/http/dto"
	"github.com/china-facil/chinafacil-backend-sub000/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// JobHandler exposes queue statistics and dead job recovery
type JobHandler struct {
	BaseHandler
	jobService *jobadmin.JobService
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobService *jobadmin.JobService) *JobHandler {
	return &JobHandler{jobService: jobService}
}

// GetStats godoc
// @ID           getJobStats
// @Summary      Get queue statistics
// @Description  Job counts by status and pending backlog by type
// @Tags         jobs
// @Produce      json
// @Success      200 {object} APIResponse[jobadmin.JobStatsDTO]
// @Failure      500 {object} ErrorResponse
// @Router       /jobs/stats [get]
func (h *JobHandler) GetStats(c *gin.Context) {
	stats, err := h.jobService.GetStats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// ListDead godoc
// @ID           listDeadJobs
// @Summary      List dead jobs
// @Description  Jobs that exhausted their attempts or failed permanently
// @Tags         jobs
// @Produce      json
// @Param        type query string false "Job type"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]jobadmin.JobDTO]
// @Failure      400 {object} ErrorResponse
// @Router       /jobs/dead [get]
func (h *JobHandler) ListDead(c *gin.Context) {
	var filter jobadmin.JobFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.ValidationError(c, err)
		return
	}

	result, err := h.jobService.GetDeadJobs(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Jobs, result.Total, result.Page, result.PageSize)
}

// GetJob returns one job by id
func (h *JobHandler) GetJob(c *gin.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}
	job, err := h.jobService.GetJob(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, job)
}

// Retry godoc
// @ID           retryDeadJob
// @Summary      Retry a dead job
// @Description  Reset a dead job to pending with fresh attempts
// @Tags         jobs
// @Produce      json
// @Param        id path string true "Job ID" format(uuid)
// @Success      200 {object} APIResponse[jobadmin.JobDTO]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /jobs/{id}/retry [post]
func (h *JobHandler) Retry(c *gin.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}
	job, err := h.jobService.RetryDeadJob(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, job)
}

// RetryAll resets every dead job, or those of ?type= only
func (h *JobHandler) RetryAll(c *gin.Context) {
	count, err := h.jobService.RetryAllDeadJobs(c.Request.Context(), c.Query("type"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, RetriedData{Retried: count})
}

func (h *JobHandler) jobID(c *gin.Context) (uuid.UUID, bool) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.ValidationError(c, err)
		return uuid.Nil, false
	}
	return uuid.MustParse(req.ID), true
}

// RegisterRoutes implements router.RouteRegistrar
func (h *JobHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := router.NewDomainGroup("/jobs")
	g.GET("/stats", h.GetStats).
		GET("/dead", h.ListDead).
		POST("/dead/retry-all", h.RetryAll).
		GET("/:id", h.GetJob).
		POST("/:id/retry", h.Retry)
	g.RegisterRoutes(rg)
}
