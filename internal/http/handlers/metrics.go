package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/noc-backend/internal/domain/jobs"
	"github.com/yungbote/noc-backend/internal/domain/noc"
	"github.com/yungbote/noc-backend/internal/http/response"
	"github.com/yungbote/noc-backend/internal/jobs/scheduler"
	"github.com/yungbote/noc-backend/internal/pkg/apierr"
	"github.com/yungbote/noc-backend/internal/services"
)

type MetricsHandler struct {
	query   services.TimeSeriesQueryService
	metrics services.MetricsService
	jobs    services.JobService
}

func NewMetricsHandler(query services.TimeSeriesQueryService, metrics services.MetricsService, jobSvc services.JobService) *MetricsHandler {
	return &MetricsHandler{query: query, metrics: metrics, jobs: jobSvc}
}

// GET /api/v1/noc/metrics/query?metric=alerts_open&start=&end=&resolution=auto
func (h *MetricsHandler) Query(c *gin.Context) {
	q := services.SeriesQuery{
		Metric:     strings.TrimSpace(c.Query("metric")),
		Resolution: strings.TrimSpace(c.Query("resolution")),
	}
	if q.Metric == "" {
		response.RespondAPIError(c, apierr.Invalid("missing_metric", "metric is required"))
		return
	}
	start, err := timeQuery(c, "start")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	end, err := timeQuery(c, "end")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if start != nil {
		q.Start = *start
	}
	if end != nil {
		q.End = *end
	}
	series, err := h.query.Query(dbcOf(c), caller(c).TenantID, q)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, series)
}

// GET /api/v1/noc/metrics/summary?window=1h
func (h *MetricsHandler) Summary(c *gin.Context) {
	var window time.Duration
	if raw := strings.TrimSpace(c.Query("window")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			response.RespondAPIError(c, apierr.Invalid("invalid_window", "window must be a positive duration"))
			return
		}
		window = d
	}
	summary, err := h.query.Summary(dbcOf(c), caller(c).TenantID, window)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, summary)
}

// GET /api/v1/noc/metrics/storage
func (h *MetricsHandler) Storage(c *gin.Context) {
	tiers, err := h.metrics.StorageStats(dbcOf(c), caller(c).TenantID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"tiers": tiers})
}

// POST /api/v1/noc/metrics/rollup
// body: { "resolution": "5m" | "1h" | "1d" }
func (h *MetricsHandler) Rollup(c *gin.Context) {
	var req struct {
		Resolution string `json:"resolution" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, ok := noc.ParseResolution(strings.TrimSpace(req.Resolution))
	if !ok || res == noc.ResolutionRaw {
		response.RespondAPIError(c, apierr.Invalid("invalid_resolution", "resolution must be 5m, 1h or 1d"))
		return
	}
	entityID := scheduler.SystemEntityID("rollup_" + string(res))
	rd := caller(c)
	owner := rd.UserID
	job, created, err := h.jobs.EnqueueIfIdle(dbcOf(c), services.EnqueueRequest{
		OwnerUserID: &owner,
		JobType:     jobs.TypeMetricRollup,
		EntityType:  jobs.EntitySystem,
		EntityID:    &entityID,
		Payload:     map[string]any{"resolution": string(res)},
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if !created {
		response.RespondOK(c, gin.H{"queued": false, "reason": "rollup already pending"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": true, "job": job})
}
