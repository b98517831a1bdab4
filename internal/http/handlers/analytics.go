package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/http/response"
	"github.com/yungbote/noc-backend/internal/pkg/apierr"
	"github.com/yungbote/noc-backend/internal/services"
)

const maxEventsPerBatch = 500

type AnalyticsHandler struct {
	recs    services.RecommendationService
	heatmap services.HeatmapService
}

func NewAnalyticsHandler(recs services.RecommendationService, heatmap services.HeatmapService) *AnalyticsHandler {
	return &AnalyticsHandler{recs: recs, heatmap: heatmap}
}

// POST /api/v1/analytics/events
// body: { "events": [ { "kind": "page_view", "path": "/noc", ... } ] }
func (h *AnalyticsHandler) TrackEvents(c *gin.Context) {
	var req struct {
		Events []types.BehaviorEvent `json:"events" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if len(req.Events) > maxEventsPerBatch {
		response.RespondAPIError(c, apierr.Invalid("batch_too_large", "at most %d events per request", maxEventsPerBatch))
		return
	}
	rd := caller(c)
	dbc := dbcOf(c)
	for _, ev := range req.Events {
		if err := h.recs.TrackEvent(dbc, rd.TenantID, rd.UserID, ev); err != nil {
			response.RespondAPIError(c, err)
			return
		}
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": len(req.Events)})
}

// GET /api/v1/analytics/recommendations/content?n=10
func (h *AnalyticsHandler) ContentRecommendations(c *gin.Context) {
	n, err := intQuery(c, "n", 0)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	rd := caller(c)
	recs, err := h.recs.GetContent(dbcOf(c), rd.TenantID, rd.UserID, n)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"recommendations": recs})
}

// GET /api/v1/analytics/recommendations/navigation?from=/noc/alerts&n=5
func (h *AnalyticsHandler) NavigationRecommendations(c *gin.Context) {
	n, err := intQuery(c, "n", 0)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	rd := caller(c)
	recs, err := h.recs.GetNavigation(dbcOf(c), rd.TenantID, rd.UserID, c.Query("from"), n)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"recommendations": recs})
}

// POST /api/v1/analytics/heatmap/clicks
// body: { "clicks": [ { "path": "/noc", "x_ratio": 0.4, "y_ratio": 0.2, "viewport_width": 1280 } ] }
func (h *AnalyticsHandler) RecordClicks(c *gin.Context) {
	var req struct {
		Clicks []services.ClickInput `json:"clicks" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	rd := caller(c)
	userID := rd.UserID
	n, err := h.heatmap.RecordClicks(dbcOf(c), rd.TenantID, &userID, req.Clicks)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"recorded": n})
}

// GET /api/v1/analytics/heatmap?path=/noc&device=desktop&since=&until=&width=50&height=50
func (h *AnalyticsHandler) Heatmap(c *gin.Context) {
	req := services.HeatmapRequest{
		Path:   strings.TrimSpace(c.Query("path")),
		Device: strings.TrimSpace(c.Query("device")),
	}
	var err error
	if req.Since, err = timeQuery(c, "since"); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if req.Until, err = timeQuery(c, "until"); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if req.Width, err = intQuery(c, "width", 0); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if req.Height, err = intQuery(c, "height", 0); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	res, err := h.heatmap.Aggregate(dbcOf(c), caller(c).TenantID, req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, res)
}
