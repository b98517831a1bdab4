package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/noc-backend/internal/data/repos"
	"github.com/yungbote/noc-backend/internal/http/response"
	"github.com/yungbote/noc-backend/internal/modules/noc/dedup"
	"github.com/yungbote/noc-backend/internal/services"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type AlertHandler struct {
	alerts services.AlertService
}

func NewAlertHandler(alerts services.AlertService) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

// POST /api/v1/noc/alerts
func (h *AlertHandler) Ingest(c *gin.Context) {
	var req services.AlertInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.alerts.Ingest(dbcOf(c), caller(c).TenantID, req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if res.Outcome == dedup.OutcomeCreated {
		response.RespondCreated(c, res)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/v1/noc/webhooks/alertmanager
func (h *AlertHandler) Alertmanager(c *gin.Context) {
	var hook services.AlertmanagerWebhook
	if err := c.ShouldBindJSON(&hook); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.alerts.IngestAlertmanager(dbcOf(c), caller(c).TenantID, hook)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/v1/noc/alerts?status=open,acknowledged&severity=critical&entity_type=&entity_id=&priority=P1&since=&limit=&offset=
func (h *AlertHandler) List(c *gin.Context) {
	f, err := alertFilterFromQuery(c)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	alerts, total, err := h.alerts.List(dbcOf(c), caller(c).TenantID, f)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"alerts": alerts, "total": total, "limit": f.Limit, "offset": f.Offset})
}

func alertFilterFromQuery(c *gin.Context) (repos.AlertFilter, error) {
	f := repos.AlertFilter{
		Statuses:   listQuery(c, "status"),
		Severities: listQuery(c, "severity"),
		EntityType: c.Query("entity_type"),
		EntityID:   c.Query("entity_id"),
		Priority:   c.Query("priority"),
	}
	var err error
	if f.Since, err = timeQuery(c, "since"); err != nil {
		return f, err
	}
	if f.Limit, f.Offset, err = pageQuery(c); err != nil {
		return f, err
	}
	return f, nil
}

func pageQuery(c *gin.Context) (int, int, error) {
	limit, err := intQuery(c, "limit", defaultListLimit)
	if err != nil {
		return 0, 0, err
	}
	if limit == 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

// GET /api/v1/noc/alerts/:id
func (h *AlertHandler) Get(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	alert, err := h.alerts.Get(dbcOf(c), caller(c).TenantID, id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"alert": alert})
}

// POST /api/v1/noc/alerts/:id/acknowledge
func (h *AlertHandler) Acknowledge(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	rd := caller(c)
	alert, err := h.alerts.Acknowledge(dbcOf(c), rd.TenantID, id, rd.UserID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"alert": alert})
}

// POST /api/v1/noc/alerts/:id/resolve
func (h *AlertHandler) Resolve(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	rd := caller(c)
	userID := rd.UserID
	alert, err := h.alerts.Resolve(dbcOf(c), rd.TenantID, id, &userID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"alert": alert})
}

// POST /api/v1/noc/alerts/:id/suppress
func (h *AlertHandler) Suppress(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	alert, err := h.alerts.Suppress(dbcOf(c), caller(c).TenantID, id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"alert": alert})
}
