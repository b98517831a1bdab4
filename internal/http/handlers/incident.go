package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/noc-backend/internal/data/repos"
	"github.com/yungbote/noc-backend/internal/http/response"
	"github.com/yungbote/noc-backend/internal/services"
)

const defaultStatsWindow = 7 * 24 * time.Hour

type IncidentHandler struct {
	incidents services.IncidentService
}

func NewIncidentHandler(incidents services.IncidentService) *IncidentHandler {
	return &IncidentHandler{incidents: incidents}
}

func actorOf(c *gin.Context) *uuid.UUID {
	id := caller(c).UserID
	if id == uuid.Nil {
		return nil
	}
	return &id
}

// POST /api/v1/noc/incidents
func (h *IncidentHandler) Create(c *gin.Context) {
	var req services.CreateIncidentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	inc, err := h.incidents.Create(dbcOf(c), caller(c).TenantID, actorOf(c), req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"incident": inc})
}

// GET /api/v1/noc/incidents?status=&severity=&assignee_id=&limit=&offset=
func (h *IncidentHandler) List(c *gin.Context) {
	f := repos.IncidentFilter{
		Statuses:   listQuery(c, "status"),
		Severities: listQuery(c, "severity"),
	}
	var err error
	if f.AssigneeID, err = optionalUUIDQuery(c, "assignee_id"); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if f.Limit, f.Offset, err = pageQuery(c); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	incidents, total, err := h.incidents.List(dbcOf(c), caller(c).TenantID, f)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"incidents": incidents, "total": total})
}

// GET /api/v1/noc/incidents/:id
func (h *IncidentHandler) Get(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	detail, err := h.incidents.Get(dbcOf(c), caller(c).TenantID, id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"incident": detail})
}

// POST /api/v1/noc/incidents/:id/transition
// body: { "status": "acknowledged", "note": "..." }
func (h *IncidentHandler) Transition(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
		Note   string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	inc, err := h.incidents.Transition(dbcOf(c), caller(c).TenantID, id, req.Status, actorOf(c), req.Note)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"incident": inc})
}

// POST /api/v1/noc/incidents/:id/assign
// body: { "assignee_id": "<uuid>" | null }
func (h *IncidentHandler) Assign(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	var req struct {
		AssigneeID *uuid.UUID `json:"assignee_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	inc, err := h.incidents.Assign(dbcOf(c), caller(c).TenantID, id, req.AssigneeID, actorOf(c))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"incident": inc})
}

// POST /api/v1/noc/incidents/:id/notes
func (h *IncidentHandler) AddNote(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	var req struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	entry, err := h.incidents.AddNote(dbcOf(c), caller(c).TenantID, id, actorOf(c), req.Message)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"entry": entry})
}

// GET /api/v1/noc/incidents/stats?since=
func (h *IncidentHandler) Stats(c *gin.Context) {
	since, err := timeQuery(c, "since")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if since == nil {
		t := time.Now().UTC().Add(-defaultStatsWindow)
		since = &t
	}
	stats, err := h.incidents.Stats(dbcOf(c), caller(c).TenantID, *since)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"stats": stats})
}
