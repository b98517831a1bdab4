package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/noc-backend/internal/http/response"
	"github.com/yungbote/noc-backend/internal/services"
)

type ExperimentHandler struct {
	experiments services.ExperimentService
}

func NewExperimentHandler(experiments services.ExperimentService) *ExperimentHandler {
	return &ExperimentHandler{experiments: experiments}
}

// subject is the user an assignment or event applies to: the body's
// user_id when given, else the caller.
func subject(c *gin.Context, override *uuid.UUID) uuid.UUID {
	if override != nil && *override != uuid.Nil {
		return *override
	}
	return caller(c).UserID
}

// POST /api/v1/experiments
func (h *ExperimentHandler) Create(c *gin.Context) {
	var req services.ExperimentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	exp, err := h.experiments.Create(dbcOf(c), caller(c).TenantID, req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"experiment": exp})
}

// GET /api/v1/experiments?status=running
func (h *ExperimentHandler) List(c *gin.Context) {
	exps, err := h.experiments.List(dbcOf(c), caller(c).TenantID, c.Query("status"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"experiments": exps})
}

// POST /api/v1/experiments/:key/start
func (h *ExperimentHandler) Start(c *gin.Context) {
	exp, err := h.experiments.Start(dbcOf(c), caller(c).TenantID, c.Param("key"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"experiment": exp})
}

// POST /api/v1/experiments/:key/stop
func (h *ExperimentHandler) Stop(c *gin.Context) {
	exp, err := h.experiments.Stop(dbcOf(c), caller(c).TenantID, c.Param("key"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"experiment": exp})
}

// POST /api/v1/experiments/:key/assign
// body (optional): { "user_id": "<uuid>" }
func (h *ExperimentHandler) Assign(c *gin.Context) {
	var req struct {
		UserID *uuid.UUID `json:"user_id"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}
	asg, err := h.experiments.Assign(dbcOf(c), caller(c).TenantID, c.Param("key"), subject(c, req.UserID))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if asg == nil {
		response.RespondOK(c, gin.H{"enrolled": false})
		return
	}
	response.RespondOK(c, gin.H{"enrolled": true, "variant": asg.Variant, "assignment": asg})
}

// POST /api/v1/experiments/:key/events
// body: { "kind": "exposure" | "conversion", "value": 1, "user_id": "<uuid>" }
func (h *ExperimentHandler) Track(c *gin.Context) {
	var req struct {
		Kind   string     `json:"kind" binding:"required,oneof=exposure conversion"`
		Value  float64    `json:"value"`
		UserID *uuid.UUID `json:"user_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	ev, err := h.experiments.Track(dbcOf(c), caller(c).TenantID, c.Param("key"), subject(c, req.UserID), req.Kind, req.Value)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"event": ev})
}

// GET /api/v1/experiments/:key/results
func (h *ExperimentHandler) Results(c *gin.Context) {
	res, err := h.experiments.Results(dbcOf(c), caller(c).TenantID, c.Param("key"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, res)
}
