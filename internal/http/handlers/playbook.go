package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/noc-backend/internal/data/repos"
	"github.com/yungbote/noc-backend/internal/http/response"
	"github.com/yungbote/noc-backend/internal/modules/noc/playbook"
	"github.com/yungbote/noc-backend/internal/services"
)

type PlaybookHandler struct {
	playbooks services.PlaybookService
}

func NewPlaybookHandler(playbooks services.PlaybookService) *PlaybookHandler {
	return &PlaybookHandler{playbooks: playbooks}
}

// POST /api/v1/noc/playbooks
func (h *PlaybookHandler) Create(c *gin.Context) {
	var def playbook.Definition
	if err := c.ShouldBindJSON(&def); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	pb, err := h.playbooks.Create(dbcOf(c), caller(c).TenantID, def)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"playbook": pb})
}

// GET /api/v1/noc/playbooks
func (h *PlaybookHandler) List(c *gin.Context) {
	pbs, err := h.playbooks.List(dbcOf(c), caller(c).TenantID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"playbooks": pbs})
}

// GET /api/v1/noc/playbooks/:id
func (h *PlaybookHandler) Get(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	pb, err := h.playbooks.Get(dbcOf(c), caller(c).TenantID, id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"playbook": pb})
}

// PUT /api/v1/noc/playbooks/:id
func (h *PlaybookHandler) Update(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	var def playbook.Definition
	if err := c.ShouldBindJSON(&def); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	pb, err := h.playbooks.Update(dbcOf(c), caller(c).TenantID, id, def)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"playbook": pb})
}

// DELETE /api/v1/noc/playbooks/:id
func (h *PlaybookHandler) Delete(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if err := h.playbooks.Delete(dbcOf(c), caller(c).TenantID, id); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/v1/noc/playbook-executions?status=&playbook_id=&alert_id=&limit=&offset=
func (h *PlaybookHandler) ListExecutions(c *gin.Context) {
	f := repos.ExecutionFilter{Status: c.Query("status")}
	var err error
	if f.PlaybookID, err = optionalUUIDQuery(c, "playbook_id"); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if f.AlertID, err = optionalUUIDQuery(c, "alert_id"); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if f.Limit, f.Offset, err = pageQuery(c); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	execs, total, err := h.playbooks.ListExecutions(dbcOf(c), caller(c).TenantID, f)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"executions": execs, "total": total})
}

// POST /api/v1/noc/playbook-executions/:id/approve
func (h *PlaybookHandler) Approve(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	rd := caller(c)
	exec, err := h.playbooks.Approve(dbcOf(c), rd.TenantID, id, rd.UserID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"execution": exec})
}

// POST /api/v1/noc/playbook-executions/:id/reject
func (h *PlaybookHandler) Reject(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	rd := caller(c)
	exec, err := h.playbooks.Reject(dbcOf(c), rd.TenantID, id, rd.UserID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"execution": exec})
}

// POST /api/v1/noc/playbook-executions/:id/cancel
func (h *PlaybookHandler) Cancel(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	rd := caller(c)
	exec, err := h.playbooks.Cancel(dbcOf(c), rd.TenantID, id, rd.UserID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"execution": exec})
}
