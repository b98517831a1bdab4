package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/noc-backend/internal/http/response"
	"github.com/yungbote/noc-backend/internal/services"
)

type CorrelationHandler struct {
	correlation services.CorrelationService
}

func NewCorrelationHandler(correlation services.CorrelationService) *CorrelationHandler {
	return &CorrelationHandler{correlation: correlation}
}

// GET /api/v1/noc/correlations?status=active&limit=&offset=
func (h *CorrelationHandler) List(c *gin.Context) {
	limit, offset, err := pageQuery(c)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	groups, total, err := h.correlation.List(dbcOf(c), caller(c).TenantID, c.Query("status"), limit, offset)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"correlations": groups, "total": total})
}

// GET /api/v1/noc/correlations/:id
func (h *CorrelationHandler) Get(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	detail, err := h.correlation.Get(dbcOf(c), caller(c).TenantID, id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"correlation": detail})
}
