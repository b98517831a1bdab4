package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/noc-backend/internal/http/response"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
	"github.com/yungbote/noc-backend/internal/realtime"
)

type RealtimeHandler struct {
	log *logger.Logger
	hub *realtime.Hub
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), hub: hub}
}

// GET /api/v1/realtime/stream
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	rd := caller(c)
	client := h.hub.NewClient(rd.TenantID, rd.UserID)
	defer h.hub.CloseClient(client)
	h.log.Debug("SSE stream open", "client_id", client.ID, "user_id", rd.UserID)
	h.hub.ServeSSE(c.Writer, c.Request, client)
}

// GET /ws/noc
func (h *RealtimeHandler) WebSocket(c *gin.Context) {
	rd := caller(c)
	client := h.hub.NewClient(rd.TenantID, rd.UserID)
	defer h.hub.CloseClient(client)
	if err := h.hub.ServeWS(c.Writer, c.Request, client); err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
	}
}

type channelRequest struct {
	ClientID uuid.UUID `json:"client_id" binding:"required"`
	Channel  string    `json:"channel" binding:"required"`
}

// ownClient resolves the caller's live client; other users' clients read as
// missing.
func (h *RealtimeHandler) ownClient(c *gin.Context, id uuid.UUID) *realtime.Client {
	client, ok := h.hub.Client(id)
	if !ok || client.UserID != caller(c).UserID {
		return nil
	}
	return client
}

// POST /api/v1/realtime/subscribe
func (h *RealtimeHandler) Subscribe(c *gin.Context) {
	var req channelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	client := h.ownClient(c, req.ClientID)
	if client == nil {
		response.RespondError(c, http.StatusConflict, "no_active_stream", nil)
		return
	}
	if err := h.hub.Subscribe(client, req.Channel); err != nil {
		response.RespondError(c, http.StatusForbidden, "channel_forbidden", err)
		return
	}
	response.RespondOK(c, gin.H{"message": "subscribed", "channel": req.Channel})
}

// POST /api/v1/realtime/unsubscribe
func (h *RealtimeHandler) Unsubscribe(c *gin.Context) {
	var req channelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	client := h.ownClient(c, req.ClientID)
	if client == nil {
		response.RespondError(c, http.StatusConflict, "no_active_stream", nil)
		return
	}
	h.hub.RemoveChannel(client, req.Channel)
	response.RespondOK(c, gin.H{"message": "unsubscribed", "channel": req.Channel})
}
