package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/noc-backend/internal/http/response"
	"github.com/yungbote/noc-backend/internal/services"
)

type AuthHandler struct {
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// POST /api/v1/auth/register
func (ah *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	user, tenant, err := ah.authService.Register(dbcOf(c), req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"user": user, "tenant": tenant})
}

// POST /api/v1/auth/login
func (ah *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	token, user, err := ah.authService.Login(dbcOf(c), req.Email, req.Password)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int(ah.authService.GetAccessTTL().Seconds()),
		"user":         user,
	})
}

// GET /api/v1/me
func (ah *AuthHandler) Me(c *gin.Context) {
	me, err := ah.authService.Me(dbcOf(c))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	rd := caller(c)
	caps := make([]string, 0, len(rd.Capabilities))
	for k, ok := range rd.Capabilities {
		if ok {
			caps = append(caps, k)
		}
	}
	sort.Strings(caps)
	response.RespondOK(c, gin.H{"me": me, "capabilities": caps})
}

// POST /api/v1/users
func (ah *AuthHandler) CreateUser(c *gin.Context) {
	var req services.CreateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	user, err := ah.authService.CreateUser(dbcOf(c), req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"user": user})
}
