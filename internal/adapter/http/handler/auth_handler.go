package handler

import (
	"vending-gateway/internal/adapter/http/dto"
	"vending-gateway/internal/core/ports"
	"vending-gateway/pkg/apperror"
	"vending-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthHandler issues wallet-API client tokens.
type AuthHandler struct {
	authSvc ports.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authSvc ports.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// IssueToken handles POST /api/v1/admin/tokens.
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req dto.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	token, expiry, err := h.authSvc.IssueClientToken(c.Request.Context(), req.ClientID, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.TokenResponse{
		Token:     token,
		ExpiresAt: expiry.Unix(),
	})
}
