package handler

import (
	"math"

	"vending-gateway/internal/adapter/http/dto"
	"vending-gateway/internal/core/ports"
	"vending-gateway/pkg/apperror"
	"vending-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// LimitsHandler exposes the rate limiter to chat surfaces.
type LimitsHandler struct {
	limiter ports.RateLimiter
}

// NewLimitsHandler creates a new LimitsHandler.
func NewLimitsHandler(limiter ports.RateLimiter) *LimitsHandler {
	return &LimitsHandler{limiter: limiter}
}

// Check handles POST /api/v1/limits/check. A denied actor is a normal
// answer, so the status is always 200.
func (h *LimitsHandler) Check(c *gin.Context) {
	var req dto.LimitCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	d := h.limiter.Check(c.Request.Context(), "actor:"+req.ActorID)
	response.OK(c, dto.LimitCheckResponse{
		Allowed:           d.Allowed,
		Banned:            d.Banned,
		Remaining:         d.Remaining,
		RetryAfterSeconds: int64(math.Ceil(d.RetryAfter.Seconds())),
	})
}
