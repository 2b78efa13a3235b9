package handler

import (
	"vending-gateway/internal/adapter/http/dto"
	"vending-gateway/internal/core/domain"
	"vending-gateway/internal/core/ports"
	"vending-gateway/pkg/apperror"
	"vending-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// CheckoutHandler handles bank-transfer checkout and balance purchases.
type CheckoutHandler struct {
	checkout ports.CheckoutService
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(checkout ports.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

// Checkout handles POST /api/v1/checkout.
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	out, err := h.checkout.Instructions(c.Request.Context(), req.OwnerID, domain.Plan(req.Plan))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, out)
}

// Purchase handles POST /api/v1/purchases.
func (h *CheckoutHandler) Purchase(c *gin.Context) {
	var req dto.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	p, err := h.checkout.BuyWithBalance(c.Request.Context(), ports.PurchaseRequest{
		OwnerID:     req.OwnerID,
		Plan:        domain.Plan(req.Plan),
		ExternalRef: req.ExternalRef,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := toPurchaseResponse(p)
	if p.Replay {
		response.OK(c, resp)
		return
	}
	response.Created(c, resp)
}

func toPurchaseResponse(p *domain.Purchase) dto.PurchaseResponse {
	resp := dto.PurchaseResponse{
		UnitID:       p.Unit.ID.String(),
		Plan:         p.Unit.Plan,
		Credentials:  p.Credentials,
		ExternalRef:  p.Change.ExternalRef,
		BalanceAfter: p.Change.BalanceAfter,
		Duplicate:    p.Replay,
	}
	if p.Unit.Price != nil {
		resp.Price = *p.Unit.Price
	}
	return resp
}
