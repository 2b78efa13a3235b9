package handler

import (
	"vending-gateway/internal/adapter/http/dto"
	"vending-gateway/internal/core/ports"
	"vending-gateway/pkg/apperror"
	"vending-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentHandler handles gateway payment callbacks.
type PaymentHandler struct {
	intake ports.WebhookIntake
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(intake ports.WebhookIntake) *PaymentHandler {
	return &PaymentHandler{intake: intake}
}

// Webhook handles POST /webhook/payment. Every terminal outcome, including
// rejections, answers 200 so the gateway stops retrying.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var payload dto.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.AckError(c, apperror.Validation("invalid webhook payload: "+err.Error()))
		return
	}

	ref := payload.ExternalRef()
	if ref == "" {
		response.AckError(c, apperror.Validation("transaction id is required (id, transactionId or code)"))
		return
	}
	memo := payload.Memo()
	if memo == "" {
		response.AckError(c, apperror.Validation("transfer content is required (content, transferContent or description)"))
		return
	}
	amount, ok := payload.Value()
	if !ok {
		response.AckError(c, apperror.Validation("amount is required (transferAmount or amount)"))
		return
	}

	ack, err := h.intake.Handle(c.Request.Context(), ports.WebhookRequest{
		ExternalRef:   ref,
		Memo:          memo,
		Amount:        amount,
		Gateway:       payload.Gateway,
		AccountNumber: string(payload.AccountNumber),
		ClientIP:      c.ClientIP(),
	})
	if err != nil {
		response.AckError(c, err)
		return
	}

	response.Ack(c, ack)
}

// Fulfil handles POST /api/v1/admin/payments/:external_ref/fulfil. It
// delivers a unit for a payment parked as no_stock.
func (h *PaymentHandler) Fulfil(c *gin.Context) {
	ack, err := h.intake.Fulfil(c.Request.Context(), ports.FulfilRequest{
		ExternalRef: c.Param("external_ref"),
		Actor:       "admin",
		ClientIP:    c.ClientIP(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, ack)
}
