package handler

import (
	"strings"

	"vending-gateway/internal/adapter/http/dto"
	"vending-gateway/internal/core/domain"
	"vending-gateway/internal/core/ports"
	"vending-gateway/pkg/apperror"
	"vending-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves operator actions: maintenance, gifts, dry-run
// verification and rate-limit resets.
type AdminHandler struct {
	gate     ports.MaintenanceGate
	ledger   ports.WalletLedger
	verifier ports.PaymentVerifier
	limiter  ports.RateLimiter
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(gate ports.MaintenanceGate, ledger ports.WalletLedger, verifier ports.PaymentVerifier, limiter ports.RateLimiter) *AdminHandler {
	return &AdminHandler{gate: gate, ledger: ledger, verifier: verifier, limiter: limiter}
}

// GetMaintenance handles GET /api/v1/admin/maintenance.
func (h *AdminHandler) GetMaintenance(c *gin.Context) {
	enabled, message := h.gate.Status()
	response.OK(c, dto.MaintenanceResponse{Enabled: enabled, Message: message})
}

// SetMaintenance handles POST /api/v1/admin/maintenance.
func (h *AdminHandler) SetMaintenance(c *gin.Context) {
	var req dto.MaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	h.gate.SetEnabled(*req.Enabled, req.Message)
	enabled, message := h.gate.Status()
	response.OK(c, dto.MaintenanceResponse{Enabled: enabled, Message: message})
}

// Gift handles POST /api/v1/admin/wallets/gift.
func (h *AdminHandler) Gift(c *gin.Context) {
	var req dto.GiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	change, err := h.ledger.Deposit(c.Request.Context(), ports.DepositRequest{
		OwnerID:     req.OwnerID,
		Amount:      req.Amount,
		ExternalRef: req.ExternalRef,
		Method:      domain.MethodAdminGift,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	writeChange(c, change)
}

// Verify handles POST /api/v1/admin/verify. Nothing is persisted.
func (h *AdminHandler) Verify(c *gin.Context) {
	var req dto.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	response.OK(c, h.verifier.Verify(strings.TrimSpace(req.Memo), req.Amount))
}

// ResetLimit handles POST /api/v1/admin/limits/reset.
func (h *AdminHandler) ResetLimit(c *gin.Context) {
	var req dto.LimitCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	for _, key := range []string{"actor:" + req.ActorID, "owner:" + req.ActorID} {
		if err := h.limiter.Reset(c.Request.Context(), key); err != nil {
			response.Error(c, apperror.ErrPersistence(err))
			return
		}
	}
	response.OK(c, gin.H{"actor_id": req.ActorID, "reset": true})
}
