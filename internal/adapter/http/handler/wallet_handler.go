package handler

import (
	"strconv"

	"vending-gateway/internal/adapter/http/dto"
	"vending-gateway/internal/core/domain"
	"vending-gateway/internal/core/ports"
	"vending-gateway/pkg/apperror"
	"vending-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet-related endpoints.
type WalletHandler struct {
	ledger ports.WalletLedger
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledger ports.WalletLedger) *WalletHandler {
	return &WalletHandler{ledger: ledger}
}

// Get handles GET /api/v1/wallets/:owner_id.
func (h *WalletHandler) Get(c *gin.Context) {
	ownerID := c.Param("owner_id")
	if !isOwnerID(ownerID) {
		response.Error(c, apperror.Validation("owner_id must be numeric"))
		return
	}
	recent, _ := strconv.Atoi(c.DefaultQuery("recent", "0"))

	view, err := h.ledger.Wallet(c.Request.Context(), ownerID, recent)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// Deposit handles POST /api/v1/wallets/deposit.
func (h *WalletHandler) Deposit(c *gin.Context) {
	var req dto.WalletDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	change, err := h.ledger.Deposit(c.Request.Context(), ports.DepositRequest{
		OwnerID:     req.OwnerID,
		Amount:      req.Amount,
		ExternalRef: req.ExternalRef,
		Method:      domain.MethodWalletAPI,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	writeChange(c, change)
}

// Deduct handles POST /api/v1/wallets/deduct.
func (h *WalletHandler) Deduct(c *gin.Context) {
	var req dto.WalletDeductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	deduct := ports.DeductRequest{
		OwnerID:     req.OwnerID,
		Amount:      req.Amount,
		ExternalRef: req.ExternalRef,
		Method:      domain.MethodWalletAPI,
	}
	if req.Plan != "" {
		plan := domain.Plan(req.Plan)
		deduct.Plan = &plan
	}
	if req.UnitID != "" {
		unitID := req.UnitID
		deduct.UnitID = &unitID
	}

	change, err := h.ledger.Deduct(c.Request.Context(), deduct)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeChange(c, change)
}

// writeChange answers 201 for a new movement and 200 for a replay.
func writeChange(c *gin.Context, change *domain.BalanceChange) {
	if change.Replayed {
		response.OK(c, change)
		return
	}
	response.Created(c, change)
}

func isOwnerID(s string) bool {
	if s == "" || len(s) > 20 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
