package handler

import (
	"vending-gateway/internal/adapter/http/dto"
	"vending-gateway/internal/core/domain"
	"vending-gateway/internal/core/ports"
	"vending-gateway/pkg/apperror"
	"vending-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// InventoryHandler serves stock import and listing for operators.
type InventoryHandler struct {
	inventory ports.InventoryAllocator
}

// NewInventoryHandler creates a new InventoryHandler.
func NewInventoryHandler(inventory ports.InventoryAllocator) *InventoryHandler {
	return &InventoryHandler{inventory: inventory}
}

// Import handles POST /api/v1/admin/inventory. Credentials are not
// sanitized; they are stored encrypted exactly as sent.
func (h *InventoryHandler) Import(c *gin.Context) {
	var req dto.ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	plan := domain.Plan(req.Plan)
	n, err := h.inventory.Import(c.Request.Context(), plan, req.Credentials)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ImportResponse{Plan: plan, Imported: n})
}

// List handles GET /api/v1/admin/inventory.
func (h *InventoryHandler) List(c *gin.Context) {
	page, pageSize := pagination(c)
	params := ports.InventoryListParams{Page: page, PageSize: pageSize}

	if p := c.Query("plan"); p != "" {
		plan := domain.Plan(p)
		if !plan.IsSellable() {
			response.Error(c, apperror.Validation("unknown plan "+p))
			return
		}
		params.Plan = &plan
	}
	if s := c.Query("status"); s != "" {
		status := domain.UnitStatus(s)
		if status != domain.UnitStatusAvailable && status != domain.UnitStatusSold {
			response.Error(c, apperror.Validation("status must be available or sold"))
			return
		}
		params.Status = &status
	}

	units, total, err := h.inventory.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewListResponse(units, total, page, pageSize))
}

// Stats handles GET /api/v1/admin/inventory/stats.
func (h *InventoryHandler) Stats(c *gin.Context) {
	stats, err := h.inventory.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if stats == nil {
		stats = []domain.InventoryStats{}
	}
	response.OK(c, stats)
}
