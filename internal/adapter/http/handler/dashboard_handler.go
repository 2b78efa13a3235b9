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

// DashboardHandler serves the admin read models.
type DashboardHandler struct {
	reportingSvc ports.ReportingService
	ledger       ports.WalletLedger
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(reportingSvc ports.ReportingService, ledger ports.WalletLedger) *DashboardHandler {
	return &DashboardHandler{reportingSvc: reportingSvc, ledger: ledger}
}

// Overview handles GET /api/v1/admin/overview.
func (h *DashboardHandler) Overview(c *gin.Context) {
	out, err := h.reportingSvc.Overview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, out)
}

// ListPayments handles GET /api/v1/admin/payments.
func (h *DashboardHandler) ListPayments(c *gin.Context) {
	page, pageSize := pagination(c)
	params := ports.PaymentEventListParams{Page: page, PageSize: pageSize}

	if o := c.Query("outcome"); o != "" {
		outcome := domain.PaymentOutcome(o)
		params.Outcome = &outcome
	}
	if r := c.Query("needs_review"); r != "" {
		v, err := strconv.ParseBool(r)
		if err != nil {
			response.Error(c, apperror.Validation("needs_review must be true or false"))
			return
		}
		params.NeedsReview = &v
	}

	events, total, err := h.reportingSvc.ListPayments(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewListResponse(events, total, page, pageSize))
}

// ListOwners handles GET /api/v1/admin/owners.
func (h *DashboardHandler) ListOwners(c *gin.Context) {
	page, pageSize := pagination(c)

	owners, total, err := h.ledger.ListOwners(c.Request.Context(), ports.OwnerListParams{Page: page, PageSize: pageSize})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewListResponse(owners, total, page, pageSize))
}

// pagination reads page and page_size with defaults 1 and 20.
func pagination(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
