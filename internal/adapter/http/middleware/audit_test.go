package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"vending-gateway/internal/core/domain"
	"vending-gateway/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestAuditLog_WalletDeposit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAudit := mocks.NewMockAuditService(ctrl)
	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(
		func(_ context.Context, log *domain.AuditLog) {
			assert.Equal(t, domain.AuditActionDeposit, log.Action)
			assert.Equal(t, "wallet", log.ResourceType)
			assert.Equal(t, "client:shop-bot", log.Actor)
			assert.Contains(t, log.Details, `"status":201`)
		},
	)

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.POST("/api/v1/wallets/deposit", func(c *gin.Context) {
		c.Set(CtxClientID, "shop-bot")
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/wallets/deposit", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestAuditLog_AdminActor(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAudit := mocks.NewMockAuditService(ctrl)
	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(
		func(_ context.Context, log *domain.AuditLog) {
			assert.Equal(t, domain.AuditActionMaintenanceToggle, log.Action)
			assert.Equal(t, "admin", log.Actor)
		},
	)

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.POST("/api/v1/admin/maintenance", func(c *gin.Context) {
		c.Set(CtxAdmin, true)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/admin/maintenance", nil))
}

func TestAuditLog_SkipsFailuresReadsAndUnmapped(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// no Log calls expected
	mockAudit := mocks.NewMockAuditService(ctrl)

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.POST("/api/v1/wallets/deduct", func(c *gin.Context) {
		c.JSON(http.StatusPaymentRequired, gin.H{"error_code": "PAY_001"})
	})
	r.GET("/api/v1/admin/maintenance", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})
	r.POST("/webhook/payment", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, "/api/v1/wallets/deduct", nil),
		httptest.NewRequest(http.MethodGet, "/api/v1/admin/maintenance", nil),
		httptest.NewRequest(http.MethodPost, "/webhook/payment", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
}

func TestMapPathToAction(t *testing.T) {
	action, resource := mapPathToAction("/api/v1/admin/inventory", http.MethodPost)
	assert.Equal(t, domain.AuditActionInventoryImport, action)
	assert.Equal(t, "inventory_unit", resource)

	action, _ = mapPathToAction("/api/v1/admin/inventory", http.MethodGet)
	assert.Empty(t, action)

	action, _ = mapPathToAction("/api/v1/admin/wallets/gift", http.MethodPost)
	assert.Equal(t, domain.AuditActionGift, action)
}
