package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"vending-gateway/internal/core/domain"
	"vending-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog creates an audit middleware that logs successful write operations.
// Routes whose services audit themselves (webhook, purchases, tokens) are
// not mapped here.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only audit successful write operations (status 2xx)
		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead || c.Request.Method == http.MethodOptions {
			return
		}

		action, resourceType := mapPathToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			Actor:        actorOf(c),
			Action:       action,
			ResourceType: resourceType,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

func actorOf(c *gin.Context) string {
	if id := c.GetString(CtxClientID); id != "" {
		return "client:" + id
	}
	if c.GetBool(CtxAdmin) {
		return "admin"
	}
	return "anonymous"
}

func mapPathToAction(path, method string) (domain.AuditAction, string) {
	if method != http.MethodPost {
		return "", ""
	}
	switch path {
	case "/api/v1/wallets/deposit":
		return domain.AuditActionDeposit, "wallet"
	case "/api/v1/wallets/deduct":
		return domain.AuditActionDeduct, "wallet"
	case "/api/v1/admin/wallets/gift":
		return domain.AuditActionGift, "wallet"
	case "/api/v1/admin/maintenance":
		return domain.AuditActionMaintenanceToggle, "maintenance"
	case "/api/v1/admin/inventory":
		return domain.AuditActionInventoryImport, "inventory_unit"
	}
	return "", ""
}
