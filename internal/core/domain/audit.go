package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionPaymentRejected   AuditAction = "PAYMENT_REJECTED"
	AuditActionDeposit           AuditAction = "DEPOSIT"
	AuditActionDelivery          AuditAction = "DELIVERY"
	AuditActionNoStock           AuditAction = "NO_STOCK"
	AuditActionStoreCredit       AuditAction = "STORE_CREDIT"
	AuditActionFulfil            AuditAction = "FULFIL"
	AuditActionDeduct            AuditAction = "DEDUCT"
	AuditActionPurchase          AuditAction = "PURCHASE"
	AuditActionGift              AuditAction = "GIFT"
	AuditActionMaintenanceToggle AuditAction = "MAINTENANCE_TOGGLE"
	AuditActionInventoryImport   AuditAction = "INVENTORY_IMPORT"
	AuditActionTokenIssue        AuditAction = "TOKEN_ISSUE"
	AuditActionAdminWrite        AuditAction = "ADMIN_WRITE"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	Actor        string      `json:"actor"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
