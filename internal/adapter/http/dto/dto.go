package dto

import (
	"strings"

	"vending-gateway/internal/core/domain"
)

// WebhookPayload is the bank-transfer callback body. Gateways disagree on
// field names, so each value has several accepted keys.
type WebhookPayload struct {
	ID              FlexString `json:"id"`
	TransactionID   FlexString `json:"transactionId"`
	Code            FlexString `json:"code"`
	Content         string     `json:"content"`
	TransferContent string     `json:"transferContent"`
	Description     string     `json:"description"`
	TransferAmount  *FlexInt   `json:"transferAmount"`
	Amount          *FlexInt   `json:"amount"`
	AccountNumber   FlexString `json:"accountNumber"`
	Gateway         string     `json:"gateway"`
}

// ExternalRef returns the first non-empty transaction identifier.
func (p *WebhookPayload) ExternalRef() string {
	return firstNonEmpty(string(p.ID), string(p.TransactionID), string(p.Code))
}

// Memo returns the first non-empty transfer memo.
func (p *WebhookPayload) Memo() string {
	return firstNonEmpty(p.Content, p.TransferContent, p.Description)
}

// Value returns the transferred amount. ok is false when no amount key was sent.
func (p *WebhookPayload) Value() (amount int64, ok bool) {
	switch {
	case p.TransferAmount != nil:
		return int64(*p.TransferAmount), true
	case p.Amount != nil:
		return int64(*p.Amount), true
	}
	return 0, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// WalletDepositRequest is the body of POST /api/v1/wallets/deposit.
type WalletDepositRequest struct {
	OwnerID     string `json:"owner_id" binding:"required,owner_id"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	ExternalRef string `json:"external_ref" binding:"omitempty,max=100,safe_id"`
}

// WalletDeductRequest is the body of POST /api/v1/wallets/deduct.
type WalletDeductRequest struct {
	OwnerID     string `json:"owner_id" binding:"required,owner_id"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	ExternalRef string `json:"external_ref" binding:"omitempty,max=100,safe_id"`
	Plan        string `json:"plan" binding:"omitempty,sellable_plan"`
	// UnitID makes the debit idempotent per unit when no external_ref is sent.
	UnitID string `json:"unit_id" binding:"omitempty,uuid"`
}

// CheckoutRequest is the body of POST /api/v1/checkout.
type CheckoutRequest struct {
	OwnerID string `json:"owner_id" binding:"required,owner_id"`
	Plan    string `json:"plan" binding:"required,oneof=free plus team deposit"`
}

// PurchaseRequest is the body of POST /api/v1/purchases.
type PurchaseRequest struct {
	OwnerID     string `json:"owner_id" binding:"required,owner_id"`
	Plan        string `json:"plan" binding:"required,sellable_plan"`
	ExternalRef string `json:"external_ref" binding:"omitempty,max=100,safe_id"`
}

// PurchaseResponse carries the delivered credentials to the caller.
type PurchaseResponse struct {
	UnitID       string      `json:"unit_id"`
	Plan         domain.Plan `json:"plan"`
	Price        int64       `json:"price"`
	Credentials  string      `json:"credentials"`
	ExternalRef  string      `json:"external_ref"`
	BalanceAfter int64       `json:"balance_after"`
	Duplicate    bool        `json:"duplicate"`
}

// LimitCheckRequest is the body of POST /api/v1/limits/check.
type LimitCheckRequest struct {
	ActorID string `json:"actor_id" binding:"required,max=64,safe_id"`
}

// LimitCheckResponse is the rate-limit decision for one actor.
type LimitCheckResponse struct {
	Allowed           bool  `json:"allowed"`
	Banned            bool  `json:"banned"`
	Remaining         int   `json:"remaining"`
	RetryAfterSeconds int64 `json:"retry_after_seconds"`
}

// MaintenanceRequest toggles maintenance mode.
type MaintenanceRequest struct {
	Enabled *bool  `json:"enabled" binding:"required"`
	Message string `json:"message" binding:"max=500"`
}

// MaintenanceResponse is the current maintenance state.
type MaintenanceResponse struct {
	Enabled bool   `json:"enabled"`
	Message string `json:"message"`
}

// GiftRequest credits an owner from the admin surface.
type GiftRequest struct {
	OwnerID     string `json:"owner_id" binding:"required,owner_id"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	ExternalRef string `json:"external_ref" binding:"omitempty,max=100,safe_id"`
}

// VerifyRequest is a dry-run verification of a memo and amount.
type VerifyRequest struct {
	Memo   string `json:"memo" binding:"required,max=500"`
	Amount int64  `json:"amount" binding:"gte=0"`
}

// ImportRequest adds inventory units. Credentials are stored as given.
type ImportRequest struct {
	Plan        string   `json:"plan" binding:"required,sellable_plan"`
	Credentials []string `json:"credentials" binding:"required,min=1,max=1000,dive,credential"`
}

// ImportResponse reports how many units were stored.
type ImportResponse struct {
	Plan     domain.Plan `json:"plan"`
	Imported int         `json:"imported"`
}

// TokenRequest asks for a wallet-API client token.
type TokenRequest struct {
	ClientID string `json:"client_id" binding:"required,max=64,safe_id"`
}

// TokenResponse is an issued client token.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"` // Unix timestamp
}

// ListResponse wraps a paginated list.
type ListResponse[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewListResponse builds a ListResponse, never with nil items.
func NewListResponse[T any](items []T, total int64, page, pageSize int) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if pageSize > 0 {
		pages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return ListResponse[T]{Items: items, Total: total, Page: page, PageSize: pageSize, TotalPages: pages}
}
