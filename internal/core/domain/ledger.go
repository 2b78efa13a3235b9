package domain

import (
	"time"

	"github.com/google/uuid"
)

// LedgerKind is the direction of a wallet movement.
type LedgerKind string

const (
	LedgerKindDeposit  LedgerKind = "deposit"
	LedgerKindPurchase LedgerKind = "purchase"
)

// Ledger entry methods.
const (
	MethodGateway     = "gateway_auto"
	MethodWalletAPI   = "wallet_api"
	MethodAdminGift   = "admin_gift"
	MethodStoreCredit = "store_credit"
	MethodBalance     = "wallet_balance"
)

// LedgerEntryStatusCompleted is the only status an entry is written with.
const LedgerEntryStatusCompleted = "completed"

// LedgerEntry is an append-only wallet movement. Amount is signed: positive
// for deposits, negative for purchases.
type LedgerEntry struct {
	ID            uuid.UUID  `json:"id"`
	OwnerID       string     `json:"owner_id"`
	Kind          LedgerKind `json:"kind"`
	Amount        int64      `json:"amount"`
	BalanceBefore int64      `json:"balance_before"`
	BalanceAfter  int64      `json:"balance_after"`
	ExternalRef   string     `json:"external_ref"`
	Method        string     `json:"method"`
	Plan          *Plan      `json:"plan,omitempty"`
	UnitID        *uuid.UUID `json:"unit_id,omitempty"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
}
