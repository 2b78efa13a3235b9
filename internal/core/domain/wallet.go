package domain

import "time"

// Wallet holds a prepaid balance in the smallest currency unit (VND).
// Balance is never negative and only changes through ledger entries.
type Wallet struct {
	OwnerID   string    `json:"owner_id"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WalletView is the read model returned by the wallet API.
type WalletView struct {
	Owner  Owner         `json:"owner"`
	Wallet Wallet        `json:"wallet"`
	Recent []LedgerEntry `json:"recent_transactions"`
}

// BalanceChange is the result of a deposit or deduction. Replayed is set
// when the external ref had already been applied.
type BalanceChange struct {
	OwnerID       string      `json:"owner_id"`
	ExternalRef   string      `json:"external_ref"`
	Amount        int64       `json:"amount"`
	BalanceBefore int64       `json:"balance_before"`
	BalanceAfter  int64       `json:"balance_after"`
	Entry         LedgerEntry `json:"entry"`
	Replayed      bool        `json:"duplicate"`
}
