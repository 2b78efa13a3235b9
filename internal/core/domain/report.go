package domain

import "time"

// Overview is the admin summary of sales, wallets and pending reviews.
type Overview struct {
	Inventory     []InventoryStats         `json:"inventory"`
	Revenue       int64                    `json:"revenue"`
	Owners        int64                    `json:"owners"`
	Payments      map[PaymentOutcome]int64 `json:"payments"`
	PendingReview int64                    `json:"pending_review"`
	GeneratedAt   time.Time                `json:"generated_at"`
}
