package domain

import "time"

// Owner is a buyer identified by an external chat/customer id. Created lazily
// on first reference and never deleted.
type Owner struct {
	ID             string    `json:"owner_id"`
	TotalSpent     int64     `json:"total_spent"`
	TotalPurchases int64     `json:"total_purchases"`
	CreatedAt      time.Time `json:"created_at"`
}
