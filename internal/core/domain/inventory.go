package domain

import (
	"time"

	"github.com/google/uuid"
)

// Plan is a purchasable tier, or the deposit pseudo-plan.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanPlus    Plan = "plus"
	PlanTeam    Plan = "team"
	PlanDeposit Plan = "deposit"
	PlanUnknown Plan = "unknown"
)

// IsSellable reports whether the plan maps to inventory units.
func (p Plan) IsSellable() bool {
	return p != PlanDeposit && p != PlanUnknown && p != ""
}

// UnitStatus is the lifecycle state of an inventory unit. available -> sold only.
type UnitStatus string

const (
	UnitStatusAvailable UnitStatus = "available"
	UnitStatusSold      UnitStatus = "sold"
)

// InventoryUnit is one sellable item. Credentials hold the decrypted payload
// and are only populated for the buyer; the stored form is encrypted.
type InventoryUnit struct {
	ID                   uuid.UUID  `json:"id"`
	Plan                 Plan       `json:"plan"`
	Credentials          string     `json:"-"`
	EncryptedCredentials string     `json:"-"`
	Status               UnitStatus `json:"status"`
	SoldAt               *time.Time `json:"sold_at,omitempty"`
	BuyerRef             *string    `json:"buyer_ref,omitempty"`
	Price                *int64     `json:"price,omitempty"`
	ExternalRef          *string    `json:"external_ref,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// IsAvailable reports whether the unit can still be reserved.
func (u *InventoryUnit) IsAvailable() bool {
	return u.Status == UnitStatusAvailable
}

// InventoryStats summarises stock for one plan.
type InventoryStats struct {
	Plan      Plan  `json:"plan"`
	Total     int64 `json:"total"`
	Available int64 `json:"available"`
	Sold      int64 `json:"sold"`
	Revenue   int64 `json:"revenue"`
}
