package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PaymentOutcome is the terminal result recorded for a gateway callback.
type PaymentOutcome string

const (
	// PaymentOutcomeProcessing marks a claimed event inside an open
	// transaction. It is always replaced before commit.
	PaymentOutcomeProcessing  PaymentOutcome = "processing"
	PaymentOutcomeRejected    PaymentOutcome = "rejected"
	PaymentOutcomeCredited    PaymentOutcome = "credited"
	PaymentOutcomeDelivered   PaymentOutcome = "delivered"
	PaymentOutcomeNoStock     PaymentOutcome = "no_stock"
	PaymentOutcomeStoreCredit PaymentOutcome = "store_credit"
)

// PaymentEvent is the idempotency record for one external reference.
type PaymentEvent struct {
	ExternalRef    string         `json:"external_ref"`
	RawMemo        string         `json:"raw_memo"`
	ParsedPlan     Plan           `json:"parsed_plan"`
	ParsedOwnerRef *string        `json:"parsed_owner_ref,omitempty"`
	Amount         int64          `json:"amount"`
	Gateway        string         `json:"gateway,omitempty"`
	AccountNumber  string         `json:"account_number,omitempty"`
	Outcome        PaymentOutcome `json:"outcome"`
	Reasons        []string       `json:"reasons,omitempty"`
	UnitID         *uuid.UUID     `json:"unit_id,omitempty"`
	AckJSON        []byte         `json:"-"`
	NeedsReview    bool           `json:"needs_review"`
	CreatedAt      time.Time      `json:"created_at"`
	ProcessedAt    *time.Time     `json:"processed_at,omitempty"`
}

// Ack is the business-level acknowledgement returned to the sender and
// stored verbatim so replays answer identically.
type Ack struct {
	Success     bool     `json:"success"`
	Message     string   `json:"message"`
	Outcome     string   `json:"outcome,omitempty"`
	ExternalRef string   `json:"external_ref,omitempty"`
	Plan        Plan     `json:"plan,omitempty"`
	OwnerRef    *string  `json:"owner_ref,omitempty"`
	UnitID      string   `json:"unit_id,omitempty"`
	Amount      int64    `json:"amount,omitempty"`
	NewBalance  *int64   `json:"new_balance,omitempty"`
	Reasons     []string `json:"reasons,omitempty"`
}

// GatewayRefPrefix marks ledger entries and sold units written for a gateway
// callback. Client refs are restricted to [A-Za-z0-9_.-], so the two
// namespaces never collide.
const GatewayRefPrefix = "GW:"

// GatewayRef is the ledger and inventory reference for gateway id ref.
func GatewayRef(ref string) string {
	return GatewayRefPrefix + ref
}

// IsGatewayRef reports whether ref lives in the gateway namespace.
func IsGatewayRef(ref string) bool {
	return strings.HasPrefix(ref, GatewayRefPrefix)
}

// PaymentAckCacheKey is the cache key for a stored acknowledgement.
func PaymentAckCacheKey(externalRef string) string {
	return "payment_ack:" + externalRef
}

// IsTerminal reports whether the outcome is final.
func (o PaymentOutcome) IsTerminal() bool {
	return o != PaymentOutcomeProcessing && o != ""
}
