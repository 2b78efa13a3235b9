package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_IsSellable(t *testing.T) {
	tests := []struct {
		plan Plan
		want bool
	}{
		{PlanFree, true},
		{PlanPlus, true},
		{PlanTeam, true},
		{PlanDeposit, false},
		{PlanUnknown, false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.plan), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.plan.IsSellable())
		})
	}
}

func TestPaymentOutcome_IsTerminal(t *testing.T) {
	tests := []struct {
		outcome PaymentOutcome
		want    bool
	}{
		{PaymentOutcomeProcessing, false},
		{PaymentOutcomeRejected, true},
		{PaymentOutcomeCredited, true},
		{PaymentOutcomeDelivered, true},
		{PaymentOutcomeNoStock, true},
		{PaymentOutcomeStoreCredit, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.outcome.IsTerminal())
		})
	}
}

func TestInventoryUnit_IsAvailable(t *testing.T) {
	assert.True(t, (&InventoryUnit{Status: UnitStatusAvailable}).IsAvailable())
	assert.False(t, (&InventoryUnit{Status: UnitStatusSold}).IsAvailable())
}

func TestInventoryUnit_CredentialsNeverSerialized(t *testing.T) {
	unit := InventoryUnit{
		ID:                   uuid.New(),
		Plan:                 PlanPlus,
		Credentials:          "user@example.com|pw|2fa",
		EncryptedCredentials: "ciphertext",
		Status:               UnitStatusSold,
	}

	raw, err := json.Marshal(unit)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "user@example.com")
	assert.NotContains(t, string(raw), "ciphertext")
}

func TestPaymentCode_String(t *testing.T) {
	assert.Equal(t, "PLUS123456", PaymentCode{Prefix: "PLUS", Digits: "123456"}.String())
}

func TestPaymentAckCacheKey(t *testing.T) {
	assert.Equal(t, "payment_ack:TX-42", PaymentAckCacheKey("TX-42"))
}
