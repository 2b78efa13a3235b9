package dto

import (
	"strings"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := PurchaseRequest{
		OwnerID:     "  42  ",
		Plan:        " plus ",
		ExternalRef: " BUY-1 ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "42", req.OwnerID)
	assert.Equal(t, "plus", req.Plan)
	assert.Equal(t, "BUY-1", req.ExternalRef)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	req := MaintenanceRequest{Message: "back <script>alert('x')</script> soon"}
	SanitizeStruct(&req)

	assert.Contains(t, req.Message, "&lt;script&gt;")
	assert.NotContains(t, req.Message, "<script>")
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	msg := "  hi  "
	v := struct{ Note *string }{Note: &msg}
	SanitizeStruct(&v)
	assert.Equal(t, "hi", *v.Note)
}

func TestSanitizeStruct_NilPointerIsNoOp(t *testing.T) {
	v := struct{ Note *string }{}
	SanitizeStruct(&v)
	assert.Nil(t, v.Note)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

func TestSanitizeStruct_LeavesSlicesAlone(t *testing.T) {
	req := ImportRequest{Plan: "plus", Credentials: []string{" a&b "}}
	SanitizeStruct(&req)
	assert.Equal(t, " a&b ", req.Credentials[0])
}

// --- Custom Validator tests ---

func TestSafeID_Valid(t *testing.T) {
	cases := []string{
		"ref-001",
		"REF_002",
		"a.b.c",
		"simple123",
		"ABC-def_GHI.123",
	}
	for _, tc := range cases {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}
}

func TestSafeID_Invalid(t *testing.T) {
	cases := []string{
		"ref 001",     // space
		"ref<001>",    // angle brackets
		"ref;DROP",    // semicolon
		"",            // empty
		"hello world", // space
		"ref\n001",    // newline
	}
	for _, tc := range cases {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %s", tc)
	}
}

func TestOwnerID(t *testing.T) {
	for _, ok := range []string{"42", "6726648486", "00001"} {
		assert.True(t, ownerIDRe.MatchString(ok), ok)
	}
	for _, bad := range []string{"", "-42", "42a", "4 2", "123456789012345678901"} {
		assert.False(t, ownerIDRe.MatchString(bad), bad)
	}
}

func TestBinding_UsesCustomValidators(t *testing.T) {
	good := CheckoutRequest{OwnerID: "42", Plan: "plus"}
	assert.NoError(t, binding.Validator.ValidateStruct(&good))

	badOwner := CheckoutRequest{OwnerID: "alice", Plan: "plus"}
	assert.Error(t, binding.Validator.ValidateStruct(&badOwner))

	badPlan := CheckoutRequest{OwnerID: "42", Plan: "gold"}
	assert.Error(t, binding.Validator.ValidateStruct(&badPlan))

	badRef := PurchaseRequest{OwnerID: "42", Plan: "plus", ExternalRef: "a b"}
	assert.Error(t, binding.Validator.ValidateStruct(&badRef))

	noRef := PurchaseRequest{OwnerID: "42", Plan: "plus"}
	assert.NoError(t, binding.Validator.ValidateStruct(&noRef))
}

func TestBinding_SellablePlan(t *testing.T) {
	for _, plan := range []string{"free", "plus", "team"} {
		req := ImportRequest{Plan: plan, Credentials: []string{"u:p"}}
		assert.NoError(t, binding.Validator.ValidateStruct(&req), plan)
	}
	for _, plan := range []string{"deposit", "unknown", "PLUS", "gold"} {
		req := ImportRequest{Plan: plan, Credentials: []string{"u:p"}}
		assert.Error(t, binding.Validator.ValidateStruct(&req), plan)
	}
}

func TestBinding_Credentials(t *testing.T) {
	ok := ImportRequest{Plan: "team", Credentials: []string{"alice@example.com|pw|2fa", "bob\tpw"}}
	assert.NoError(t, binding.Validator.ValidateStruct(&ok))

	for name, cred := range map[string]string{
		"blank":    "   ",
		"newline":  "alice\npw",
		"oversize": strings.Repeat("x", maxCredentialLen+1),
	} {
		req := ImportRequest{Plan: "team", Credentials: []string{"fine", cred}}
		assert.Error(t, binding.Validator.ValidateStruct(&req), name)
	}
}
