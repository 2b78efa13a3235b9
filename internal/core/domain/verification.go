package domain

// PaymentCode is a structured memo token such as PLUS123456.
type PaymentCode struct {
	Prefix string `json:"prefix"`
	Digits string `json:"digits"`
}

// String renders the code as it appears in a transfer memo.
func (c PaymentCode) String() string {
	return c.Prefix + c.Digits
}

// VerificationResult is the outcome of checking a memo and amount against policy.
type VerificationResult struct {
	Valid    bool         `json:"valid"`
	Reasons  []string     `json:"reasons"`
	Plan     Plan         `json:"plan"`
	OwnerRef *string      `json:"owner_ref,omitempty"`
	Code     *PaymentCode `json:"code,omitempty"`
	Amount   int64        `json:"amount"`
}
