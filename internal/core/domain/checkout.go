package domain

// QRRequest describes the transfer a buyer should make.
type QRRequest struct {
	Account string
	Amount  int64
	Code    string
}

// QRImage is a generated payment QR reference.
type QRImage struct {
	Provider string `json:"provider"`
	URL      string `json:"url"`
}

// CheckoutInstructions tell a buyer how to pay for a plan by bank transfer.
type CheckoutInstructions struct {
	OwnerID string   `json:"owner_id"`
	Plan    Plan     `json:"plan"`
	Code    string   `json:"code"`
	Amount  int64    `json:"amount"`
	Account string   `json:"account"`
	QR      *QRImage `json:"qr,omitempty"`
}

// Purchase is the result of buying a unit with wallet balance.
// Credentials are returned to the authenticated caller only.
type Purchase struct {
	Unit        InventoryUnit `json:"unit"`
	Credentials string        `json:"credentials"`
	Change      BalanceChange `json:"change"`
	Replay      bool          `json:"replay"`
}
