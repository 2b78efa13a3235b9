package domain

// NotificationKind identifies the business event behind a notification.
type NotificationKind string

const (
	NotificationDeposit     NotificationKind = "deposit"
	NotificationDelivery    NotificationKind = "delivery"
	NotificationNoStock     NotificationKind = "no_stock"
	NotificationStoreCredit NotificationKind = "store_credit"
	NotificationRejected    NotificationKind = "rejected"
)

// AdminRecipient addresses the configured operator chat.
const AdminRecipient = "admin"

// Notification is one outbound message. Recipient is an owner ref or AdminRecipient.
type Notification struct {
	Kind        NotificationKind  `json:"kind"`
	Recipient   string            `json:"recipient"`
	ExternalRef string            `json:"external_ref"`
	Text        string            `json:"text"`
	Fields      map[string]string `json:"fields,omitempty"`
}
