package service

import (
	"fmt"
	"strconv"
	"strings"

	"vending-gateway/internal/core/domain"
)

// Notification builders. Credentials appear only in the buyer's delivery
// text; Fields never carry them because event sinks publish Fields.

func depositNotifications(e *domain.PaymentEvent, ownerID string, balance int64) []domain.Notification {
	fields := map[string]string{
		"owner_id": ownerID,
		"amount":   strconv.FormatInt(e.Amount, 10),
		"balance":  strconv.FormatInt(balance, 10),
	}
	return []domain.Notification{
		{
			Kind:        domain.NotificationDeposit,
			Recipient:   ownerID,
			ExternalRef: e.ExternalRef,
			Text: fmt.Sprintf("Deposit received: +%s\nNew balance: %s\nRef: %s",
				formatVND(e.Amount), formatVND(balance), e.ExternalRef),
			Fields: fields,
		},
		{
			Kind:        domain.NotificationDeposit,
			Recipient:   domain.AdminRecipient,
			ExternalRef: e.ExternalRef,
			Text: fmt.Sprintf("[deposit] owner %s +%s (balance %s)\nRef: %s",
				ownerID, formatVND(e.Amount), formatVND(balance), e.ExternalRef),
			Fields: fields,
		},
	}
}

func deliveryNotifications(e *domain.PaymentEvent, unit *domain.InventoryUnit) []domain.Notification {
	fields := map[string]string{
		"plan":    string(unit.Plan),
		"unit_id": unit.ID.String(),
		"amount":  strconv.FormatInt(e.Amount, 10),
	}
	buyer := "anonymous"
	if e.ParsedOwnerRef != nil {
		buyer = *e.ParsedOwnerRef
		fields["owner_id"] = buyer
	}

	out := make([]domain.Notification, 0, 2)
	if e.ParsedOwnerRef != nil {
		out = append(out, domain.Notification{
			Kind:        domain.NotificationDelivery,
			Recipient:   buyer,
			ExternalRef: e.ExternalRef,
			Text: fmt.Sprintf("Payment confirmed for %s (%s).\nYour account:\n%s\nRef: %s",
				strings.ToUpper(string(unit.Plan)), formatVND(e.Amount), unit.Credentials, e.ExternalRef),
			Fields: fields,
		})
	}
	out = append(out, domain.Notification{
		Kind:        domain.NotificationDelivery,
		Recipient:   domain.AdminRecipient,
		ExternalRef: e.ExternalRef,
		Text: fmt.Sprintf("[sale] %s to %s for %s\nUnit: %s\nRef: %s",
			unit.Plan, buyer, formatVND(e.Amount), unit.ID, e.ExternalRef),
		Fields: fields,
	})
	return out
}

func storeCreditNotifications(e *domain.PaymentEvent, ownerID string, balance int64) []domain.Notification {
	fields := map[string]string{
		"owner_id": ownerID,
		"plan":     string(e.ParsedPlan),
		"amount":   strconv.FormatInt(e.Amount, 10),
		"balance":  strconv.FormatInt(balance, 10),
	}
	return []domain.Notification{
		{
			Kind:        domain.NotificationStoreCredit,
			Recipient:   ownerID,
			ExternalRef: e.ExternalRef,
			Text: fmt.Sprintf("%s is out of stock. %s was added to your wallet (balance %s).\nRef: %s",
				strings.ToUpper(string(e.ParsedPlan)), formatVND(e.Amount), formatVND(balance), e.ExternalRef),
			Fields: fields,
		},
		{
			Kind:        domain.NotificationStoreCredit,
			Recipient:   domain.AdminRecipient,
			ExternalRef: e.ExternalRef,
			Text: fmt.Sprintf("[out of stock] %s paid by %s, credited %s to wallet\nRef: %s",
				e.ParsedPlan, ownerID, formatVND(e.Amount), e.ExternalRef),
			Fields: fields,
		},
	}
}

func noStockNotifications(e *domain.PaymentEvent) []domain.Notification {
	return []domain.Notification{{
		Kind:        domain.NotificationNoStock,
		Recipient:   domain.AdminRecipient,
		ExternalRef: e.ExternalRef,
		Text: fmt.Sprintf("[needs review] %s paid %s with no owner code and no stock\nMemo: %s\nRef: %s",
			e.ParsedPlan, formatVND(e.Amount), e.RawMemo, e.ExternalRef),
		Fields: map[string]string{
			"plan":   string(e.ParsedPlan),
			"amount": strconv.FormatInt(e.Amount, 10),
		},
	}}
}

func rejectedNotifications(e *domain.PaymentEvent, reasons []string) []domain.Notification {
	return []domain.Notification{{
		Kind:        domain.NotificationRejected,
		Recipient:   domain.AdminRecipient,
		ExternalRef: e.ExternalRef,
		Text: fmt.Sprintf("[rejected] %s\nMemo: %s\nReasons: %s\nRef: %s",
			formatVND(e.Amount), e.RawMemo, strings.Join(reasons, "; "), e.ExternalRef),
		Fields: map[string]string{
			"amount":  strconv.FormatInt(e.Amount, 10),
			"reasons": strings.Join(reasons, "; "),
		},
	}}
}

func purchaseNotifications(p *domain.Purchase, ownerID string) []domain.Notification {
	ref := ""
	if p.Unit.ExternalRef != nil {
		ref = *p.Unit.ExternalRef
	}
	fields := map[string]string{
		"owner_id": ownerID,
		"plan":     string(p.Unit.Plan),
		"unit_id":  p.Unit.ID.String(),
		"balance":  strconv.FormatInt(p.Change.BalanceAfter, 10),
	}
	return []domain.Notification{{
		Kind:        domain.NotificationDelivery,
		Recipient:   domain.AdminRecipient,
		ExternalRef: ref,
		Text: fmt.Sprintf("[sale] %s to %s from wallet balance\nUnit: %s\nRef: %s",
			p.Unit.Plan, ownerID, p.Unit.ID, ref),
		Fields: fields,
	}}
}

// formatVND renders 1234567 as "1,234,567 VND".
func formatVND(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	s := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String() + " VND"
	}
	return b.String() + " VND"
}
