package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"vending-gateway/internal/core/domain"

	"github.com/rs/zerolog"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// TelegramConfig holds the Bot API settings.
type TelegramConfig struct {
	BotToken    string
	AdminChatID string
	APIBase     string
}

// TelegramNotifier sends notifications through the Telegram Bot API.
// Owner refs are Telegram chat ids; domain.AdminRecipient maps to AdminChatID.
type TelegramNotifier struct {
	cfg        TelegramConfig
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewTelegramNotifier creates a Telegram notifier.
func NewTelegramNotifier(cfg TelegramConfig, httpClient HTTPClient, log zerolog.Logger) (*TelegramNotifier, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram: bot_token is required")
	}
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.telegram.org"
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	return &TelegramNotifier{cfg: cfg, httpClient: httpClient, log: log}, nil
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notify posts msg.Text to the recipient chat.
func (n *TelegramNotifier) Notify(ctx context.Context, msg domain.Notification) error {
	chatID := msg.Recipient
	if chatID == domain.AdminRecipient {
		chatID = n.cfg.AdminChatID
	}
	if chatID == "" {
		n.log.Debug().Str("kind", string(msg.Kind)).Msg("telegram: no admin chat configured, skipping")
		return nil
	}

	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: msg.Text})
	if err != nil {
		return fmt.Errorf("telegram: marshal: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.cfg.APIBase, n.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		// the request URL embeds the bot token
		return fmt.Errorf("telegram: send to chat %s failed", chatID)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var out sendMessageResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !out.OK {
		return fmt.Errorf("telegram: status %d: %s", resp.StatusCode, out.Description)
	}
	return nil
}

// Name returns the notifier name.
func (n *TelegramNotifier) Name() string {
	return "telegram"
}
