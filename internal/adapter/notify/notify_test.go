package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vending-gateway/internal/core/domain"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deliveryNotification(recipient string) domain.Notification {
	return domain.Notification{
		Kind:        domain.NotificationDelivery,
		Recipient:   recipient,
		ExternalRef: "TX-9",
		Text:        "Your account: user@example.com / hunter2",
		Fields:      map[string]string{"plan": "plus", "amount": "50000"},
	}
}

func TestLogNotifier_OmitsText(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(zerolog.New(&buf))

	require.NoError(t, n.Notify(context.Background(), deliveryNotification("42")))

	out := buf.String()
	assert.Contains(t, out, `"external_ref":"TX-9"`)
	assert.Contains(t, out, `"plan":"plus"`)
	assert.NotContains(t, out, "hunter2")
	assert.Equal(t, "log", n.Name())
}

type telegramCall struct {
	path string
	body sendMessageRequest
}

func newTelegramServer(t *testing.T, status int, reply string, calls *[]telegramCall) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body sendMessageRequest
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		*calls = append(*calls, telegramCall{path: r.URL.Path, body: body})
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTelegramNotifier_SendsToOwnerAndAdmin(t *testing.T) {
	var calls []telegramCall
	srv := newTelegramServer(t, http.StatusOK, `{"ok":true}`, &calls)

	n, err := NewTelegramNotifier(TelegramConfig{BotToken: "123:abc", AdminChatID: "999", APIBase: srv.URL + "/"}, srv.Client(), zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, n.Notify(context.Background(), deliveryNotification("42")))
	require.NoError(t, n.Notify(context.Background(), deliveryNotification(domain.AdminRecipient)))

	require.Len(t, calls, 2)
	assert.Equal(t, "/bot123:abc/sendMessage", calls[0].path)
	assert.Equal(t, "42", calls[0].body.ChatID)
	assert.Contains(t, calls[0].body.Text, "hunter2")
	assert.Equal(t, "999", calls[1].body.ChatID)
}

func TestTelegramNotifier_SkipsAdminWithoutChat(t *testing.T) {
	var calls []telegramCall
	srv := newTelegramServer(t, http.StatusOK, `{"ok":true}`, &calls)

	n, err := NewTelegramNotifier(TelegramConfig{BotToken: "123:abc", APIBase: srv.URL}, srv.Client(), zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, n.Notify(context.Background(), deliveryNotification(domain.AdminRecipient)))
	assert.Empty(t, calls)
}

func TestTelegramNotifier_Errors(t *testing.T) {
	var calls []telegramCall
	srv := newTelegramServer(t, http.StatusBadRequest, `{"ok":false,"description":"Bad Request: chat not found"}`, &calls)

	n, err := NewTelegramNotifier(TelegramConfig{BotToken: "123:abc", APIBase: srv.URL}, srv.Client(), zerolog.Nop())
	require.NoError(t, err)

	err = n.Notify(context.Background(), deliveryNotification("42"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")

	_, err = NewTelegramNotifier(TelegramConfig{}, srv.Client(), zerolog.Nop())
	assert.Error(t, err)
}

type failingClient struct{}

func (failingClient) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New(`Post "https://api.telegram.org/bot123:abc/sendMessage": dial tcp: timeout`)
}

func TestTelegramNotifier_TransportErrorHidesToken(t *testing.T) {
	n, err := NewTelegramNotifier(TelegramConfig{BotToken: "123:abc"}, failingClient{}, zerolog.Nop())
	require.NoError(t, err)

	err = n.Notify(context.Background(), deliveryNotification("42"))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "123:abc")
}

func TestKafkaNotifier_PublishesEventWithoutText(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev Event
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.Kind != domain.NotificationDelivery || ev.ExternalRef != "TX-9" || ev.Fields["plan"] != "plus" {
			return fmt.Errorf("unexpected event %+v", ev)
		}
		if bytes.Contains(val, []byte("hunter2")) {
			return errors.New("credentials leaked into event")
		}
		return nil
	})

	n := NewKafkaNotifier(producer, "vending.events")
	n.now = func() time.Time { return time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC) }

	require.NoError(t, n.Notify(context.Background(), deliveryNotification("42")))
	assert.Equal(t, "kafka", n.Name())
	require.NoError(t, n.Close())
}

func TestKafkaNotifier_SendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	n := NewKafkaNotifier(producer, "vending.events")
	err := n.Notify(context.Background(), deliveryNotification("42"))
	require.Error(t, err)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, n.Close())
}
