package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vending-gateway/internal/core/domain"

	"github.com/IBM/sarama"
)

// Event is the message published for each notification. Text is left out
// because delivery messages carry credentials.
type Event struct {
	Kind        domain.NotificationKind `json:"kind"`
	Recipient   string                  `json:"recipient"`
	ExternalRef string                  `json:"external_ref"`
	Fields      map[string]string       `json:"fields,omitempty"`
	OccurredAt  time.Time               `json:"occurred_at"`
}

// KafkaNotifier publishes notifications as events to a Kafka topic,
// keyed by external ref so events for one payment stay ordered.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
	now      func() time.Time
}

// NewKafkaProducer creates a sync producer that waits for all replicas.
func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka: create producer: %w", err)
	}
	return producer, nil
}

// NewKafkaNotifier creates a Kafka notifier on an existing producer.
func NewKafkaNotifier(producer sarama.SyncProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic, now: time.Now}
}

// Notify publishes one event.
func (n *KafkaNotifier) Notify(_ context.Context, msg domain.Notification) error {
	value, err := json.Marshal(Event{
		Kind:        msg.Kind,
		Recipient:   msg.Recipient,
		ExternalRef: msg.ExternalRef,
		Fields:      msg.Fields,
		OccurredAt:  n.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("kafka: marshal event: %w", err)
	}

	_, _, err = n.producer.SendMessage(&sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(msg.ExternalRef),
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		return fmt.Errorf("kafka: send to %s: %w", n.topic, err)
	}
	return nil
}

// Name returns the notifier name.
func (n *KafkaNotifier) Name() string {
	return "kafka"
}

// Close closes the underlying producer.
func (n *KafkaNotifier) Close() error {
	return n.producer.Close()
}
