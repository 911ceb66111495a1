// Package events publishes domain events (wallet ledger appends, webhook
// outcomes, payout dispatches) to Kafka for downstream consumers. Publishing
// is best-effort and optional: with no brokers configured every publish is a
// no-op.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/voxelpay/payments/internal/config"
)

// Event names published on the payments topic
const (
	EventWalletCredited   = "wallet.credited"
	EventWalletDebited    = "wallet.debited"
	EventOrderCompleted   = "order.completed"
	EventPayoutDispatched = "payout.dispatched"
	EventWebhookProcessed = "webhook.processed"
)

// Event is the envelope written to Kafka.
type Event struct {
	OccurredAt time.Time      `json:"occurred_at"`
	Name       string         `json:"name"`
	Payload    map[string]any `json:"payload"`
}

// Publisher emits domain events.
type Publisher interface {
	Publish(name string, payload map[string]any)
}

// KafkaPublisher writes events to a single topic with a sarama SyncProducer.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	logger   *slog.Logger
	topic    string
}

// NewKafkaPublisher connects a SyncProducer to the configured brokers.
func NewKafkaPublisher(cfg *config.KafkaConfig, logger *slog.Logger) (*KafkaPublisher, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &KafkaPublisher{
		producer: producer,
		logger:   logger,
		topic:    cfg.Topic,
	}, nil
}

// Publish sends the event. Failures are logged, never propagated: event
// delivery must not fail the payment flow that produced it.
func (p *KafkaPublisher) Publish(name string, payload map[string]any) {
	event := Event{
		OccurredAt: time.Now().UTC(),
		Name:       name,
		Payload:    payload,
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to encode event", "event", name, "error", err)
		return
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(name),
		Value: sarama.ByteEncoder(body),
	})
	if err != nil {
		p.logger.Error("failed to publish event", "event", name, "error", err)
	}
}

// Close shuts down the underlying producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NopPublisher discards all events. Used when Kafka is not configured.
type NopPublisher struct{}

// Publish discards the event.
func (NopPublisher) Publish(string, map[string]any) {}

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = NopPublisher{}
)
