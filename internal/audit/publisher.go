// Package audit emits promotion decisions to Kafka so downstream consumers
// (deploy tooling, dashboards) can react without polling the registry.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/churnlab/modelregistry/internal/models"
)

// PublisherConfig configures the Kafka promotion-event publisher.
type PublisherConfig struct {
	// Brokers is the list of Kafka broker addresses (host:port).
	Brokers []string

	// Topic receives promotion events.
	Topic string

	// MaxAttempts is how many times a publish is retried on transient error.
	// Defaults to 3 if <= 0.
	MaxAttempts int

	// WriteTimeout is the per-attempt timeout. Defaults to 10s if zero.
	WriteTimeout time.Duration
}

// PromotionEvent is the envelope written to Kafka for each applied promotion.
type PromotionEvent struct {
	ID        string               `json:"id"`
	EventType string               `json:"eventType"`
	Entry     models.RegistryEntry `json:"entry"`
	Alias     string               `json:"alias"`
	Ts        time.Time            `json:"ts"`
}

// Publisher wraps a kafka-go Writer with publish-with-retries behavior.
// Events are keyed by candidate name so promotions of the same model family
// stay ordered within a partition.
type Publisher struct {
	writer      *kafka.Writer
	maxAttempts int
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		Async:        false,
	})
	return &Publisher{writer: w, maxAttempts: cfg.MaxAttempts}, nil
}

// PublishPromotion writes one promotion.applied event, retrying with capped
// exponential backoff on transient failure.
func (p *Publisher) PublishPromotion(ctx context.Context, entry models.RegistryEntry, alias string) error {
	ev := PromotionEvent{
		ID:        uuid.New().String(),
		EventType: "promotion.applied",
		Entry:     entry,
		Alias:     alias,
		Ts:        time.Now().UTC(),
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal promotion event: %w", err)
	}

	var lastErr error
	backoff := 100 * time.Millisecond
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		msg := kafka.Message{
			Key:   []byte(entry.Name),
			Value: value,
			Time:  ev.Ts,
		}
		ctxAttempt, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.writer.WriteMessages(ctxAttempt, msg)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(backoff)
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
	return fmt.Errorf("publish failed after %d attempts: %w", p.maxAttempts, lastErr)
}

// Close shuts down the underlying writer.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
