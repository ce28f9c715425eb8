// Package events delivers order events from the outbox to a message broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/artpar/skybite/internal/core/domain"
)

// =============================================================================
// Publisher Interface
// =============================================================================

// Publisher sends a batch of events to the outbound stream. A returned error
// means the batch may be partly delivered; callers retry the whole batch and
// consumers dedupe by event ID.
type Publisher interface {
	Publish(ctx context.Context, events []domain.OrderEvent) error
	Close() error
}

// Driver names accepted by New.
const (
	DriverLog   = "log"
	DriverKafka = "kafka"
	DriverNATS  = "nats"
	DriverAMQP  = "amqp"
)

// Config selects and configures a publisher.
type Config struct {
	Driver string

	// Kafka
	Brokers []string
	Topic   string

	// NATS and AMQP
	URL string

	// NATS subject prefix; the event type is appended.
	Subject string

	// AMQP topic exchange; the event type is the routing key.
	Exchange string
}

// New builds the publisher named by cfg.Driver.
func New(cfg Config, logger *slog.Logger) (Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch strings.ToLower(cfg.Driver) {
	case "", DriverLog:
		return NewLogPublisher(logger), nil
	case DriverKafka:
		if len(cfg.Brokers) == 0 {
			return nil, fmt.Errorf("events.brokers is required for kafka")
		}
		return NewKafkaPublisher(cfg.Brokers, cfg.Topic), nil
	case DriverNATS:
		return NewNATSPublisher(cfg.URL, cfg.Subject)
	case DriverAMQP:
		return NewAMQPPublisher(cfg.URL, cfg.Exchange)
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}

// =============================================================================
// Envelope
// =============================================================================

// Envelope is the wire format of every event, whatever the broker.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OrderID    string          `json:"order_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Encode renders an event as its JSON envelope.
func Encode(e domain.OrderEvent) ([]byte, error) {
	payload := e.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	return json.Marshal(Envelope{
		ID:         e.ID,
		Type:       string(e.Type),
		OrderID:    e.OrderID,
		OccurredAt: e.CreatedAt.UTC(),
		Payload:    payload,
	})
}

// =============================================================================
// Log Publisher
// =============================================================================

// LogPublisher writes events to the structured log. It is the default when
// no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a publisher that only logs.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With("component", "events")}
}

func (p *LogPublisher) Publish(ctx context.Context, events []domain.OrderEvent) error {
	for _, e := range events {
		p.logger.Info("order event",
			"event_id", e.ID,
			"type", e.Type,
			"order_id", e.OrderID,
			"payload", string(e.Payload),
		)
	}
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
