package events

import (
	"context"
	"fmt"

	"github.com/artpar/skybite/internal/core/domain"
	"github.com/nats-io/nats.go"
)

// DefaultSubject prefixes NATS subjects when none is configured.
const DefaultSubject = "skybite"

type natsConn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSPublisher publishes each event on <prefix>.<event type>, e.g.
// skybite.order.placed.
type NATSPublisher struct {
	conn   natsConn
	prefix string
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	conn, err := nats.Connect(url, nats.Name("skybite"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return newNATSPublisher(conn, subject), nil
}

func newNATSPublisher(conn natsConn, subject string) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{conn: conn, prefix: subject}
}

func (p *NATSPublisher) Publish(ctx context.Context, events []domain.OrderEvent) error {
	for _, e := range events {
		data, err := Encode(e)
		if err != nil {
			return err
		}
		if err := p.conn.Publish(p.prefix+"."+string(e.Type), data); err != nil {
			return domain.NewExternalServiceError("nats", err)
		}
	}
	// Publish only buffers; the flush confirms the server has the batch.
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return domain.NewExternalServiceError("nats", err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}
