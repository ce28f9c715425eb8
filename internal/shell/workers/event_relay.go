// Package workers contains background workers for skybite.
package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/artpar/skybite/internal/core/domain"
	"github.com/artpar/skybite/internal/shell/events"
)

// =============================================================================
// Outbox Relay
// =============================================================================

// Outbox is the part of the store the relay reads and acknowledges.
type Outbox interface {
	GetUnpublishedEvents(ctx context.Context, limit int) ([]domain.OrderEvent, error)
	MarkEventsPublished(ctx context.Context, ids []string, publishedAt time.Time) error
}

// EventRelayConfig holds configuration for the outbox relay.
type EventRelayConfig struct {
	Outbox    Outbox
	Publisher events.Publisher
	Interval  time.Duration
	BatchSize int
	Logger    *slog.Logger
}

// EventRelay drains unpublished order events to the broker in the
// background. A batch is marked published only after the publisher accepts
// it, so a crash in between re-sends the batch.
type EventRelay struct {
	outbox    Outbox
	publisher events.Publisher
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewEventRelay creates a new outbox relay.
func NewEventRelay(cfg EventRelayConfig) *EventRelay {
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &EventRelay{
		outbox:    cfg.Outbox,
		publisher: cfg.Publisher,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		logger:    cfg.Logger.With("component", "event_relay"),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs the relay loop until Stop is called or ctx is cancelled.
func (r *EventRelay) Start(ctx context.Context) {
	r.logger.Info("starting event relay",
		"interval", r.interval,
		"batch_size", r.batchSize,
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer close(r.doneCh)

	r.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("event relay stopped due to context cancellation")
			return
		case <-r.stopCh:
			r.logger.Info("event relay stopped")
			return
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

// Stop signals the relay to stop and waits for it to finish.
func (r *EventRelay) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

// RelayNow runs one relay cycle and reports how many events were published.
func (r *EventRelay) RelayNow(ctx context.Context) int {
	return r.drain(ctx)
}

// drain relays full batches until the outbox is empty or a batch fails.
func (r *EventRelay) drain(ctx context.Context) int {
	total := 0
	for {
		n, ok := r.relayBatch(ctx)
		total += n
		if !ok || n < r.batchSize || ctx.Err() != nil {
			return total
		}
	}
}

func (r *EventRelay) relayBatch(ctx context.Context) (int, bool) {
	pending, err := r.outbox.GetUnpublishedEvents(ctx, r.batchSize)
	if err != nil {
		r.logger.Error("failed to get unpublished events", "error", err)
		return 0, false
	}

	if len(pending) == 0 {
		return 0, true
	}

	if err := r.publisher.Publish(ctx, pending); err != nil {
		r.logger.Error("failed to publish order events",
			"error", err,
			"count", len(pending),
		)
		return 0, false
	}

	ids := make([]string, len(pending))
	for i, e := range pending {
		ids[i] = e.ID
	}

	if err := r.outbox.MarkEventsPublished(ctx, ids, time.Now().UTC()); err != nil {
		r.logger.Error("failed to mark events as published",
			"error", err,
			"count", len(ids),
		)
		return 0, false
	}

	r.logger.Debug("published order events", "count", len(pending))
	return len(pending), true
}
