package store

import (
	"context"
	"time"

	"github.com/artpar/skybite/internal/core/domain"
	"github.com/jmoiron/sqlx"
)

// =============================================================================
// Order Event Outbox
// =============================================================================

const eventColumns = `id, order_id, type, payload, created_at, published_at`

type eventRow struct {
	ID          string  `db:"id"`
	OrderID     string  `db:"order_id"`
	Type        string  `db:"type"`
	Payload     string  `db:"payload"`
	CreatedAt   string  `db:"created_at"`
	PublishedAt *string `db:"published_at"`
}

func (s *SQLStore) CreateOrderEvent(ctx context.Context, event *domain.OrderEvent) error {
	query := `
		INSERT INTO order_events (id, order_id, type, payload, created_at, published_at)
		VALUES (:id, :order_id, :type, :payload, :created_at, :published_at)`

	payload := string(event.Payload)
	if payload == "" {
		payload = "{}"
	}
	row := map[string]any{
		"id":           event.ID,
		"order_id":     event.OrderID,
		"type":         string(event.Type),
		"payload":      payload,
		"created_at":   formatTime(event.CreatedAt),
		"published_at": formatTimePtr(event.PublishedAt),
	}

	if _, err := s.exec.NamedExecContext(ctx, query, row); err != nil {
		if isUniqueViolation(err, "order_events", "id") {
			return NewStoreError("CreateOrderEvent", "order_event", event.ID, "event with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateOrderEvent", "order_event", event.ID, err.Error(), err)
	}
	return nil
}

// GetUnpublishedEvents returns the oldest events not yet relayed.
func (s *SQLStore) GetUnpublishedEvents(ctx context.Context, limit int) ([]domain.OrderEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := s.exec.Rebind(`SELECT ` + eventColumns + ` FROM order_events
		WHERE published_at IS NULL ORDER BY created_at, id LIMIT ?`)

	var rows []eventRow
	if err := s.exec.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, NewStoreError("GetUnpublishedEvents", "order_event", "", err.Error(), err)
	}
	return rowsToEvents(rows), nil
}

// MarkEventsPublished stamps published_at on the given events.
func (s *SQLStore) MarkEventsPublished(ctx context.Context, ids []string, publishedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(`UPDATE order_events SET published_at = ? WHERE id IN (?)`, formatTime(publishedAt), ids)
	if err != nil {
		return NewStoreError("MarkEventsPublished", "order_event", "", err.Error(), err)
	}
	if _, err := s.exec.ExecContext(ctx, s.exec.Rebind(query), args...); err != nil {
		return NewStoreError("MarkEventsPublished", "order_event", "", err.Error(), err)
	}
	return nil
}

// ListOrderEvents returns an order's history, oldest first.
func (s *SQLStore) ListOrderEvents(ctx context.Context, orderID string) ([]domain.OrderEvent, error) {
	query := s.exec.Rebind(`SELECT ` + eventColumns + ` FROM order_events
		WHERE order_id = ? ORDER BY created_at, id`)

	var rows []eventRow
	if err := s.exec.SelectContext(ctx, &rows, query, orderID); err != nil {
		return nil, NewStoreError("ListOrderEvents", "order_event", "", err.Error(), err)
	}
	return rowsToEvents(rows), nil
}

func rowsToEvents(rows []eventRow) []domain.OrderEvent {
	events := make([]domain.OrderEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, domain.OrderEvent{
			ID:          row.ID,
			OrderID:     row.OrderID,
			Type:        domain.EventType(row.Type),
			Payload:     []byte(row.Payload),
			CreatedAt:   parseTime(row.CreatedAt),
			PublishedAt: parseTimePtr(row.PublishedAt),
		})
	}
	return events
}
