// Package domain defines core domain types for skybite.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Order Events
// =============================================================================

// EventType names an order event on the outbound stream.
type EventType string

const (
	// EventOrderPlaced is recorded when checkout creates an order.
	EventOrderPlaced EventType = "order.placed"

	// EventOrderStatusChanged is recorded on every lifecycle transition.
	EventOrderStatusChanged EventType = "order.status_changed"

	// EventOrderDroneAssigned is recorded when a drone takes an order.
	EventOrderDroneAssigned EventType = "order.drone_assigned"

	// EventOrderReviewRequested is recorded once, when an order first completes.
	EventOrderReviewRequested EventType = "order.review_requested"
)

// OrderEvent is an outbox entry. Events are written in the same transaction
// as the state change they describe and relayed to the broker later.
type OrderEvent struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	Type        EventType       `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
}

// NewOrderEvent creates an unpublished event with payload encoded as JSON.
// IDs are UUIDv7, so events created in the same second still sort in
// creation order.
func NewOrderEvent(orderID string, eventType EventType, payload any, now time.Time) (OrderEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return OrderEvent{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return OrderEvent{}, err
	}
	return OrderEvent{
		ID:        "evt_" + id.String(),
		OrderID:   orderID,
		Type:      eventType,
		Payload:   raw,
		CreatedAt: now,
	}, nil
}

// IsPublished reports whether the relay has delivered the event.
func (e OrderEvent) IsPublished() bool {
	return e.PublishedAt != nil
}

// StatusChange is the payload of EventOrderStatusChanged.
type StatusChange struct {
	From  OrderStatus `json:"from"`
	To    OrderStatus `json:"to"`
	Actor string      `json:"actor,omitempty"`
}
