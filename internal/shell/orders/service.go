// Package orders drives placed orders through their lifecycle.
// This is part of the Imperative Shell - it persists what the pure
// lifecycle machine decides.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/artpar/skybite/internal/core/auth"
	"github.com/artpar/skybite/internal/core/domain"
	"github.com/artpar/skybite/internal/core/lifecycle"
	"github.com/artpar/skybite/internal/shell/store"
	"github.com/skip2/go-qrcode"
)

// DefaultQRSize is the edge length in pixels of hand-off QR codes.
const DefaultQRSize = 256

// Service provides order lifecycle operations.
type Service struct {
	store   store.Store
	machine lifecycle.Machine
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates an order service using the given transition policy.
func NewService(s store.Store, machine lifecycle.Machine, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   s,
		machine: machine,
		logger:  logger.With("component", "orders"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Machine returns the transition policy in use.
func (s *Service) Machine() lifecycle.Machine {
	return s.machine
}

// =============================================================================
// Queries
// =============================================================================

// Get loads an order the caller may view. Orders the caller cannot see are
// reported as not found.
func (s *Service) Get(ctx context.Context, actor auth.Context, id string) (*domain.Order, error) {
	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanViewOrder(actor, *order) {
		return nil, store.NewStoreError("GetOrder", "order", id, "order not found", store.ErrNotFound)
	}
	return order, nil
}

// ListFilter narrows an order listing.
type ListFilter struct {
	Status       domain.OrderStatus
	RestaurantID string
	store.ListOptions
}

// List returns the orders visible to the caller, newest first.
func (s *Service) List(ctx context.Context, actor auth.Context, filter ListFilter) ([]domain.Order, error) {
	customerID, restaurantID, ok := auth.ScopeOrderList(actor, filter.RestaurantID)
	if !ok {
		return nil, auth.ErrForbidden
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.NewValidationError("status", "unknown order status")
	}
	return s.store.ListOrders(ctx, store.OrderFilter{
		CustomerID:   customerID,
		RestaurantID: restaurantID,
		Status:       filter.Status,
		ListOptions:  filter.ListOptions,
	})
}

// Events returns the order's event history.
func (s *Service) Events(ctx context.Context, actor auth.Context, id string) ([]domain.OrderEvent, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.store.ListOrderEvents(ctx, id)
}

// HandoffQR renders the pickup QR code for an order as PNG.
func (s *Service) HandoffQR(ctx context.Context, actor auth.Context, id string, size int) ([]byte, error) {
	order, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = DefaultQRSize
	}
	png, err := qrcode.Encode(order.HandoffToken(), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode hand-off code: %w", err)
	}
	return png, nil
}

// =============================================================================
// Transitions
// =============================================================================

// Transition moves an order to `to` on behalf of actor. The status write is a
// compare-and-set against the status the order was read with, so of two
// concurrent transitions only one wins; the other gets store.ErrConflict.
func (s *Service) Transition(ctx context.Context, actor auth.Context, id string, to domain.OrderStatus) (*domain.Order, error) {
	if !to.Valid() {
		return nil, domain.NewValidationError("status", "unknown order status")
	}

	order, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if ok, reason := auth.CanTransitionOrder(actor, *order, to); !ok {
		return nil, fmt.Errorf("%w: %s", auth.ErrForbidden, reason)
	}

	now := s.now()
	next, err := s.machine.Apply(*order, to, now)
	if err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(tx store.Store) error {
		return Persist(ctx, tx, *order, &next, actor.UserID, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order transitioned",
		"order_id", next.ID,
		"from", order.Status,
		"to", next.Status,
		"actor", actor.UserID,
	)
	return &next, nil
}

// Persist writes an applied transition inside tx: the CAS status write, the
// status_changed event, the one-time review prompt, and the drone release
// when the order leaves shipping. next may gain a review timestamp.
func Persist(ctx context.Context, tx store.Store, prev domain.Order, next *domain.Order, actor string, now time.Time) error {
	review := lifecycle.NeedsReviewPrompt(*next)
	if review {
		*next = lifecycle.MarkReviewRequested(*next, now)
	}

	if err := tx.UpdateOrderStatus(ctx, next, prev.Status); err != nil {
		return err
	}

	if err := appendEvent(ctx, tx, next.ID, domain.EventOrderStatusChanged, domain.StatusChange{
		From:  prev.Status,
		To:    next.Status,
		Actor: actor,
	}, now); err != nil {
		return err
	}

	if review {
		payload := map[string]string{"customer_id": next.CustomerID, "restaurant_id": next.RestaurantID}
		if err := appendEvent(ctx, tx, next.ID, domain.EventOrderReviewRequested, payload, now); err != nil {
			return err
		}
	}

	if prev.Status == domain.OrderShipping && next.HasDrone() {
		return releaseDrone(ctx, tx, next.AssignedDroneID, now)
	}
	return nil
}

func appendEvent(ctx context.Context, tx store.Store, orderID string, typ domain.EventType, payload any, now time.Time) error {
	event, err := domain.NewOrderEvent(orderID, typ, payload, now)
	if err != nil {
		return err
	}
	return tx.CreateOrderEvent(ctx, &event)
}

// releaseDrone returns a busy drone to the available pool. Drones that have
// since reported another status keep it.
func releaseDrone(ctx context.Context, tx store.Store, droneID string, now time.Time) error {
	drone, err := tx.GetDrone(ctx, droneID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if drone.Status != domain.DroneBusy {
		return nil
	}
	drone.Status = domain.DroneAvailable
	drone.UpdatedAt = now
	return tx.UpdateDrone(ctx, drone)
}

// Confirm accepts a pending order.
func (s *Service) Confirm(ctx context.Context, actor auth.Context, id string) (*domain.Order, error) {
	return s.Transition(ctx, actor, id, domain.OrderConfirmed)
}

// Reject declines a pending order.
func (s *Service) Reject(ctx context.Context, actor auth.Context, id string) (*domain.Order, error) {
	return s.Transition(ctx, actor, id, domain.OrderRejected)
}

// Cancel withdraws an order.
func (s *Service) Cancel(ctx context.Context, actor auth.Context, id string) (*domain.Order, error) {
	return s.Transition(ctx, actor, id, domain.OrderCancelled)
}

// Complete marks a delivered order.
func (s *Service) Complete(ctx context.Context, actor auth.Context, id string) (*domain.Order, error) {
	return s.Transition(ctx, actor, id, domain.OrderCompleted)
}
