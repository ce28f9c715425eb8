// Package lifecycle holds the order status machine.
// This is part of the Functional Core - all functions are pure with no I/O.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/artpar/skybite/internal/core/domain"
)

// =============================================================================
// Lifecycle Errors
// =============================================================================

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDroneRequired     = errors.New("drone must be assigned before shipping")
)

// TransitionError names the refused edge.
type TransitionError struct {
	From domain.OrderStatus
	To   domain.OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: %s -> %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// =============================================================================
// Transition Table
// =============================================================================

// baseTransitions are the edges that exist regardless of configuration.
var baseTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderPending:   {domain.OrderConfirmed, domain.OrderRejected, domain.OrderCancelled},
	domain.OrderConfirmed: {domain.OrderShipping},
	domain.OrderShipping:  {domain.OrderCompleted},
	domain.OrderCompleted: {},
	domain.OrderCancelled: {},
	domain.OrderRejected:  {},
}

// Machine applies order transitions. AllowCancelDuringShipping opens the
// shipping -> cancelled edge.
type Machine struct {
	AllowCancelDuringShipping bool
}

// NewMachine creates a machine with the given cancellation policy.
func NewMachine(allowCancelDuringShipping bool) Machine {
	return Machine{AllowCancelDuringShipping: allowCancelDuringShipping}
}

// Next lists the statuses reachable from `from` in one step.
func (m Machine) Next(from domain.OrderStatus) []domain.OrderStatus {
	next := append([]domain.OrderStatus(nil), baseTransitions[from]...)
	if from == domain.OrderShipping && m.AllowCancelDuringShipping {
		next = append(next, domain.OrderCancelled)
	}
	return next
}

// CanTransition reports whether from -> to is an edge.
func (m Machine) CanTransition(from, to domain.OrderStatus) bool {
	for _, s := range m.Next(from) {
		if s == to {
			return true
		}
	}
	return false
}

// Validate returns a TransitionError when from -> to is not an edge.
func (m Machine) Validate(from, to domain.OrderStatus) error {
	if !m.CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// IsCancellable reports whether the order can move to cancelled now.
func (m Machine) IsCancellable(o domain.Order) bool {
	return m.CanTransition(o.Status, domain.OrderCancelled)
}

// Apply moves a copy of the order to `to`. It sets the status and
// updatedAt, and cancelledAt when cancelling. Nothing else changes.
// Entering shipping requires an assigned drone.
func (m Machine) Apply(o domain.Order, to domain.OrderStatus, now time.Time) (domain.Order, error) {
	if err := m.Validate(o.Status, to); err != nil {
		return o, err
	}
	if to == domain.OrderShipping && !o.HasDrone() {
		return o, ErrDroneRequired
	}

	o.Status = to
	o.UpdatedAt = now
	if to == domain.OrderCancelled {
		cancelledAt := now
		o.CancelledAt = &cancelledAt
	}
	return o, nil
}

// =============================================================================
// Review Prompt
// =============================================================================

// NeedsReviewPrompt reports whether a completed order has not yet asked its
// customer for a review.
func NeedsReviewPrompt(o domain.Order) bool {
	return o.Status == domain.OrderCompleted && o.ReviewRequestedAt == nil
}

// MarkReviewRequested stamps the review prompt on a copy of the order.
func MarkReviewRequested(o domain.Order, now time.Time) domain.Order {
	if o.ReviewRequestedAt == nil {
		at := now
		o.ReviewRequestedAt = &at
	}
	return o
}
