package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Order Status
// =============================================================================

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipping  OrderStatus = "shipping"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
	OrderRejected  OrderStatus = "rejected"
)

// AllOrderStatuses lists every status in lifecycle order.
var AllOrderStatuses = []OrderStatus{
	OrderPending, OrderConfirmed, OrderShipping, OrderCompleted, OrderCancelled, OrderRejected,
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	for _, known := range AllOrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderCompleted || s == OrderCancelled || s == OrderRejected
}

// =============================================================================
// Payment
// =============================================================================

// PaymentMethod is how the customer pays. Settlement happens elsewhere.
type PaymentMethod string

const (
	PaymentCash    PaymentMethod = "cash"
	PaymentCard    PaymentMethod = "card"
	PaymentEWallet PaymentMethod = "e_wallet"
)

// Valid reports whether m is a supported method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentEWallet:
		return true
	}
	return false
}

// =============================================================================
// Order
// =============================================================================

// DeliveryAddress is the drop-off point captured at checkout.
type DeliveryAddress struct {
	Label    string   `json:"label,omitempty"`
	Line     string   `json:"line"`
	Location GeoPoint `json:"location"`
}

// Order is a placed cart with frozen prices.
type Order struct {
	ID                string          `json:"id"`
	CustomerID        string          `json:"customer_id"`
	RestaurantID      string          `json:"restaurant_id"`
	Items             []CartItem      `json:"items"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	ServiceFee        decimal.Decimal `json:"service_fee"`
	DeliveryFee       decimal.Decimal `json:"delivery_fee"`
	Discount          decimal.Decimal `json:"discount"`
	Total             decimal.Decimal `json:"total"`
	PromotionCode     string          `json:"promotion_code,omitempty"`
	PaymentMethod     PaymentMethod   `json:"payment_method"`
	Address           DeliveryAddress `json:"address"`
	Note              string          `json:"note,omitempty"`
	Status            OrderStatus     `json:"status"`
	AssignedDroneID   string          `json:"assigned_drone_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	CancelledAt       *time.Time      `json:"cancelled_at,omitempty"`
	ReviewRequestedAt *time.Time      `json:"review_requested_at,omitempty"`
}

// NewOrder creates a pending order for the customer's cart. Amounts are
// filled in by the caller from a price quote.
func NewOrder(cart Cart, method PaymentMethod, address DeliveryAddress, now time.Time) (*Order, error) {
	if cart.IsEmpty() {
		return nil, ErrCartEmpty
	}
	if !method.Valid() {
		return nil, NewValidationError("payment_method", "payment_method must be cash, card or e_wallet")
	}
	if address.Line == "" {
		return nil, NewValidationError("address.line", "address line is required")
	}

	items := make([]CartItem, len(cart.Items))
	copy(items, cart.Items)

	return &Order{
		ID:            uuid.New().String(),
		CustomerID:    cart.CustomerID,
		RestaurantID:  cart.RestaurantID,
		Items:         items,
		PaymentMethod: method,
		Address:       address,
		Status:        OrderPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// HasDrone reports whether a drone has been assigned.
func (o Order) HasDrone() bool {
	return o.AssignedDroneID != ""
}

// HandoffToken is the payload encoded in the pickup QR code.
func (o Order) HandoffToken() string {
	return "skybite:order:" + o.ID
}
