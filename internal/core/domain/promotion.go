package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Promotion Scope
// =============================================================================

// ScopeKind says where a promotion can be redeemed.
type ScopeKind string

const (
	ScopeGlobal     ScopeKind = "global"
	ScopeRestaurant ScopeKind = "restaurant"
)

// PromotionScope is either global or bound to one restaurant.
type PromotionScope struct {
	Kind         ScopeKind `json:"kind" yaml:"kind"`
	RestaurantID string    `json:"restaurant_id,omitempty" yaml:"restaurant_id"`
}

// GlobalScope returns a scope valid at every restaurant.
func GlobalScope() PromotionScope {
	return PromotionScope{Kind: ScopeGlobal}
}

// RestaurantScope returns a scope valid only at restaurantID.
func RestaurantScope(restaurantID string) PromotionScope {
	return PromotionScope{Kind: ScopeRestaurant, RestaurantID: restaurantID}
}

// Covers reports whether an order at restaurantID is in scope.
func (s PromotionScope) Covers(restaurantID string) bool {
	switch s.Kind {
	case ScopeGlobal:
		return true
	case ScopeRestaurant:
		return s.RestaurantID != "" && s.RestaurantID == restaurantID
	default:
		return false
	}
}

// =============================================================================
// Promotion
// =============================================================================

// Promotion is a percentage discount redeemable with a code.
type Promotion struct {
	ID                 string          `json:"id"`
	Code               string          `json:"code"`
	Description        string          `json:"description,omitempty"`
	DiscountPercentage int             `json:"discount_percentage"`
	MinOrderSubtotal   decimal.Decimal `json:"min_order_subtotal"`
	ExpiryDate         time.Time       `json:"expiry_date"`
	UsageLimit         int             `json:"usage_limit"`
	UsageCount         int             `json:"usage_count"`
	IsEnabled          bool            `json:"is_enabled"`
	Scope              PromotionScope  `json:"scope"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// NormalizeCode canonicalizes a promotion code for lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NewPromotion creates an enabled promotion with zero usage.
func NewPromotion(code string, percentage int, minSubtotal decimal.Decimal, expiry time.Time, usageLimit int, scope PromotionScope) (*Promotion, error) {
	now := time.Now().UTC()
	p := &Promotion{
		ID:                 uuid.New().String(),
		Code:               NormalizeCode(code),
		DiscountPercentage: percentage,
		MinOrderSubtotal:   minSubtotal,
		ExpiryDate:         expiry.UTC(),
		UsageLimit:         usageLimit,
		IsEnabled:          true,
		Scope:              scope,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the promotion's field invariants.
func (p Promotion) Validate() error {
	if p.Code == "" {
		return NewValidationError("code", "code is required")
	}
	if p.DiscountPercentage < 1 || p.DiscountPercentage > 100 {
		return NewValidationError("discount_percentage", "discount_percentage must be between 1 and 100")
	}
	if p.MinOrderSubtotal.IsNegative() {
		return NewValidationError("min_order_subtotal", "min_order_subtotal must not be negative")
	}
	if p.ExpiryDate.IsZero() {
		return NewValidationError("expiry_date", "expiry_date is required")
	}
	if p.UsageLimit < 1 {
		return NewValidationError("usage_limit", "usage_limit must be positive")
	}
	if p.UsageCount < 0 {
		return NewValidationError("usage_count", "usage_count must not be negative")
	}
	switch p.Scope.Kind {
	case ScopeGlobal:
	case ScopeRestaurant:
		if p.Scope.RestaurantID == "" {
			return NewValidationError("scope.restaurant_id", "restaurant scope needs a restaurant_id")
		}
	default:
		return NewValidationError("scope.kind", "scope must be global or restaurant")
	}
	return nil
}

// RemainingUses returns how many redemptions are left.
func (p Promotion) RemainingUses() int {
	if p.UsageCount >= p.UsageLimit {
		return 0
	}
	return p.UsageLimit - p.UsageCount
}
