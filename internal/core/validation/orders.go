package validation

import (
	"fmt"
	"unicode/utf8"

	"github.com/artpar/skybite/internal/core/domain"
)

// MaxNoteLength bounds the free-text note a customer can attach to an order.
const MaxNoteLength = 500

// MaxLineQuantity bounds a single cart line.
const MaxLineQuantity = 99

// =============================================================================
// Checkout Validation Functions
// =============================================================================

// ValidateCheckoutFields validates required fields for checkout.
// Returns the field name and error message if validation fails.
// Returns empty strings if all fields are valid.
//
// Example:
//
//	field, msg := ValidateCheckoutFields("cash", "Jl. Sudirman 1", "")
//	if field != "" {
//	    // Handle validation error
//	}
func ValidateCheckoutFields(paymentMethod, addressLine, note string) (field, message string) {
	if paymentMethod == "" {
		return "payment_method", "payment_method is required"
	}
	if !domain.PaymentMethod(paymentMethod).Valid() {
		return "payment_method", "payment_method must be cash, card or e_wallet"
	}
	if addressLine == "" {
		return "address.line", "address line is required"
	}
	if utf8.RuneCountInString(note) > MaxNoteLength {
		return "note", fmt.Sprintf("note must be at most %d characters", MaxNoteLength)
	}
	return "", ""
}

// ValidateQuantity validates a requested cart line quantity. Zero is allowed
// only when allowZero is set (it removes the line).
func ValidateQuantity(quantity int, allowZero bool) (field, message string) {
	if quantity < 0 || (quantity == 0 && !allowZero) {
		return "quantity", "quantity must be at least 1"
	}
	if quantity > MaxLineQuantity {
		return "quantity", fmt.Sprintf("quantity must be at most %d", MaxLineQuantity)
	}
	return "", ""
}

// CanOrderFrom checks if a restaurant currently takes orders.
//
// Example:
//
//	allowed, reason := CanOrderFrom(restaurant.IsOpen)
//	if !allowed {
//	    // Return 409 Conflict with reason
//	}
func CanOrderFrom(restaurantOpen bool) (allowed bool, reason string) {
	if !restaurantOpen {
		return false, "restaurant is not accepting orders"
	}
	return true, ""
}

// =============================================================================
// Admin Validation Functions
// =============================================================================

// CanUpdatePromotionLimit checks that a promotion's usage limit is not set
// below the redemptions already recorded.
func CanUpdatePromotionLimit(newLimit, usageCount int) (allowed bool, reason string) {
	if newLimit < usageCount {
		return false, fmt.Sprintf("usage_limit cannot be lower than usage_count (%d)", usageCount)
	}
	return true, ""
}

// CanRetireDrone checks if a drone can be removed from the fleet.
// A drone carrying an order must finish it first.
func CanRetireDrone(carryingOrder bool) (allowed bool, reason string) {
	if carryingOrder {
		return false, "drone is carrying an order"
	}
	return true, ""
}
