package auth

import (
	"github.com/artpar/skybite/internal/core/domain"
)

// =============================================================================
// Order Authorization
// =============================================================================

// CanViewOrder checks if the user can view an order.
// The customer who placed it, the restaurant's merchant, and admins can.
func CanViewOrder(ctx Context, order domain.Order) bool {
	if !ctx.Authenticated {
		return false
	}
	return ctx.UserID == order.CustomerID || ctx.IsMerchantOf(order.RestaurantID) || ctx.IsAdmin()
}

// CanTransitionOrder checks if the user may move the order to status `to`.
// Returns (true, "") if allowed, or (false, reason) if not allowed.
//
//   - confirmed, rejected: the restaurant's merchant or an admin
//   - cancelled: the ordering customer, the restaurant's merchant or an admin
//   - shipping: admins only (drone dispatch)
//   - completed: the restaurant's merchant or an admin
func CanTransitionOrder(ctx Context, order domain.Order, to domain.OrderStatus) (bool, string) {
	if !ctx.Authenticated {
		return false, "authentication required"
	}
	if ctx.IsAdmin() {
		return true, ""
	}

	merchant := ctx.IsMerchantOf(order.RestaurantID)
	switch to {
	case domain.OrderConfirmed, domain.OrderRejected, domain.OrderCompleted:
		if merchant {
			return true, ""
		}
		return false, "only the restaurant can " + verb(to) + " this order"
	case domain.OrderCancelled:
		if merchant || ctx.UserID == order.CustomerID {
			return true, ""
		}
		return false, "only the customer or the restaurant can cancel this order"
	case domain.OrderShipping:
		return false, "only dispatch can mark an order as shipping"
	default:
		return false, "unknown target status"
	}
}

func verb(s domain.OrderStatus) string {
	switch s {
	case domain.OrderConfirmed:
		return "confirm"
	case domain.OrderRejected:
		return "reject"
	case domain.OrderCompleted:
		return "complete"
	}
	return string(s)
}

// ScopeOrderList narrows an order listing to what the caller may see.
// Customers see their own orders, merchants their restaurant's, admins all.
// Returns the customer and restaurant filters to apply.
func ScopeOrderList(ctx Context, restaurantID string) (customerID, restaurant string, ok bool) {
	switch {
	case !ctx.Authenticated:
		return "", "", false
	case ctx.IsAdmin():
		return "", restaurantID, true
	case ctx.Role == RoleMerchant:
		if ctx.RestaurantID == "" {
			return "", "", false
		}
		return "", ctx.RestaurantID, true
	default:
		return ctx.UserID, restaurantID, true
	}
}

// =============================================================================
// Catalog Authorization
// =============================================================================

// CanManageRestaurant checks if the user can modify a restaurant or its menu.
func CanManageRestaurant(ctx Context, restaurantID string) bool {
	return ctx.IsAdmin() || ctx.IsMerchantOf(restaurantID)
}

// CanCreateRestaurant checks if the user can register restaurants.
func CanCreateRestaurant(ctx Context) bool {
	return ctx.IsAdmin()
}

// CanManageCategories checks if the user can modify browsing categories.
func CanManageCategories(ctx Context) bool {
	return ctx.IsAdmin()
}

// =============================================================================
// Promotion Authorization
// =============================================================================

// CanManagePromotion checks if the user can create or edit a promotion.
// Admins manage every promotion; a merchant manages only promotions scoped
// to their own restaurant.
func CanManagePromotion(ctx Context, scope domain.PromotionScope) bool {
	if ctx.IsAdmin() {
		return true
	}
	return scope.Kind == domain.ScopeRestaurant && ctx.IsMerchantOf(scope.RestaurantID)
}

// =============================================================================
// Fleet Authorization
// =============================================================================

// CanManageFleet checks if the user can manage drones, stations and dispatch.
func CanManageFleet(ctx Context) bool {
	return ctx.IsAdmin()
}

// =============================================================================
// Address Authorization
// =============================================================================

// CanManageAddress checks if the user owns an address book entry.
func CanManageAddress(ctx Context, addr domain.Address) bool {
	return ctx.Authenticated && ctx.UserID == addr.CustomerID
}

// =============================================================================
// Generic Helpers
// =============================================================================

// RequireAuthentication checks if the context is authenticated.
// Returns (true, "") if authenticated, or (false, "authentication required") if not.
func RequireAuthentication(ctx Context) (bool, string) {
	if !ctx.Authenticated {
		return false, "authentication required"
	}
	return true, ""
}
