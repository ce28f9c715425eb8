// Package validation provides pure validation functions for API handlers.
//
// This package contains the functional core logic for validating API requests
// and checking business rules. All functions are pure (no I/O, no side effects).
//
// # Functions
//
//   - ValidateCheckoutFields: Validate required fields for checkout
//   - ValidateQuantity: Validate a cart line quantity
//   - CanOrderFrom: Check if a restaurant accepts new items and orders
//   - CanUpdatePromotionLimit: Check a new usage limit against redemptions so far
//   - CanRetireDrone: Check if a drone can be deleted
//
// # Usage
//
// The API handlers use these functions to validate requests before processing:
//
//	if field, msg := validation.ValidateCheckoutFields(method, line, note); field != "" {
//	    // Return 400 Bad Request with msg
//	}
package validation
