// Package auth provides authentication context and authorization functions.
// Identity is established upstream by the API gateway; this package only
// reads what the gateway forwards.
package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// =============================================================================
// Context Key
// =============================================================================

type contextKey string

const authContextKey contextKey = "auth"

// =============================================================================
// Types
// =============================================================================

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
)

// Role is the caller's application role.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleMerchant Role = "merchant"
	RoleAdmin    Role = "admin"
)

// ParseRole maps a header or claim value to a Role. Unknown values fall
// back to customer, the least privileged role.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleMerchant:
		return RoleMerchant
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleCustomer
	}
}

// Context represents the authentication context for a request.
type Context struct {
	// UserID is the gateway user ID (X-User-ID or the token's sub claim).
	UserID string

	// Role is customer, merchant or admin.
	Role Role

	// RestaurantID is the merchant's restaurant. Empty for other roles.
	RestaurantID string

	// Authenticated indicates whether the request is authenticated
	Authenticated bool
}

// IsAdmin reports whether the caller is an authenticated admin.
func (c Context) IsAdmin() bool {
	return c.Authenticated && c.Role == RoleAdmin
}

// IsMerchantOf reports whether the caller is the merchant of restaurantID.
func (c Context) IsMerchantOf(restaurantID string) bool {
	return c.Authenticated && c.Role == RoleMerchant &&
		c.RestaurantID != "" && c.RestaurantID == restaurantID
}

// =============================================================================
// Header Constants
// =============================================================================

const (
	// HeaderUserID is the header containing the authenticated user's ID
	HeaderUserID = "X-User-ID"

	// HeaderUserRole is the header containing the user's role
	HeaderUserRole = "X-User-Role"

	// HeaderRestaurantID is the header containing a merchant's restaurant ID
	HeaderRestaurantID = "X-Restaurant-ID"

	// HeaderGatewaySecret is the header containing the shared secret for validation
	HeaderGatewaySecret = "X-Gateway-Secret"
)

// =============================================================================
// Context Extraction
// =============================================================================

// ExtractFromRequest extracts auth context from HTTP request headers.
// If X-User-ID header is not present, returns an unauthenticated context.
func ExtractFromRequest(r *http.Request) Context {
	return ExtractFromHeaders(headerGetter{r: r})
}

// HeaderGetter is an interface for getting header values.
// This allows testing without requiring an http.Request.
type HeaderGetter interface {
	Get(key string) string
}

type headerGetter struct {
	r *http.Request
}

func (h headerGetter) Get(key string) string {
	return h.r.Header.Get(key)
}

// ExtractFromHeaders extracts auth context from headers.
//
// Auth sources (checked in order):
//  1. X-User-ID header with X-User-Role and X-Restaurant-ID
//  2. Authorization: Bearer {jwt}, reading the sub, role and rid claims
func ExtractFromHeaders(headers HeaderGetter) Context {
	userID := headers.Get(HeaderUserID)

	// The gateway has already verified the token signature.
	if userID == "" {
		claims := parseBearer(headers.Get("Authorization"))
		if claims == nil || claims.Sub == "" {
			return Context{Authenticated: false}
		}
		return newContext(claims.Sub, claims.Role, claims.RestaurantID)
	}

	return newContext(userID, headers.Get(HeaderUserRole), headers.Get(HeaderRestaurantID))
}

func newContext(userID, role, restaurantID string) Context {
	ctx := Context{
		UserID:        userID,
		Role:          ParseRole(role),
		Authenticated: true,
	}
	if ctx.Role == RoleMerchant {
		ctx.RestaurantID = restaurantID
	}
	return ctx
}

// jwtClaims holds the fields extracted from a JWT payload.
type jwtClaims struct {
	Sub          string `json:"sub"`
	Role         string `json:"role"`
	RestaurantID string `json:"rid"`
}

// parseBearer extracts claims from a Bearer token by base64-decoding the payload.
func parseBearer(authHeader string) *jwtClaims {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil
	}
	parts := strings.Split(authHeader[7:], ".")
	if len(parts) != 3 {
		return nil
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil
	}
	var claims jwtClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil
	}
	return &claims
}

// =============================================================================
// Context Storage
// =============================================================================

// WithContext stores the auth context in the request context.
func WithContext(ctx context.Context, authCtx Context) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

// FromContext retrieves the auth context from the request context.
// If no auth context is found, returns an unauthenticated context.
func FromContext(ctx context.Context) Context {
	if authCtx, ok := ctx.Value(authContextKey).(Context); ok {
		return authCtx
	}
	return Context{Authenticated: false}
}

// =============================================================================
// Helper Types for Testing
// =============================================================================

// MapHeaderGetter wraps a map to implement HeaderGetter interface.
type MapHeaderGetter map[string]string

func (m MapHeaderGetter) Get(key string) string {
	return m[key]
}
