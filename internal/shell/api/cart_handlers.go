package api

import (
	"log/slog"
	"net/http"

	"github.com/artpar/skybite/internal/core/auth"
	"github.com/artpar/skybite/internal/core/catalog"
	"github.com/artpar/skybite/internal/core/domain"
	"github.com/artpar/skybite/internal/core/promotion"
	"github.com/artpar/skybite/internal/shell/api/openapi"
	"github.com/artpar/skybite/internal/shell/api/resources"
	"github.com/artpar/skybite/internal/shell/checkout"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Cart and Checkout Handlers
// =============================================================================

// CartHandlers serves the caller's cart, quotes and checkout. The cart
// always belongs to the authenticated user.
type CartHandlers struct {
	checkout *checkout.Service
	logger   *slog.Logger
}

// NewCartHandlers creates the cart handlers.
func NewCartHandlers(svc *checkout.Service, logger *slog.Logger) *CartHandlers {
	return &CartHandlers{checkout: svc, logger: logger}
}

// RegisterRoutes registers the cart routes on the /api subrouter.
func (h *CartHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/v1/cart", h.GetCart).Methods("GET")
	r.HandleFunc("/v1/cart", h.ClearCart).Methods("DELETE")
	r.HandleFunc("/v1/cart/items", h.AddItem).Methods("POST")
	r.HandleFunc("/v1/cart/items/{line}", h.UpdateItem).Methods("PATCH")
	r.HandleFunc("/v1/cart/items/{line}", h.RemoveItem).Methods("DELETE")
	r.HandleFunc("/v1/cart/quote", h.Quote).Methods("POST")
	r.HandleFunc("/v1/checkout", h.Checkout).Methods("POST")
	r.HandleFunc("/v1/promotions/check", h.CheckPromotion).Methods("GET")
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

type addItemResponse struct {
	Cart *domain.Cart    `json:"cart"`
	Line domain.CartItem `json:"line"`
}

func cartActions() []openapi.ActionInfo {
	return []openapi.ActionInfo{
		{Method: "GET", Path: "/api/v1/cart", Summary: "Get the caller's cart", Tag: "Cart", Response: domain.Cart{}},
		{Method: "DELETE", Path: "/api/v1/cart", Summary: "Clear the cart", Tag: "Cart"},
		{Method: "POST", Path: "/api/v1/cart/items", Summary: "Add a dish to the cart", Tag: "Cart",
			Request: catalog.ItemRequest{}, Response: addItemResponse{}},
		{Method: "PATCH", Path: "/api/v1/cart/items/{line}", Summary: "Change a line's quantity; zero removes it", Tag: "Cart",
			Request: updateItemRequest{}, Response: domain.Cart{}},
		{Method: "DELETE", Path: "/api/v1/cart/items/{line}", Summary: "Remove a cart line", Tag: "Cart", Response: domain.Cart{}},
		{Method: "POST", Path: "/api/v1/cart/quote", Summary: "Price the cart", Tag: "Checkout",
			Request: checkout.QuoteRequest{}, Response: checkout.QuoteResult{}},
		{Method: "POST", Path: "/api/v1/checkout", Summary: "Place the cart as an order", Tag: "Checkout",
			Request: checkout.CheckoutRequest{}, Response: resources.Order{}},
		{Method: "GET", Path: "/api/v1/promotions/check", Summary: "Evaluate a promotion code", Tag: "Promotions",
			Query: []string{"code", "restaurant_id", "subtotal"}, Response: promotion.Evaluation{}},
	}
}

// customer returns the caller's ID or writes a 401.
func (h *CartHandlers) customer(w http.ResponseWriter, r *http.Request) (string, bool) {
	authCtx := auth.FromContext(r.Context())
	if ok, _ := auth.RequireAuthentication(authCtx); !ok {
		writeError(w, r, h.logger, auth.ErrUnauthenticated)
		return "", false
	}
	return authCtx.UserID, true
}

// GetCart returns the caller's cart, empty if none exists.
func (h *CartHandlers) GetCart(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	cart, err := h.checkout.GetCart(r.Context(), customerID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, cart)
}

// ClearCart empties the caller's cart.
func (h *CartHandlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	if err := h.checkout.ClearCart(r.Context(), customerID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddItem prices a dish with its options and adds it to the cart.
func (h *CartHandlers) AddItem(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	var req catalog.ItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	cart, line, err := h.checkout.AddItem(r.Context(), customerID, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, addItemResponse{Cart: cart, Line: line})
}

// UpdateItem sets a line's quantity.
func (h *CartHandlers) UpdateItem(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	var req updateItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	cart, err := h.checkout.UpdateItem(r.Context(), customerID, mux.Vars(r)["line"], req.Quantity)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, cart)
}

// RemoveItem deletes a cart line.
func (h *CartHandlers) RemoveItem(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	cart, err := h.checkout.RemoveItem(r.Context(), customerID, mux.Vars(r)["line"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, cart)
}

// Quote prices the cart with fees and an optional promotion code. An
// inapplicable code is reported inside the quote, not as an error.
func (h *CartHandlers) Quote(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	var req checkout.QuoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	quote, err := h.checkout.Quote(r.Context(), customerID, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, quote)
}

// Checkout places the cart as a pending order.
func (h *CartHandlers) Checkout(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	var req checkout.CheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	order, err := h.checkout.Checkout(r.Context(), customerID, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.logger.Info("order placed",
		"order_id", order.ID,
		"restaurant_id", order.RestaurantID,
		"total", order.Total.StringFixed(2),
	)
	writeData(w, http.StatusCreated, orderDocument(order))
}

// CheckPromotion evaluates a code for a prospective order without redeeming
// it. The evaluation carries the reason when the code does not apply.
func (h *CartHandlers) CheckPromotion(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	if code == "" {
		writeError(w, r, h.logger, domain.NewValidationError("code", "code is required"))
		return
	}
	subtotal := decimal.Zero
	if raw := q.Get("subtotal"); raw != "" {
		var err error
		if subtotal, err = decimal.NewFromString(raw); err != nil || subtotal.IsNegative() {
			writeError(w, r, h.logger, domain.NewValidationError("subtotal", "subtotal must be a non-negative number"))
			return
		}
	}

	ev, err := h.checkout.CheckPromotion(r.Context(), code, q.Get("restaurant_id"), subtotal)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, ev)
}

// orderDocument renders an order the way the orders resource does.
func orderDocument(o *domain.Order) map[string]interface{} {
	return map[string]interface{}{
		"type":       "orders",
		"id":         o.ID,
		"attributes": resources.OrderFromDomain(o),
	}
}
