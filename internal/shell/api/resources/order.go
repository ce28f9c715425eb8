package resources

import (
	"errors"
	"net/http"
	"time"

	"github.com/artpar/skybite/internal/core/auth"
	"github.com/artpar/skybite/internal/core/domain"
	"github.com/artpar/skybite/internal/shell/orders"
	"github.com/manyminds/api2go"
	"github.com/manyminds/api2go/jsonapi"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Order JSON:API Model
// =============================================================================

// Order wraps domain.Order. Orders are created by checkout and change only
// through the lifecycle actions, so the resource is read-only.
type Order struct {
	ID                string                 `json:"-"`
	CustomerID        string                 `json:"customer_id"`
	RestaurantID      string                 `json:"restaurant_id"`
	Items             []domain.CartItem      `json:"items"`
	Subtotal          decimal.Decimal        `json:"subtotal"`
	ServiceFee        decimal.Decimal        `json:"service_fee"`
	DeliveryFee       decimal.Decimal        `json:"delivery_fee"`
	Discount          decimal.Decimal        `json:"discount"`
	Total             decimal.Decimal        `json:"total"`
	PromotionCode     string                 `json:"promotion_code,omitempty"`
	PaymentMethod     domain.PaymentMethod   `json:"payment_method"`
	Address           domain.DeliveryAddress `json:"address"`
	Note              string                 `json:"note,omitempty"`
	Status            domain.OrderStatus     `json:"status"`
	AssignedDroneID   string                 `json:"assigned_drone_id,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
	CancelledAt       *time.Time             `json:"cancelled_at,omitempty"`
	ReviewRequestedAt *time.Time             `json:"review_requested_at,omitempty"`
}

// GetID returns the order ID for JSON:API.
func (o Order) GetID() string {
	return o.ID
}

// SetID sets the order ID for JSON:API.
func (o *Order) SetID(id string) error {
	o.ID = id
	return nil
}

// GetName returns the JSON:API resource type name.
func (o Order) GetName() string {
	return "orders"
}

// GetReferences returns the relationships this resource has.
func (o Order) GetReferences() []jsonapi.Reference {
	return []jsonapi.Reference{
		{Type: "restaurants", Name: "restaurant"},
		{Type: "drones", Name: "drone"},
	}
}

// GetReferencedIDs returns the restaurant and, once assigned, the drone.
func (o Order) GetReferencedIDs() []jsonapi.ReferenceID {
	refs := []jsonapi.ReferenceID{{ID: o.RestaurantID, Type: "restaurants", Name: "restaurant"}}
	if o.AssignedDroneID != "" {
		refs = append(refs, jsonapi.ReferenceID{ID: o.AssignedDroneID, Type: "drones", Name: "drone"})
	}
	return refs
}

// OrderFromDomain converts a domain.Order to a JSON:API Order.
func OrderFromDomain(o *domain.Order) Order {
	items := o.Items
	if items == nil {
		items = []domain.CartItem{}
	}
	return Order{
		ID:                o.ID,
		CustomerID:        o.CustomerID,
		RestaurantID:      o.RestaurantID,
		Items:             items,
		Subtotal:          o.Subtotal,
		ServiceFee:        o.ServiceFee,
		DeliveryFee:       o.DeliveryFee,
		Discount:          o.Discount,
		Total:             o.Total,
		PromotionCode:     o.PromotionCode,
		PaymentMethod:     o.PaymentMethod,
		Address:           o.Address,
		Note:              o.Note,
		Status:            o.Status,
		AssignedDroneID:   o.AssignedDroneID,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
		CancelledAt:       o.CancelledAt,
		ReviewRequestedAt: o.ReviewRequestedAt,
	}
}

// =============================================================================
// OrderResource - Read Operations
// =============================================================================

// OrderResource serves /api/v1/orders through the orders service, which
// scopes every read to what the caller may see.
type OrderResource struct {
	Orders *orders.Service
}

// NewOrderResource creates a new order resource handler.
func NewOrderResource(svc *orders.Service) *OrderResource {
	return &OrderResource{Orders: svc}
}

// FindAll lists orders visible to the caller, newest first.
// GET /api/v1/orders?filter[status]=&filter[restaurant_id]=
func (r OrderResource) FindAll(req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	authCtx := auth.FromContext(ctx)
	if !authCtx.Authenticated {
		return fail(auth.ErrUnauthenticated)
	}

	filter := orders.ListFilter{
		Status:       domain.OrderStatus(queryParam(req, "filter[status]")),
		RestaurantID: queryParam(req, "filter[restaurant_id]"),
		ListOptions:  ListOptionsFrom(req),
	}
	list, err := r.Orders.List(ctx, authCtx, filter)
	if err != nil {
		return fail(err)
	}

	result := make([]Order, 0, len(list))
	for i := range list {
		result = append(result, OrderFromDomain(&list[i]))
	}
	return &Response{Code: http.StatusOK, Res: result, Meta: listMeta(len(result), filter.ListOptions)}, nil
}

// FindOne returns an order the caller may view.
// GET /api/v1/orders/{id}
func (r OrderResource) FindOne(id string, req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	o, err := r.Orders.Get(ctx, auth.FromContext(ctx), id)
	if err != nil {
		return fail(err)
	}
	return &Response{Code: http.StatusOK, Res: OrderFromDomain(o)}, nil
}

// Create is not supported; orders are placed with POST /api/v1/checkout.
func (r OrderResource) Create(obj interface{}, req api2go.Request) (api2go.Responder, error) {
	return &Response{Code: http.StatusMethodNotAllowed}, api2go.NewHTTPError(
		errors.New("orders are created by checkout"),
		"Orders are placed with POST /api/v1/checkout",
		http.StatusMethodNotAllowed)
}

// Update is not supported; use the transition actions.
func (r OrderResource) Update(obj interface{}, req api2go.Request) (api2go.Responder, error) {
	return &Response{Code: http.StatusMethodNotAllowed}, api2go.NewHTTPError(
		errors.New("orders cannot be updated directly"),
		"Use /transitions, /confirm, /reject, /cancel or /complete instead",
		http.StatusMethodNotAllowed)
}

// Delete is not supported; orders are kept for history.
func (r OrderResource) Delete(id string, req api2go.Request) (api2go.Responder, error) {
	return &Response{Code: http.StatusMethodNotAllowed}, api2go.NewHTTPError(
		errors.New("orders cannot be deleted"),
		"Orders cannot be deleted. Cancel or reject them instead.",
		http.StatusMethodNotAllowed)
}
