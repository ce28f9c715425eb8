package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/artpar/skybite/internal/core/domain"
	"github.com/artpar/skybite/internal/core/lifecycle"
	"github.com/artpar/skybite/internal/core/pricing"
	"github.com/artpar/skybite/internal/shell/checkout"
	"github.com/artpar/skybite/internal/shell/dispatch"
	"github.com/artpar/skybite/internal/shell/geocoding"
	"github.com/artpar/skybite/internal/shell/media"
	"github.com/artpar/skybite/internal/shell/orders"
	"github.com/artpar/skybite/internal/shell/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

type fixture struct {
	store      *store.SQLStore
	handler    http.Handler
	restaurant *domain.Restaurant
	dish       *domain.Dish
}

type caller struct {
	userID       string
	role         string
	restaurantID string
}

var (
	customer = caller{userID: "cust_1", role: "customer"}
	stranger = caller{userID: "cust_2", role: "customer"}
	admin    = caller{userID: "admin_1", role: "admin"}
	anon     = caller{}
)

func (f *fixture) merchant() caller {
	return caller{userID: f.restaurant.OwnerID, role: "merchant", restaurantID: f.restaurant.ID}
}

type stubGeocoder struct {
	places []geocoding.Place
	err    error
}

func (g *stubGeocoder) Forward(ctx context.Context, address string) ([]geocoding.Place, error) {
	return g.places, g.err
}

func (g *stubGeocoder) Reverse(ctx context.Context, p domain.GeoPoint) ([]geocoding.Place, error) {
	return g.places, g.err
}

func (g *stubGeocoder) Autocomplete(ctx context.Context, input string) ([]geocoding.Suggestion, error) {
	return []geocoding.Suggestion{{PlaceID: "p1", Description: input + " Street"}}, g.err
}

type stubUploader struct {
	got media.Object
}

func (u *stubUploader) Upload(ctx context.Context, obj media.Object) (string, error) {
	u.got = obj
	return "https://cdn.example.com/" + obj.Key, nil
}

type option func(*APIConfig)

func setup(t *testing.T, opts ...option) *fixture {
	t.Helper()
	s, err := store.NewStore(store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	r, err := domain.NewRestaurant("merchant_1", "Warung Nasi", "Jl. Sabang 10", domain.GeoPoint{Lat: -6.2, Lng: 106.8})
	require.NoError(t, err)
	r.IsOpen = true
	require.NoError(t, s.CreateRestaurant(ctx, r))

	dish, err := domain.NewDish(r.ID, "Nasi Goreng", decimal.NewFromInt(30000), []domain.OptionGroup{{
		ID:       "extras",
		Name:     "Extras",
		Multiple: true,
		Choices: []domain.Choice{
			{Name: "Egg", Price: decimal.NewFromInt(5000)},
		},
	}})
	require.NoError(t, err)
	require.NoError(t, s.CreateDish(ctx, dish))

	machine := lifecycle.NewMachine(false)
	cfg := APIConfig{
		Store: s,
		Checkout: checkout.NewService(s, nil, checkout.Config{
			ServiceFee: decimal.NewFromInt(5000),
			Delivery:   pricing.DeliveryRule{Base: decimal.NewFromInt(15000)},
		}, nil),
		Orders:   orders.NewService(s, machine, nil),
		Dispatch: dispatch.NewService(s, machine, nil),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &fixture{store: s, handler: SetupAPI(cfg), restaurant: r, dish: dish}
}

func (f *fixture) do(t *testing.T, c caller, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/vnd.api+json")
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
		req.Header.Set("X-User-Role", c.role)
		if c.restaurantID != "" {
			req.Header.Set("X-Restaurant-ID", c.restaurantID)
		}
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

type errorDoc struct {
	Errors []struct {
		Status string                 `json:"status"`
		Code   string                 `json:"code"`
		Detail string                 `json:"detail"`
		Meta   map[string]interface{} `json:"meta"`
	} `json:"errors"`
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var doc errorDoc
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc), rec.Body.String())
	require.NotEmpty(t, doc.Errors)
	return doc.Errors[0].Code
}

func data(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var doc struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc), rec.Body.String())
	require.NoError(t, json.Unmarshal(doc.Data, v))
}

func (f *fixture) addToCart(t *testing.T, c caller, qty int) {
	t.Helper()
	rec := f.do(t, c, "POST", "/api/v1/cart/items", map[string]interface{}{
		"dish_id":  f.dish.ID,
		"quantity": qty,
		"options":  map[string][]string{"extras": {"Egg"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

type orderDoc struct {
	ID         string `json:"id"`
	Attributes struct {
		Status          string `json:"status"`
		Total           string `json:"total"`
		Discount        string `json:"discount"`
		AssignedDroneID string `json:"assigned_drone_id"`
	} `json:"attributes"`
}

func (f *fixture) placeOrder(t *testing.T) orderDoc {
	t.Helper()
	f.addToCart(t, customer, 2)
	rec := f.do(t, customer, "POST", "/api/v1/checkout", map[string]interface{}{
		"address":        map[string]interface{}{"line": "Jl. Thamrin 1"},
		"payment_method": "cash",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var o orderDoc
	data(t, rec, &o)
	return o
}

// =============================================================================
// Health
// =============================================================================

func TestHealthAndReady(t *testing.T) {
	f := setup(t)

	rec := f.do(t, anon, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = f.do(t, anon, "GET", "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ready"`)
}

func TestOpenAPI(t *testing.T) {
	f := setup(t)

	rec := f.do(t, anon, "GET", "/openapi.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		Paths map[string]interface{} `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	for _, p := range []string{"/api/v1/dishes", "/api/v1/orders/{id}", "/api/v1/checkout", "/api/v1/orders/{id}/assign-drone", "/api/upload"} {
		assert.Contains(t, doc.Paths, p)
	}
}

// =============================================================================
// Cart and Checkout
// =============================================================================

func TestCart_RequiresAuthentication(t *testing.T) {
	f := setup(t)

	rec := f.do(t, anon, "GET", "/api/v1/cart", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", errorCode(t, rec))
}

func TestCart_Lifecycle(t *testing.T) {
	f := setup(t)
	f.addToCart(t, customer, 1)
	f.addToCart(t, customer, 2)

	rec := f.do(t, customer, "GET", "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cart domain.Cart
	data(t, rec, &cart)
	require.Len(t, cart.Items, 1, "identical lines merge")
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.True(t, cart.Items[0].UnitPrice.Equal(decimal.NewFromInt(30000)))

	line := cart.Items[0].LineID
	rec = f.do(t, customer, "PATCH", "/api/v1/cart/items/"+line, map[string]int{"quantity": 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data(t, rec, &cart)
	assert.Equal(t, 5, cart.Items[0].Quantity)

	rec = f.do(t, customer, "PATCH", "/api/v1/cart/items/missing", map[string]int{"quantity": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, customer, "DELETE", "/api/v1/cart/items/"+line, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data(t, rec, &cart)
	assert.Empty(t, cart.Items)

	f.addToCart(t, customer, 1)
	rec = f.do(t, customer, "DELETE", "/api/v1/cart", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCart_AddItemValidation(t *testing.T) {
	f := setup(t)

	rec := f.do(t, customer, "POST", "/api/v1/cart/items", map[string]interface{}{
		"dish_id":  f.dish.ID,
		"quantity": 0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, customer, "POST", "/api/v1/cart/items", map[string]interface{}{
		"dish_id":  "nope",
		"quantity": 1,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuote(t *testing.T) {
	f := setup(t)

	rec := f.do(t, customer, "POST", "/api/v1/cart/quote", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "cart_empty", errorCode(t, rec))

	f.addToCart(t, customer, 2)
	rec = f.do(t, customer, "POST", "/api/v1/cart/quote", map[string]interface{}{
		"address": map[string]interface{}{"line": "Jl. Thamrin 1"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var quote struct {
		Subtotal    decimal.Decimal `json:"subtotal"`
		ServiceFee  decimal.Decimal `json:"service_fee"`
		DeliveryFee decimal.Decimal `json:"delivery_fee"`
		Total       decimal.Decimal `json:"total"`
	}
	data(t, rec, &quote)
	// (30000 + 5000) × 2
	assert.True(t, quote.Subtotal.Equal(decimal.NewFromInt(70000)), quote.Subtotal.String())
	assert.True(t, quote.Total.Equal(decimal.NewFromInt(90000)), quote.Total.String())
}

func TestCheckout_PlacesOrderAndClearsCart(t *testing.T) {
	f := setup(t)
	o := f.placeOrder(t)

	assert.NotEmpty(t, o.ID)
	assert.Equal(t, "pending", o.Attributes.Status)

	rec := f.do(t, customer, "GET", "/api/v1/cart", nil)
	var cart domain.Cart
	data(t, rec, &cart)
	assert.Empty(t, cart.Items)
}

func TestCheckout_Validation(t *testing.T) {
	f := setup(t)
	f.addToCart(t, customer, 1)

	rec := f.do(t, customer, "POST", "/api/v1/checkout", map[string]interface{}{
		"address":        map[string]interface{}{"line": "Jl. Thamrin 1"},
		"payment_method": "bitcoin",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var doc errorDoc
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "validation_error", doc.Errors[0].Code)
}

func TestCheckout_PromotionNotApplicable(t *testing.T) {
	f := setup(t)
	p, err := domain.NewPromotion("BIGSPEND", 10, decimal.NewFromInt(500000), time.Now().Add(48*time.Hour), 10, domain.GlobalScope())
	require.NoError(t, err)
	require.NoError(t, f.store.CreatePromotion(context.Background(), p))
	f.addToCart(t, customer, 1)

	rec := f.do(t, customer, "POST", "/api/v1/checkout", map[string]interface{}{
		"promotion_code": "BIGSPEND",
		"address":        map[string]interface{}{"line": "Jl. Thamrin 1"},
		"payment_method": "card",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	var doc errorDoc
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "promotion_not_applicable", doc.Errors[0].Code)
	assert.Equal(t, "minimum_not_met", doc.Errors[0].Meta["reason"])
	assert.NotNil(t, doc.Errors[0].Meta["minimum"])
}

func TestCheckPromotion(t *testing.T) {
	f := setup(t)
	p, err := domain.NewPromotion("HEMAT10", 10, decimal.NewFromInt(50000), time.Now().Add(48*time.Hour), 10, domain.GlobalScope())
	require.NoError(t, err)
	require.NoError(t, f.store.CreatePromotion(context.Background(), p))

	rec := f.do(t, customer, "GET", "/api/v1/promotions/check?code=HEMAT10&subtotal=100000", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ev struct {
		Applicable bool            `json:"applicable"`
		Discount   decimal.Decimal `json:"discount"`
	}
	data(t, rec, &ev)
	assert.True(t, ev.Applicable)
	assert.True(t, ev.Discount.Equal(decimal.NewFromInt(10000)))

	rec = f.do(t, customer, "GET", "/api/v1/promotions/check?code=HEMAT10&subtotal=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, customer, "GET", "/api/v1/promotions/check?code=NOPE", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var unknown struct {
		Applicable bool   `json:"applicable"`
		Reason     string `json:"reason"`
	}
	data(t, rec, &unknown)
	assert.False(t, unknown.Applicable)
	assert.Equal(t, "unknown_code", unknown.Reason)
}

// =============================================================================
// Orders
// =============================================================================

func TestOrders_VisibilityAndList(t *testing.T) {
	f := setup(t)
	o := f.placeOrder(t)

	rec := f.do(t, customer, "GET", "/api/v1/orders/"+o.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, stranger, "GET", "/api/v1/orders/"+o.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, f.merchant(), "GET", "/api/v1/orders?filter[status]=pending", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var list []orderDoc
	data(t, rec, &list)
	require.Len(t, list, 1)
	assert.Equal(t, o.ID, list[0].ID)

	rec = f.do(t, stranger, "GET", "/api/v1/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data(t, rec, &list)
	assert.Empty(t, list)

	rec = f.do(t, customer, "DELETE", "/api/v1/orders/"+o.ID, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestOrders_Transitions(t *testing.T) {
	f := setup(t)
	o := f.placeOrder(t)

	rec := f.do(t, customer, "POST", "/api/v1/orders/"+o.ID+"/confirm", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, f.merchant(), "POST", "/api/v1/orders/"+o.ID+"/transitions", map[string]string{"status": "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got orderDoc
	data(t, rec, &got)
	assert.Equal(t, "confirmed", got.Attributes.Status)

	// confirmed → completed skips shipping
	rec = f.do(t, f.merchant(), "POST", "/api/v1/orders/"+o.ID+"/complete", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", errorCode(t, rec))

	rec = f.do(t, f.merchant(), "POST", "/api/v1/orders/"+o.ID+"/transitions", map[string]string{"status": "flying"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, f.merchant(), "GET", "/api/v1/orders/"+o.ID+"/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events []domain.OrderEvent
	data(t, rec, &events)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventOrderPlaced, events[0].Type)
}

func TestOrders_CustomerCancel(t *testing.T) {
	f := setup(t)
	o := f.placeOrder(t)

	rec := f.do(t, customer, "POST", "/api/v1/orders/"+o.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, customer, "POST", "/api/v1/orders/"+o.ID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestOrders_HandoffQR(t *testing.T) {
	f := setup(t)
	o := f.placeOrder(t)

	rec := f.do(t, customer, "GET", "/api/v1/orders/"+o.ID+"/handoff.png?size=128", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, []byte("\x89PNG"), rec.Body.Bytes()[:4])

	rec = f.do(t, customer, "GET", "/api/v1/orders/"+o.ID+"/handoff.png?size=9000", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, stranger, "GET", "/api/v1/orders/"+o.ID+"/handoff.png", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// Dispatch
// =============================================================================

func (f *fixture) addDrone(t *testing.T, name string, battery float64, pos domain.GeoPoint) *domain.Drone {
	t.Helper()
	d, err := domain.NewDrone(name, "", pos, 5)
	require.NoError(t, err)
	d.Status = domain.DroneAvailable
	d.BatteryPercent = battery
	require.NoError(t, f.store.CreateDrone(context.Background(), d))
	return d
}

func TestDispatch_AssignDrone(t *testing.T) {
	f := setup(t)
	o := f.placeOrder(t)
	near := f.addDrone(t, "near", 90, domain.GeoPoint{Lat: -6.201, Lng: 106.801})
	f.addDrone(t, "low", 10, domain.GeoPoint{Lat: -6.2, Lng: 106.8})

	rec := f.do(t, admin, "POST", "/api/v1/orders/"+o.ID+"/assign-drone", map[string]string{})
	assert.Equal(t, http.StatusConflict, rec.Code, "pending orders cannot ship")

	rec = f.do(t, f.merchant(), "POST", "/api/v1/orders/"+o.ID+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, f.merchant(), "GET", "/api/v1/orders/"+o.ID+"/drone-candidates", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ranked struct {
		Candidates []struct {
			Drone domain.Drone `json:"drone"`
		} `json:"candidates"`
		FilteredOutReasons map[string]int `json:"filtered_out_reasons"`
	}
	data(t, rec, &ranked)
	require.Len(t, ranked.Candidates, 1)
	assert.Equal(t, near.ID, ranked.Candidates[0].Drone.ID)

	rec = f.do(t, f.merchant(), "POST", "/api/v1/orders/"+o.ID+"/assign-drone", map[string]string{})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, admin, "POST", "/api/v1/orders/"+o.ID+"/assign-drone", map[string]string{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var assignment struct {
		Order struct {
			Status          string `json:"status"`
			AssignedDroneID string `json:"assigned_drone_id"`
		} `json:"order"`
	}
	data(t, rec, &assignment)
	assert.Equal(t, "shipping", assignment.Order.Status)
	assert.Equal(t, near.ID, assignment.Order.AssignedDroneID)
}

func TestDispatch_Telemetry(t *testing.T) {
	f := setup(t)
	d := f.addDrone(t, "d1", 50, domain.GeoPoint{Lat: -6.2, Lng: 106.8})
	body := map[string]interface{}{
		"status":          "charging",
		"battery_percent": 35,
		"position":        map[string]float64{"lat": -6.21, "lng": 106.81},
	}

	rec := f.do(t, customer, "PUT", "/api/v1/drones/"+d.ID+"/telemetry", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, admin, "PUT", "/api/v1/drones/"+d.ID+"/telemetry", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got, err := f.store.GetDrone(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DroneCharging, got.Status)
	assert.Equal(t, 35.0, got.BatteryPercent)

	body["battery_percent"] = 140
	rec = f.do(t, admin, "PUT", "/api/v1/drones/"+d.ID+"/telemetry", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// JSON:API Resources
// =============================================================================

func TestResources_Catalog(t *testing.T) {
	f := setup(t)

	rec := f.do(t, anon, "GET", "/api/v1/restaurants", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Warung Nasi")

	rec = f.do(t, anon, "GET", "/api/v1/dishes?filter[restaurant_id]="+f.restaurant.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Nasi Goreng")

	category := map[string]interface{}{
		"data": map[string]interface{}{
			"type":       "categories",
			"attributes": map[string]string{"name": "Rice"},
		},
	}
	rec = f.do(t, customer, "POST", "/api/v1/categories", category)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, admin, "POST", "/api/v1/categories", category)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"rice"`)
}

func TestResources_DishEditAuthorization(t *testing.T) {
	f := setup(t)
	update := map[string]interface{}{
		"data": map[string]interface{}{
			"type": "dishes",
			"id":   f.dish.ID,
			"attributes": map[string]interface{}{
				"name":      "Nasi Goreng Spesial",
				"price":     "32000",
				"available": true,
			},
		},
	}

	rec := f.do(t, caller{userID: "m2", role: "merchant", restaurantID: "other"}, "PATCH", "/api/v1/dishes/"+f.dish.ID, update)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, f.merchant(), "PATCH", "/api/v1/dishes/"+f.dish.ID, update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got, err := f.store.GetDish(context.Background(), f.dish.ID)
	require.NoError(t, err)
	assert.Equal(t, "Nasi Goreng Spesial", got.Name)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(32000)))
}

func TestResources_FleetIsAdminOnly(t *testing.T) {
	f := setup(t)

	rec := f.do(t, f.merchant(), "GET", "/api/v1/drones", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, admin, "GET", "/api/v1/drones", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResources_AddressesAreScoped(t *testing.T) {
	f := setup(t)
	addr, err := domain.NewAddress(customer.userID, "Home", "Jl. Kemang 5", domain.GeoPoint{Lat: -6.26, Lng: 106.81})
	require.NoError(t, err)
	require.NoError(t, f.store.CreateAddress(context.Background(), addr))

	rec := f.do(t, customer, "GET", "/api/v1/addresses/"+addr.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, stranger, "GET", "/api/v1/addresses/"+addr.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// Geocoding and Uploads
// =============================================================================

func TestGeocode(t *testing.T) {
	geo := &stubGeocoder{places: []geocoding.Place{{PlaceID: "p1", FormattedAddress: "Jl. Thamrin 1", Location: domain.GeoPoint{Lat: -6.19, Lng: 106.82}}}}
	f := setup(t, func(c *APIConfig) { c.Geocoder = geo })

	rec := f.do(t, customer, "GET", "/api/v1/geocode?address=thamrin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Jl. Thamrin 1")

	rec = f.do(t, customer, "GET", "/api/v1/geocode", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, customer, "GET", "/api/v1/geocode/reverse?lat=95&lng=10", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, customer, "GET", "/api/v1/geocode/autocomplete?input=ab", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())

	geo.err = domain.NewExternalServiceError("geocoding", io.ErrUnexpectedEOF)
	rec = f.do(t, customer, "GET", "/api/v1/geocode?address=thamrin", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGeocode_Disabled(t *testing.T) {
	f := setup(t)

	rec := f.do(t, customer, "GET", "/api/v1/geocode?address=thamrin", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func uploadRequest(t *testing.T, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "photo.png")
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-ID", "merchant_1")
	req.Header.Set("X-User-Role", "merchant")
	return req
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestUpload(t *testing.T) {
	up := &stubUploader{}
	f := setup(t, func(c *APIConfig) { c.Uploader = up })

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, uploadRequest(t, pngHeader))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "https://cdn.example.com/"+up.got.Key, resp["downloadURL"])
	assert.Equal(t, "image/png", up.got.ContentType)

	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, uploadRequest(t, []byte("<html><body>hi</body></html>")))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestUpload_Disabled(t *testing.T) {
	f := setup(t)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, uploadRequest(t, pngHeader))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// =============================================================================
// Gateway Secret
// =============================================================================

func TestGatewaySecret(t *testing.T) {
	f := setup(t, func(c *APIConfig) { c.AuthSharedSecret = "s3cret" })

	rec := f.do(t, customer, "GET", "/api/v1/restaurants", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, anon, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuth(t *testing.T) {
	f := setup(t, func(c *APIConfig) { c.RequireAuth = true })

	rec := f.do(t, anon, "GET", "/api/v1/restaurants", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, customer, "GET", "/api/v1/restaurants", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
