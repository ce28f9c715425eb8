package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/artpar/skybite/internal/core/catalog"
	"github.com/artpar/skybite/internal/core/domain"
	"github.com/artpar/skybite/internal/core/pricing"
	"github.com/artpar/skybite/internal/core/promotion"
	"github.com/artpar/skybite/internal/shell/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

var testNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

type fakeGeocoder struct {
	point domain.GeoPoint
	err   error
	calls int
}

func (g *fakeGeocoder) Locate(ctx context.Context, address string) (domain.GeoPoint, error) {
	g.calls++
	return g.point, g.err
}

type fixture struct {
	store      *store.SQLStore
	svc        *Service
	restaurant *domain.Restaurant
	dish       *domain.Dish
}

func setup(t *testing.T, geocoder Geocoder) *fixture {
	t.Helper()
	s, err := store.NewStore(store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	r, err := domain.NewRestaurant("owner_1", "Warung Nasi", "Jl. Sabang 10", domain.GeoPoint{Lat: -6.2, Lng: 106.8})
	require.NoError(t, err)
	r.IsOpen = true
	require.NoError(t, s.CreateRestaurant(ctx, r))

	dish, err := domain.NewDish(r.ID, "Nasi Goreng", decimal.NewFromInt(30000), []domain.OptionGroup{{
		ID:       "extras",
		Name:     "Extras",
		Multiple: true,
		Choices: []domain.Choice{
			{Name: "Egg", Price: decimal.NewFromInt(5000)},
			{Name: "Cheese", Price: decimal.NewFromInt(7000)},
		},
	}})
	require.NoError(t, err)
	require.NoError(t, s.CreateDish(ctx, dish))

	svc := NewService(s, geocoder, Config{
		ServiceFee: decimal.NewFromInt(5000),
		Delivery:   pricing.DeliveryRule{Base: decimal.NewFromInt(15000), PerKm: decimal.NewFromInt(2000)},
	}, nil)
	svc.now = func() time.Time { return testNow }

	return &fixture{store: s, svc: svc, restaurant: r, dish: dish}
}

func (f *fixture) addPromotion(t *testing.T, code string, pct, limit int, minSubtotal int64) *domain.Promotion {
	t.Helper()
	p, err := domain.NewPromotion(code, pct, decimal.NewFromInt(minSubtotal), testNow.Add(48*time.Hour), limit, domain.GlobalScope())
	require.NoError(t, err)
	require.NoError(t, f.store.CreatePromotion(context.Background(), p))
	return p
}

func (f *fixture) fillCart(t *testing.T, customerID string, qty int) {
	t.Helper()
	_, _, err := f.svc.AddItem(context.Background(), customerID, catalog.ItemRequest{
		DishID:   f.dish.ID,
		Quantity: qty,
		Options:  map[string][]string{"extras": {"Egg"}},
	})
	require.NoError(t, err)
}

func pinned() domain.DeliveryAddress {
	return domain.DeliveryAddress{Line: "Jl. Thamrin 1", Location: domain.GeoPoint{Lat: -6.2, Lng: 106.8}}
}

// =============================================================================
// Cart Tests
// =============================================================================

func TestAddItem_MergesIdenticalLines(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	f.fillCart(t, "cust_1", 1)
	f.fillCart(t, "cust_1", 2)

	cart, err := f.svc.GetCart(ctx, "cust_1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, f.restaurant.ID, cart.RestaurantID)
	assert.True(t, decimal.NewFromInt(30000).Equal(cart.Items[0].UnitPrice), "price comes from the catalog")
}

func TestAddItem_ClosedRestaurant(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	f.restaurant.IsOpen = false
	require.NoError(t, f.store.UpdateRestaurant(ctx, f.restaurant))

	_, _, err := f.svc.AddItem(ctx, "cust_1", catalog.ItemRequest{DishID: f.dish.ID, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrRestaurantClosed)
}

func TestAddItem_OtherRestaurantRejected(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	f.fillCart(t, "cust_1", 1)

	other, err := domain.NewRestaurant("owner_2", "Kopi Tuku", "", domain.GeoPoint{})
	require.NoError(t, err)
	other.IsOpen = true
	require.NoError(t, f.store.CreateRestaurant(ctx, other))
	coffee, err := domain.NewDish(other.ID, "Es Kopi Susu", decimal.NewFromInt(18000), nil)
	require.NoError(t, err)
	require.NoError(t, f.store.CreateDish(ctx, coffee))

	_, _, err = f.svc.AddItem(ctx, "cust_1", catalog.ItemRequest{DishID: coffee.ID, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrCartRestaurantMismatch)
}

func TestAddItem_InvalidQuantity(t *testing.T) {
	f := setup(t, nil)
	_, _, err := f.svc.AddItem(context.Background(), "cust_1", catalog.ItemRequest{DishID: f.dish.ID, Quantity: 0})

	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "quantity", vErr.Field)
}

func TestUpdateItem_ZeroRemovesLastLine(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	f.fillCart(t, "cust_1", 1)

	cart, err := f.svc.GetCart(ctx, "cust_1")
	require.NoError(t, err)
	lineID := cart.Items[0].LineID

	cart, err = f.svc.UpdateItem(ctx, "cust_1", lineID, 0)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.Empty(t, cart.RestaurantID)

	_, err = f.svc.UpdateItem(ctx, "cust_1", lineID, 2)
	assert.ErrorIs(t, err, domain.ErrCartLineNotFound)
}

// =============================================================================
// Quote Tests
// =============================================================================

func TestQuote_EmptyCart(t *testing.T) {
	f := setup(t, nil)
	_, err := f.svc.Quote(context.Background(), "cust_1", QuoteRequest{})
	assert.ErrorIs(t, err, domain.ErrCartEmpty)
}

func TestQuote_TotalsWithPromotion(t *testing.T) {
	f := setup(t, nil)
	f.addPromotion(t, "HEMAT10", 10, 5, 0)
	f.fillCart(t, "cust_1", 2)

	q, err := f.svc.Quote(context.Background(), "cust_1", QuoteRequest{PromotionCode: "hemat10", Address: pinned()})
	require.NoError(t, err)

	// (30000 + 5000) x 2 = 70000; 10% = 7000; distance 0 => base delivery.
	assert.True(t, decimal.NewFromInt(70000).Equal(q.Subtotal))
	assert.True(t, decimal.NewFromInt(7000).Equal(q.Discount))
	assert.True(t, decimal.NewFromInt(15000).Equal(q.DeliveryFee))
	assert.True(t, decimal.NewFromInt(83000).Equal(q.Total))
	require.NotNil(t, q.Promotion)
	assert.True(t, q.Promotion.Applicable)
}

func TestQuote_GeocodesAddressWithoutPin(t *testing.T) {
	geo := &fakeGeocoder{point: domain.GeoPoint{Lat: -6.209, Lng: 106.8}}
	f := setup(t, geo)
	f.fillCart(t, "cust_1", 1)

	q, err := f.svc.Quote(context.Background(), "cust_1", QuoteRequest{Address: domain.DeliveryAddress{Line: "Jl. Kebon Sirih"}})
	require.NoError(t, err)
	assert.Equal(t, 1, geo.calls)
	assert.InDelta(t, 1.0, q.DistanceKm, 0.01)
	assert.True(t, decimal.NewFromInt(17002).Equal(q.DeliveryFee), "base 15000 + 2000/km, rounded")
}

func TestQuote_GeocoderFailure(t *testing.T) {
	geo := &fakeGeocoder{err: domain.NewExternalServiceError("geocoding", errors.New("timeout"))}
	f := setup(t, geo)
	f.fillCart(t, "cust_1", 1)

	_, err := f.svc.Quote(context.Background(), "cust_1", QuoteRequest{Address: domain.DeliveryAddress{Line: "Jl. Kebon Sirih"}})
	assert.ErrorIs(t, err, domain.ErrExternalService)
}

func TestQuote_UnknownCodeIsReported(t *testing.T) {
	f := setup(t, nil)
	f.fillCart(t, "cust_1", 1)

	q, err := f.svc.Quote(context.Background(), "cust_1", QuoteRequest{PromotionCode: "nope"})
	require.NoError(t, err)
	require.NotNil(t, q.Promotion)
	assert.False(t, q.Promotion.Applicable)
	assert.Equal(t, promotion.ReasonUnknownCode, q.Promotion.Reason)
	assert.True(t, q.Discount.IsZero())
}

func TestCheckPromotion_MinimumNotMet(t *testing.T) {
	f := setup(t, nil)
	f.addPromotion(t, "BIG", 20, 5, 100000)

	ev, err := f.svc.CheckPromotion(context.Background(), "BIG", f.restaurant.ID, decimal.NewFromInt(50000))
	require.NoError(t, err)
	assert.Equal(t, promotion.ReasonMinimumNotMet, ev.Reason)
	assert.True(t, decimal.NewFromInt(100000).Equal(ev.Minimum))
}

// =============================================================================
// Checkout Tests
// =============================================================================

func checkoutRequest(code string) CheckoutRequest {
	return CheckoutRequest{
		QuoteRequest:  QuoteRequest{PromotionCode: code, Address: pinned()},
		PaymentMethod: domain.PaymentCash,
		Note:          "no chili",
	}
}

func TestCheckout_PlacesOrderAtomically(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	p := f.addPromotion(t, "HEMAT10", 10, 5, 0)
	f.fillCart(t, "cust_1", 2)

	order, err := f.svc.Checkout(ctx, "cust_1", checkoutRequest("HEMAT10"))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, order.Status)
	assert.Equal(t, "HEMAT10", order.PromotionCode)
	assert.True(t, decimal.NewFromInt(83000).Equal(order.Total))

	stored, err := f.store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "no chili", stored.Note)

	promo, err := f.store.GetPromotion(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, promo.UsageCount)

	cart, err := f.store.GetCart(ctx, "cust_1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())

	events, err := f.store.ListOrderEvents(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventOrderPlaced, events[0].Type)
}

func TestCheckout_WithdrawnDishRejected(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	f.fillCart(t, "cust_1", 1)

	f.dish.Available = false
	f.dish.Price = decimal.NewFromInt(90000)
	require.NoError(t, f.store.UpdateDish(ctx, f.dish))

	_, err := f.svc.Checkout(ctx, "cust_1", checkoutRequest(""))
	require.ErrorIs(t, err, domain.ErrDishUnavailable)

	orders, err := f.store.ListOrders(ctx, store.OrderFilter{CustomerID: "cust_1"})
	require.NoError(t, err)
	assert.Empty(t, orders)

	cart, err := f.store.GetCart(ctx, "cust_1")
	require.NoError(t, err)
	assert.False(t, cart.IsEmpty(), "cart survives a refused checkout")
}

func TestCheckout_DeletedDishRejected(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	f.fillCart(t, "cust_1", 1)
	require.NoError(t, f.store.DeleteDish(ctx, f.dish.ID))

	_, err := f.svc.Checkout(ctx, "cust_1", checkoutRequest(""))
	assert.ErrorIs(t, err, domain.ErrDishUnavailable)
}

func TestCheckout_RepricesChangedDish(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	f.fillCart(t, "cust_1", 2)

	f.dish.Price = decimal.NewFromInt(32000)
	require.NoError(t, f.store.UpdateDish(ctx, f.dish))

	order, err := f.svc.Checkout(ctx, "cust_1", checkoutRequest(""))
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.True(t, decimal.NewFromInt(32000).Equal(order.Items[0].UnitPrice))
	// (32000 + 5000 egg) x 2
	assert.True(t, decimal.NewFromInt(74000).Equal(order.Subtotal))
}

func TestCheckout_ValidatesFields(t *testing.T) {
	f := setup(t, nil)
	f.fillCart(t, "cust_1", 1)

	req := checkoutRequest("")
	req.PaymentMethod = "bitcoin"
	_, err := f.svc.Checkout(context.Background(), "cust_1", req)

	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "payment_method", vErr.Field)
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := setup(t, nil)
	_, err := f.svc.Checkout(context.Background(), "cust_1", checkoutRequest(""))
	assert.ErrorIs(t, err, domain.ErrCartEmpty)
}

func TestCheckout_NotApplicablePromotionRejects(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	f.addPromotion(t, "BIG", 20, 5, 1000000)
	f.fillCart(t, "cust_1", 1)

	_, err := f.svc.Checkout(ctx, "cust_1", checkoutRequest("BIG"))
	require.ErrorIs(t, err, promotion.ErrNotApplicable)

	var naErr *promotion.NotApplicableError
	require.ErrorAs(t, err, &naErr)
	assert.Equal(t, promotion.ReasonMinimumNotMet, naErr.Reason)

	cart, err := f.store.GetCart(ctx, "cust_1")
	require.NoError(t, err)
	assert.False(t, cart.IsEmpty(), "cart survives a refused checkout")
}

func TestCheckout_ExhaustedPromotion(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	p := f.addPromotion(t, "LAST", 10, 1, 0)
	f.fillCart(t, "cust_1", 1)

	q, err := f.svc.Quote(ctx, "cust_1", QuoteRequest{PromotionCode: "LAST"})
	require.NoError(t, err)
	require.True(t, q.Promotion.Applicable)

	// Another customer redeems the last use before this checkout.
	require.NoError(t, f.store.IncrementPromotionUsage(ctx, p.ID, testNow))

	_, err = f.svc.Checkout(ctx, "cust_1", checkoutRequest("LAST"))

	var naErr *promotion.NotApplicableError
	require.ErrorAs(t, err, &naErr)
	assert.Equal(t, promotion.ReasonUsageExhausted, naErr.Reason)

	orders, err := f.store.ListOrders(ctx, store.OrderFilter{CustomerID: "cust_1"})
	require.NoError(t, err)
	assert.Empty(t, orders)
}
