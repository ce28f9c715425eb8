package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/artpar/skybite/internal/core/auth"
	coredispatch "github.com/artpar/skybite/internal/core/dispatch"
	"github.com/artpar/skybite/internal/core/domain"
	"github.com/artpar/skybite/internal/core/lifecycle"
	"github.com/artpar/skybite/internal/shell/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

var (
	testNow = time.Date(2026, 6, 15, 11, 0, 0, 0, time.UTC)
	pickup  = domain.GeoPoint{Lat: -6.2, Lng: 106.8}
)

func testStore(t *testing.T) *store.SQLStore {
	s, err := store.NewStore(store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testService(s store.Store) *Service {
	svc := NewService(s, lifecycle.NewMachine(false), nil)
	svc.now = func() time.Time { return testNow }
	return svc
}

func admin() auth.Context {
	return auth.Context{UserID: "admin_1", Role: auth.RoleAdmin, Authenticated: true}
}

func testDrone(t *testing.T, s store.Store, name string, status domain.DroneStatus, battery float64, pos domain.GeoPoint) *domain.Drone {
	t.Helper()
	d, err := domain.NewDrone(name, "", pos, 2)
	require.NoError(t, err)
	d.Status = status
	d.BatteryPercent = battery
	require.NoError(t, s.CreateDrone(context.Background(), d))
	return d
}

func testOrder(t *testing.T, s store.Store, restaurantName string, status domain.OrderStatus) *domain.Order {
	t.Helper()
	ctx := context.Background()
	r, err := domain.NewRestaurant("owner_1", restaurantName, "", pickup)
	require.NoError(t, err)
	require.NoError(t, s.CreateRestaurant(ctx, r))

	cart := domain.Cart{CustomerID: "cust_1", RestaurantID: r.ID, Items: []domain.CartItem{{
		LineID: "l1", DishID: "d1", Name: "Sate", UnitPrice: decimal.NewFromInt(25000), Quantity: 2,
	}}}
	o, err := domain.NewOrder(cart, domain.PaymentEWallet, domain.DeliveryAddress{Line: "Jl. Senopati 9"}, testNow)
	require.NoError(t, err)
	require.NoError(t, s.CreateOrder(ctx, o))

	if status != domain.OrderPending {
		o.Status = status
		require.NoError(t, s.UpdateOrderStatus(ctx, o, domain.OrderPending))
	}
	return o
}

// =============================================================================
// Candidate Tests
// =============================================================================

func TestCandidates_RanksAndExcludes(t *testing.T) {
	s := testStore(t)
	svc := testService(s)
	o := testOrder(t, s, "Sate Padang", domain.OrderConfirmed)

	near := testDrone(t, s, "near", domain.DroneAvailable, 80, domain.GeoPoint{Lat: -6.201, Lng: 106.8})
	far := testDrone(t, s, "far", domain.DroneActive, 80, domain.GeoPoint{Lat: -6.3, Lng: 106.8})
	testDrone(t, s, "flat", domain.DroneAvailable, 20, pickup)
	testDrone(t, s, "docked", domain.DroneCharging, 100, pickup)

	result, err := svc.Candidates(context.Background(), admin(), o.ID)
	require.NoError(t, err)
	require.Len(t, result.Candidates, 2)
	assert.Equal(t, near.ID, result.Candidates[0].Drone.ID)
	assert.Equal(t, far.ID, result.Candidates[1].Drone.ID)
	assert.Equal(t, 4, result.ConsideredCount)
	assert.Equal(t, 1, result.FilteredOutReasons[coredispatch.FilterLowBattery])
	assert.Equal(t, 1, result.FilteredOutReasons[coredispatch.FilterStatus])
}

func TestCandidates_CustomerForbidden(t *testing.T) {
	s := testStore(t)
	o := testOrder(t, s, "Sate Padang", domain.OrderConfirmed)

	_, err := testService(s).Candidates(context.Background(),
		auth.Context{UserID: "cust_1", Role: auth.RoleCustomer, Authenticated: true}, o.ID)
	assert.ErrorIs(t, err, auth.ErrForbidden)
}

// =============================================================================
// Assignment Tests
// =============================================================================

func TestAssignDrone_PicksBestAndShips(t *testing.T) {
	s := testStore(t)
	svc := testService(s)
	ctx := context.Background()
	o := testOrder(t, s, "Sate Padang", domain.OrderConfirmed)
	best := testDrone(t, s, "best", domain.DroneAvailable, 95, pickup)
	testDrone(t, s, "second", domain.DroneAvailable, 50, pickup)

	a, err := svc.AssignDrone(ctx, admin(), o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, best.ID, a.Candidate.Drone.ID)
	assert.Equal(t, domain.OrderShipping, a.Order.Status)
	assert.Equal(t, best.ID, a.Order.AssignedDroneID)

	stored, err := s.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderShipping, stored.Status)

	drone, err := s.GetDrone(ctx, best.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DroneBusy, drone.Status)

	events, err := s.ListOrderEvents(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventOrderDroneAssigned, events[0].Type)
	assert.Equal(t, domain.EventOrderStatusChanged, events[1].Type)
}

func TestAssignDrone_BusyDroneNotOfferedTwice(t *testing.T) {
	s := testStore(t)
	svc := testService(s)
	ctx := context.Background()
	first := testOrder(t, s, "Resto A", domain.OrderConfirmed)
	second := testOrder(t, s, "Resto B", domain.OrderConfirmed)
	only := testDrone(t, s, "only", domain.DroneActive, 90, pickup)

	_, err := svc.AssignDrone(ctx, admin(), first.ID, only.ID)
	require.NoError(t, err)

	_, err = svc.AssignDrone(ctx, admin(), second.ID, only.ID)
	assert.ErrorIs(t, err, ErrDroneNotEligible)

	_, err = svc.AssignDrone(ctx, admin(), second.ID, "")
	assert.ErrorIs(t, err, coredispatch.ErrNoDroneAvailable)

	stored, err := s.GetOrder(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderConfirmed, stored.Status)
}

// claimRace commits a rival claim on the drone just before the service
// writes its own, as a second dispatcher would.
type claimRace struct {
	store.Store
}

func (r claimRace) WithTx(ctx context.Context, fn func(store.Store) error) error {
	return r.Store.WithTx(ctx, func(tx store.Store) error {
		return fn(rivalClaim{tx})
	})
}

type rivalClaim struct {
	store.Store
}

func (r rivalClaim) ChangeDroneStatus(ctx context.Context, change store.DroneStatusChange) error {
	d, err := r.GetDrone(ctx, change.DroneID)
	if err != nil {
		return err
	}
	d.Status = domain.DroneBusy
	if err := r.UpdateDrone(ctx, d); err != nil {
		return err
	}
	return r.Store.ChangeDroneStatus(ctx, change)
}

func TestAssignDrone_LosesRaceForDrone(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	o := testOrder(t, s, "Sate Padang", domain.OrderConfirmed)
	d := testDrone(t, s, "only", domain.DroneAvailable, 80, pickup)

	_, err := testService(claimRace{s}).AssignDrone(ctx, admin(), o.ID, "")
	require.ErrorIs(t, err, ErrDroneNotEligible)
	assert.ErrorIs(t, err, store.ErrConflict)

	got, err := s.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderConfirmed, got.Status)
	assert.Empty(t, got.AssignedDroneID)

	drone, err := s.GetDrone(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DroneAvailable, drone.Status, "rolled back with the transaction")
}

func TestAssignDrone_RequiresConfirmedOrder(t *testing.T) {
	s := testStore(t)
	o := testOrder(t, s, "Sate Padang", domain.OrderPending)
	testDrone(t, s, "d", domain.DroneAvailable, 90, pickup)

	_, err := testService(s).AssignDrone(context.Background(), admin(), o.ID, "")
	assert.ErrorIs(t, err, ErrOrderNotConfirmed)
}

func TestAssignDrone_MerchantForbidden(t *testing.T) {
	s := testStore(t)
	o := testOrder(t, s, "Sate Padang", domain.OrderConfirmed)
	m := auth.Context{UserID: "m", Role: auth.RoleMerchant, RestaurantID: o.RestaurantID, Authenticated: true}

	_, err := testService(s).AssignDrone(context.Background(), m, o.ID, "")
	assert.ErrorIs(t, err, auth.ErrForbidden)
}

// =============================================================================
// Telemetry Tests
// =============================================================================

func TestUpdateTelemetry(t *testing.T) {
	s := testStore(t)
	svc := testService(s)
	d := testDrone(t, s, "scout", domain.DroneOffline, 0, pickup)

	got, err := svc.UpdateTelemetry(context.Background(), admin(), d.ID, domain.Telemetry{
		Status:         domain.DroneAvailable,
		BatteryPercent: 64,
		Position:       domain.GeoPoint{Lat: -6.25, Lng: 106.85},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DroneAvailable, got.Status)
	require.NotNil(t, got.LastSeenAt)

	_, err = svc.UpdateTelemetry(context.Background(), admin(), d.ID, domain.Telemetry{
		Status:         domain.DroneAvailable,
		BatteryPercent: 140,
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
