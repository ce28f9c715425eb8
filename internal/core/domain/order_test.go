package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrder_CopiesCart(t *testing.T) {
	cart := NewCart("cust-1")
	_, err := cart.Add("rest-1", testItem("d1", 2, nil), time.Now())
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	order, err := NewOrder(*cart, PaymentCash, DeliveryAddress{Line: "Jl. Sudirman 1"}, now)
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, OrderPending, order.Status)
	assert.Equal(t, "cust-1", order.CustomerID)
	assert.Equal(t, "rest-1", order.RestaurantID)
	assert.Equal(t, now, order.CreatedAt)
	assert.False(t, order.HasDrone())

	cart.Clear(time.Now())
	assert.Len(t, order.Items, 1, "clearing the cart must not touch the order")
}

func TestNewOrder_Rejects(t *testing.T) {
	full := NewCart("cust-1")
	_, err := full.Add("rest-1", testItem("d1", 1, nil), time.Now())
	require.NoError(t, err)

	_, err = NewOrder(*NewCart("cust-1"), PaymentCash, DeliveryAddress{Line: "x"}, time.Now())
	assert.ErrorIs(t, err, ErrCartEmpty)

	_, err = NewOrder(*full, "bitcoin", DeliveryAddress{Line: "x"}, time.Now())
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewOrder(*full, PaymentCard, DeliveryAddress{}, time.Now())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestOrderStatus_Terminal(t *testing.T) {
	assert.True(t, OrderCompleted.IsTerminal())
	assert.True(t, OrderCancelled.IsTerminal())
	assert.True(t, OrderRejected.IsTerminal())
	assert.False(t, OrderPending.IsTerminal())
	assert.False(t, OrderShipping.IsTerminal())
	assert.False(t, OrderStatus("lost").Valid())
}

func TestDrone_ApplyTelemetry(t *testing.T) {
	d, err := NewDrone("SB-01", "", GeoPoint{Lat: -6.2, Lng: 106.8}, 2.5)
	require.NoError(t, err)
	assert.Equal(t, DroneOffline, d.Status)

	now := time.Now()
	err = d.ApplyTelemetry(Telemetry{Status: DroneAvailable, BatteryPercent: 88, Position: GeoPoint{Lat: -6.21, Lng: 106.81}}, now)
	require.NoError(t, err)
	assert.Equal(t, DroneAvailable, d.Status)
	assert.Equal(t, 88.0, d.BatteryPercent)
	require.NotNil(t, d.LastSeenAt)

	err = d.ApplyTelemetry(Telemetry{Status: DroneAvailable, BatteryPercent: 120}, now)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 88.0, d.BatteryPercent)
}
