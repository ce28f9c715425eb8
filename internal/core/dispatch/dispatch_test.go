package dispatch

import (
	"math"
	"testing"

	"github.com/artpar/skybite/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pickup = domain.GeoPoint{Lat: -6.2000, Lng: 106.8166}

func drone(id string, status domain.DroneStatus, battery float64, pos domain.GeoPoint) domain.Drone {
	return domain.Drone{ID: id, Name: id, Status: status, BatteryPercent: battery, Position: pos}
}

// =============================================================================
// Haversine Tests
// =============================================================================

func TestHaversine_SamePointIsZero(t *testing.T) {
	assert.InDelta(t, 0, Haversine(pickup, pickup), 1e-9)
}

func TestHaversine_KnownDistance(t *testing.T) {
	// One degree of latitude along a meridian.
	a := domain.GeoPoint{Lat: 0, Lng: 0}
	b := domain.GeoPoint{Lat: 1, Lng: 0}
	assert.InDelta(t, 111.195, Haversine(a, b), 0.01)
}

func TestHaversine_Symmetric(t *testing.T) {
	other := domain.GeoPoint{Lat: -6.1754, Lng: 106.8272}
	assert.InDelta(t, Haversine(pickup, other), Haversine(other, pickup), 1e-9)
}

func TestHaversine_NearAntipodalIsFinite(t *testing.T) {
	a := domain.GeoPoint{Lat: 18.84, Lng: 158.58}
	b := domain.GeoPoint{Lat: -18.84, Lng: -21.42}

	d := Haversine(a, b)
	require.False(t, math.IsNaN(d))
	assert.InDelta(t, math.Pi*EarthRadiusKm, d, 0.01)
}

// =============================================================================
// Eligibility Tests
// =============================================================================

func TestEligible(t *testing.T) {
	tests := []struct {
		name string
		d    domain.Drone
		want bool
	}{
		{"available charged", drone("a", domain.DroneAvailable, 80, pickup), true},
		{"active charged", drone("b", domain.DroneActive, 21, pickup), true},
		{"battery exactly 20", drone("c", domain.DroneAvailable, 20, pickup), false},
		{"busy", drone("d", domain.DroneBusy, 90, pickup), false},
		{"charging", drone("e", domain.DroneCharging, 90, pickup), false},
		{"maintenance", drone("f", domain.DroneMaintenance, 90, pickup), false},
		{"offline", drone("g", domain.DroneOffline, 90, pickup), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Eligible(tt.d))
		})
	}
}

func TestScore(t *testing.T) {
	assert.InDelta(t, 80*0.7-10*0.3, Score(80, 10), 1e-9)
}

// =============================================================================
// Rank Tests
// =============================================================================

func TestRank_OrdersByScoreDescending(t *testing.T) {
	far := domain.GeoPoint{Lat: -6.30, Lng: 106.90}
	fleet := []domain.Drone{
		drone("low-near", domain.DroneAvailable, 40, pickup),
		drone("high-near", domain.DroneAvailable, 95, pickup),
		drone("high-far", domain.DroneActive, 95, far),
		drone("busy", domain.DroneBusy, 100, pickup),
		drone("flat", domain.DroneAvailable, 15, pickup),
	}

	result := Rank(Request{Pickup: pickup, Drones: fleet})

	require.Len(t, result.Candidates, 3)
	assert.Equal(t, "high-near", result.Candidates[0].Drone.ID)
	assert.Equal(t, "high-far", result.Candidates[1].Drone.ID)
	assert.Equal(t, "low-near", result.Candidates[2].Drone.ID)
	assert.Equal(t, 5, result.ConsideredCount)
	assert.Equal(t, 1, result.FilteredOutReasons[FilterStatus])
	assert.Equal(t, 1, result.FilteredOutReasons[FilterLowBattery])

	for i := 1; i < len(result.Candidates); i++ {
		assert.GreaterOrEqual(t, result.Candidates[i-1].Score, result.Candidates[i].Score)
	}
}

func TestRank_TiesKeepInputOrder(t *testing.T) {
	fleet := []domain.Drone{
		drone("first", domain.DroneAvailable, 70, pickup),
		drone("second", domain.DroneAvailable, 70, pickup),
		drone("third", domain.DroneActive, 70, pickup),
	}

	got := RankCandidates(pickup, fleet)
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].Drone.ID)
	assert.Equal(t, "second", got[1].Drone.ID)
	assert.Equal(t, "third", got[2].Drone.ID)
}

func TestRank_ExcludesAssigned(t *testing.T) {
	fleet := []domain.Drone{
		drone("taken", domain.DroneActive, 99, pickup),
		drone("free", domain.DroneAvailable, 50, pickup),
	}

	result := Rank(Request{Pickup: pickup, Drones: fleet, Assigned: map[string]bool{"taken": true}})
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "free", result.Candidates[0].Drone.ID)
	assert.Equal(t, 1, result.FilteredOutReasons[FilterAssigned])

	_, ok := result.Find("taken")
	assert.False(t, ok)
}

func TestRank_EmptyFleetIsEmptyNotError(t *testing.T) {
	result := Rank(Request{Pickup: pickup})
	assert.NotNil(t, result.Candidates)
	assert.Empty(t, result.Candidates)

	_, err := result.Best()
	assert.ErrorIs(t, err, ErrNoDroneAvailable)
}

func TestSelect(t *testing.T) {
	best, err := Select(pickup, []domain.Drone{
		drone("a", domain.DroneAvailable, 60, pickup),
		drone("b", domain.DroneAvailable, 90, pickup),
	})
	require.NoError(t, err)
	assert.Equal(t, "b", best.Drone.ID)
	assert.InDelta(t, 0, best.DistanceKm, 1e-9)

	_, err = Select(pickup, []domain.Drone{drone("x", domain.DroneCharging, 90, pickup)})
	assert.ErrorIs(t, err, ErrNoDroneAvailable)
}
