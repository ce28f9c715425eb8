// Package dispatch ranks drones for picking up an order.
// This is part of the Functional Core - all functions are pure with no I/O.
package dispatch

import (
	"errors"
	"math"
	"slices"
	"sort"

	"github.com/artpar/skybite/internal/core/domain"
)

// =============================================================================
// Dispatch Constants and Errors
// =============================================================================

const (
	// EarthRadiusKm is the mean Earth radius used by Haversine.
	EarthRadiusKm = 6371.0

	// MinBatteryPercent is the exclusive lower bound for eligibility.
	MinBatteryPercent = 20.0

	// BatteryWeight and DistanceWeight combine into the ranking score.
	BatteryWeight  = 0.7
	DistanceWeight = 0.3
)

// DispatchableStatuses are the drone statuses that may take a pickup.
var DispatchableStatuses = []domain.DroneStatus{domain.DroneActive, domain.DroneAvailable}

// ErrNoDroneAvailable is returned by Select when nothing is eligible.
var ErrNoDroneAvailable = errors.New("no drone available")

// Filter reasons reported in RankResult.FilteredOutReasons.
const (
	FilterStatus     = "unavailable_status"
	FilterLowBattery = "low_battery"
	FilterAssigned   = "already_assigned"
	FilterNoPosition = "invalid_position"
)

// =============================================================================
// Geometry
// =============================================================================

// Haversine returns the great-circle distance between a and b in km.
func Haversine(a, b domain.GeoPoint) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	// Rounding can push h past 1 for near-antipodal points.
	h = math.Min(math.Max(h, 0), 1)
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// =============================================================================
// Eligibility and Scoring
// =============================================================================

// Eligible reports whether a drone may be offered a pickup: its status is
// active or available and its battery is above MinBatteryPercent.
func Eligible(d domain.Drone) bool {
	return eligibility(d) == ""
}

func eligibility(d domain.Drone) string {
	if !slices.Contains(DispatchableStatuses, d.Status) {
		return FilterStatus
	}
	if d.BatteryPercent <= MinBatteryPercent {
		return FilterLowBattery
	}
	if !d.Position.Valid() {
		return FilterNoPosition
	}
	return ""
}

// Score favours charged drones close to the pickup point.
func Score(batteryPercent, distanceKm float64) float64 {
	return batteryPercent*BatteryWeight - distanceKm*DistanceWeight
}

// =============================================================================
// Ranking
// =============================================================================

// Candidate is an eligible drone with its distance to pickup and score.
type Candidate struct {
	Drone      domain.Drone `json:"drone"`
	DistanceKm float64      `json:"distance_km"`
	Score      float64      `json:"score"`
}

// Request is the input to Rank.
type Request struct {
	// Pickup is the restaurant location.
	Pickup domain.GeoPoint

	// Drones is the fleet snapshot to consider.
	Drones []domain.Drone

	// Assigned holds IDs of drones already carrying an order.
	Assigned map[string]bool
}

// RankResult is the ranked list plus why the rest were dropped.
type RankResult struct {
	Candidates         []Candidate    `json:"candidates"`
	ConsideredCount    int            `json:"considered_count"`
	FilteredOutReasons map[string]int `json:"filtered_out_reasons"`
}

// Best returns the top candidate, or ErrNoDroneAvailable.
func (r RankResult) Best() (Candidate, error) {
	if len(r.Candidates) == 0 {
		return Candidate{}, ErrNoDroneAvailable
	}
	return r.Candidates[0], nil
}

// Find returns the candidate for droneID, if it was eligible.
func (r RankResult) Find(droneID string) (Candidate, bool) {
	for _, c := range r.Candidates {
		if c.Drone.ID == droneID {
			return c, true
		}
	}
	return Candidate{}, false
}

// Rank filters the fleet and orders eligible drones by descending score.
// Ties keep their input order. An empty fleet yields an empty result.
func Rank(req Request) RankResult {
	result := RankResult{
		Candidates:         []Candidate{},
		FilteredOutReasons: make(map[string]int),
	}

	for _, d := range req.Drones {
		result.ConsideredCount++

		if reason := eligibility(d); reason != "" {
			result.FilteredOutReasons[reason]++
			continue
		}
		if req.Assigned[d.ID] {
			result.FilteredOutReasons[FilterAssigned]++
			continue
		}

		distance := Haversine(req.Pickup, d.Position)
		result.Candidates = append(result.Candidates, Candidate{
			Drone:      d,
			DistanceKm: distance,
			Score:      Score(d.BatteryPercent, distance),
		})
	}

	sort.SliceStable(result.Candidates, func(i, j int) bool {
		return result.Candidates[i].Score > result.Candidates[j].Score
	})

	return result
}

// RankCandidates is Rank without exclusions, returning only the list.
func RankCandidates(pickup domain.GeoPoint, drones []domain.Drone) []Candidate {
	return Rank(Request{Pickup: pickup, Drones: drones}).Candidates
}

// Select returns the best drone for the pickup point.
func Select(pickup domain.GeoPoint, drones []domain.Drone) (Candidate, error) {
	return Rank(Request{Pickup: pickup, Drones: drones}).Best()
}
