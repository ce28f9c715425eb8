// Package monitoring provides pure functions for fleet liveness.
// This is part of the Functional Core - it contains NO I/O.
package monitoring

import (
	"slices"
	"time"

	"github.com/artpar/skybite/internal/core/dispatch"
	"github.com/artpar/skybite/internal/core/domain"
)

// DefaultStaleAfter is how long a drone may stay silent before it is
// considered lost.
const DefaultStaleAfter = 2 * time.Minute

// =============================================================================
// Liveness (Pure Functions)
// =============================================================================

// Liveness classifies a drone by its telemetry age.
type Liveness string

const (
	LivenessFresh  Liveness = "fresh"
	LivenessStale  Liveness = "stale"
	LivenessSilent Liveness = "silent" // never reported
)

// DroneLiveness reports whether d has sent telemetry within staleAfter.
func DroneLiveness(d domain.Drone, now time.Time, staleAfter time.Duration) Liveness {
	if d.LastSeenAt == nil {
		return LivenessSilent
	}
	if now.Sub(*d.LastSeenAt) > staleAfter {
		return LivenessStale
	}
	return LivenessFresh
}

// OfflineFrom lists the statuses the monitor may replace with offline.
var OfflineFrom = []domain.DroneStatus{domain.DroneActive, domain.DroneAvailable, domain.DroneCharging}

// ShouldMarkOffline reports whether the monitor takes d out of dispatch.
// Drones carrying an order keep their status so the order is not orphaned;
// IsLost reports those instead.
func ShouldMarkOffline(d domain.Drone, assigned bool, now time.Time, staleAfter time.Duration) bool {
	if assigned || DroneLiveness(d, now, staleAfter) == LivenessFresh {
		return false
	}
	return slices.Contains(OfflineFrom, d.Status)
}

// IsLost reports whether d is carrying an order without recent telemetry.
func IsLost(d domain.Drone, assigned bool, now time.Time, staleAfter time.Duration) bool {
	return assigned && DroneLiveness(d, now, staleAfter) != LivenessFresh
}

// =============================================================================
// Fleet Summary
// =============================================================================

// FleetSummary is a point-in-time view of the fleet.
type FleetSummary struct {
	Total        int                        `json:"total"`
	ByStatus     map[domain.DroneStatus]int `json:"by_status"`
	Dispatchable int                        `json:"dispatchable"`
	LowBattery   int                        `json:"low_battery"`
	Stale        int                        `json:"stale"`
	Lost         []string                   `json:"lost,omitempty"`
}

// Summarize counts drones by status and health. assigned holds the IDs of
// drones on a shipping order.
func Summarize(drones []domain.Drone, assigned map[string]bool, now time.Time, staleAfter time.Duration) FleetSummary {
	s := FleetSummary{
		Total:    len(drones),
		ByStatus: make(map[domain.DroneStatus]int),
	}
	for _, d := range drones {
		s.ByStatus[d.Status]++
		if d.BatteryPercent <= dispatch.MinBatteryPercent {
			s.LowBattery++
		}
		if DroneLiveness(d, now, staleAfter) != LivenessFresh && d.Status != domain.DroneOffline {
			s.Stale++
		}
		if IsLost(d, assigned[d.ID], now, staleAfter) {
			s.Lost = append(s.Lost, d.ID)
		}
		if dispatch.Eligible(d) && !assigned[d.ID] {
			s.Dispatchable++
		}
	}
	return s
}
