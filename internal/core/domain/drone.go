package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Drone Status
// =============================================================================

// DroneStatus is reported by the fleet telemetry system.
type DroneStatus string

const (
	DroneActive      DroneStatus = "active"
	DroneAvailable   DroneStatus = "available"
	DroneBusy        DroneStatus = "busy"
	DroneCharging    DroneStatus = "charging"
	DroneMaintenance DroneStatus = "maintenance"
	DroneOffline     DroneStatus = "offline"
)

// Valid reports whether s is a known status.
func (s DroneStatus) Valid() bool {
	switch s {
	case DroneActive, DroneAvailable, DroneBusy, DroneCharging, DroneMaintenance, DroneOffline:
		return true
	}
	return false
}

// =============================================================================
// Drone
// =============================================================================

// Drone is a delivery vehicle in the fleet.
type Drone struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Status         DroneStatus `json:"status"`
	BatteryPercent float64     `json:"battery_percent"`
	Position       GeoPoint    `json:"position"`
	MaxPayloadKg   float64     `json:"max_payload_kg"`
	StationID      string      `json:"station_id,omitempty"`
	LastSeenAt     *time.Time  `json:"last_seen_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// NewDrone registers an offline drone until its first telemetry report.
func NewDrone(name, stationID string, position GeoPoint, maxPayloadKg float64) (*Drone, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError("name", "name is required")
	}
	if !position.Valid() {
		return nil, NewValidationError("position", "position is out of range")
	}
	if maxPayloadKg < 0 {
		return nil, NewValidationError("max_payload_kg", "max_payload_kg must not be negative")
	}

	now := time.Now().UTC()
	return &Drone{
		ID:           uuid.New().String(),
		Name:         name,
		Status:       DroneOffline,
		Position:     position,
		MaxPayloadKg: maxPayloadKg,
		StationID:    stationID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Telemetry is one report from the fleet system.
type Telemetry struct {
	Status         DroneStatus `json:"status"`
	BatteryPercent float64     `json:"battery_percent"`
	Position       GeoPoint    `json:"position"`
}

// Validate checks the report's ranges.
func (t Telemetry) Validate() error {
	if !t.Status.Valid() {
		return NewValidationError("status", "unknown drone status")
	}
	if t.BatteryPercent < 0 || t.BatteryPercent > 100 {
		return NewValidationError("battery_percent", "battery_percent must be between 0 and 100")
	}
	if !t.Position.Valid() {
		return NewValidationError("position", "position is out of range")
	}
	return nil
}

// ApplyTelemetry records a validated report on the drone.
func (d *Drone) ApplyTelemetry(t Telemetry, now time.Time) error {
	if err := t.Validate(); err != nil {
		return err
	}
	d.Status = t.Status
	d.BatteryPercent = t.BatteryPercent
	d.Position = t.Position
	d.LastSeenAt = &now
	d.UpdatedAt = now
	return nil
}

// =============================================================================
// Drone Station
// =============================================================================

// DroneStation is a dock where drones park and charge.
type DroneStation struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Location  GeoPoint  `json:"location"`
	Capacity  int       `json:"capacity"`
	CreatedAt time.Time `json:"created_at"`
}

// NewDroneStation creates a station.
func NewDroneStation(name string, location GeoPoint, capacity int) (*DroneStation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError("name", "name is required")
	}
	if !location.Valid() {
		return nil, NewValidationError("location", "location is out of range")
	}
	if capacity < 0 {
		return nil, NewValidationError("capacity", "capacity must not be negative")
	}
	return &DroneStation{
		ID:        uuid.New().String(),
		Name:      name,
		Location:  location,
		Capacity:  capacity,
		CreatedAt: time.Now().UTC(),
	}, nil
}
