package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/skybite/internal/core/domain"
	"github.com/jmoiron/sqlx"
)

// =============================================================================
// Drone Operations
// =============================================================================

const droneColumns = `id, name, status, battery_percent, lat, lng, max_payload_kg, station_id,
	last_seen_at, created_at, updated_at`

type droneRow struct {
	ID             string  `db:"id"`
	Name           string  `db:"name"`
	Status         string  `db:"status"`
	BatteryPercent float64 `db:"battery_percent"`
	Lat            float64 `db:"lat"`
	Lng            float64 `db:"lng"`
	MaxPayloadKg   float64 `db:"max_payload_kg"`
	StationID      string  `db:"station_id"`
	LastSeenAt     *string `db:"last_seen_at"`
	CreatedAt      string  `db:"created_at"`
	UpdatedAt      string  `db:"updated_at"`
}

func droneParams(d *domain.Drone) map[string]any {
	return map[string]any{
		"id":              d.ID,
		"name":            d.Name,
		"status":          string(d.Status),
		"battery_percent": d.BatteryPercent,
		"lat":             d.Position.Lat,
		"lng":             d.Position.Lng,
		"max_payload_kg":  d.MaxPayloadKg,
		"station_id":      d.StationID,
		"last_seen_at":    formatTimePtr(d.LastSeenAt),
		"created_at":      formatTime(d.CreatedAt),
		"updated_at":      formatTime(d.UpdatedAt),
	}
}

func (s *SQLStore) CreateDrone(ctx context.Context, drone *domain.Drone) error {
	query := `
		INSERT INTO drones (
			id, name, status, battery_percent, lat, lng, max_payload_kg, station_id,
			last_seen_at, created_at, updated_at
		) VALUES (
			:id, :name, :status, :battery_percent, :lat, :lng, :max_payload_kg, :station_id,
			:last_seen_at, :created_at, :updated_at
		)`

	if _, err := s.exec.NamedExecContext(ctx, query, droneParams(drone)); err != nil {
		if isUniqueViolation(err, "drones", "id") {
			return NewStoreError("CreateDrone", "drone", drone.ID, "drone with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateDrone", "drone", drone.ID, err.Error(), err)
	}
	return nil
}

func (s *SQLStore) GetDrone(ctx context.Context, id string) (*domain.Drone, error) {
	var row droneRow
	if err := getByID(ctx, s.exec, &row, "GetDrone", "drones", droneColumns, "drone", id); err != nil {
		return nil, err
	}
	return rowToDrone(&row), nil
}

func (s *SQLStore) UpdateDrone(ctx context.Context, drone *domain.Drone) error {
	query := `
		UPDATE drones SET
			name = :name,
			status = :status,
			battery_percent = :battery_percent,
			lat = :lat,
			lng = :lng,
			max_payload_kg = :max_payload_kg,
			station_id = :station_id,
			last_seen_at = :last_seen_at,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := s.exec.NamedExecContext(ctx, query, droneParams(drone))
	if err != nil {
		return NewStoreError("UpdateDrone", "drone", drone.ID, err.Error(), err)
	}
	return rowsAffected(result, "UpdateDrone", "drone", drone.ID)
}

// DroneStatusChange is a guarded status write. The drone must currently hold
// one of From; when SeenBefore is set its last report must also be older
// than SeenBefore, or missing.
type DroneStatusChange struct {
	DroneID    string
	Status     domain.DroneStatus
	At         time.Time
	From       []domain.DroneStatus
	SeenBefore *time.Time
}

// ChangeDroneStatus applies change as a compare-and-set. A drone that no
// longer matches the guard yields ErrConflict.
func (s *SQLStore) ChangeDroneStatus(ctx context.Context, change DroneStatusChange) error {
	if len(change.From) == 0 {
		return NewStoreError("ChangeDroneStatus", "drone", change.DroneID, "no expected status", ErrConflict)
	}
	from := make([]string, len(change.From))
	for i, st := range change.From {
		from[i] = string(st)
	}

	q := `UPDATE drones SET status = ?, updated_at = ? WHERE id = ? AND status IN (?)`
	args := []any{string(change.Status), formatTime(change.At), change.DroneID, from}
	if change.SeenBefore != nil {
		q += ` AND (last_seen_at IS NULL OR last_seen_at < ?)`
		args = append(args, formatTime(*change.SeenBefore))
	}

	query, args, err := sqlx.In(q, args...)
	if err != nil {
		return NewStoreError("ChangeDroneStatus", "drone", change.DroneID, err.Error(), err)
	}
	result, err := s.exec.ExecContext(ctx, s.exec.Rebind(query), args...)
	if err != nil {
		return NewStoreError("ChangeDroneStatus", "drone", change.DroneID, err.Error(), err)
	}
	if n, _ := result.RowsAffected(); n > 0 {
		return nil
	}

	var current string
	lookup := s.exec.Rebind(`SELECT status FROM drones WHERE id = ?`)
	if err := s.exec.GetContext(ctx, &current, lookup, change.DroneID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NewStoreError("ChangeDroneStatus", "drone", change.DroneID, "drone not found", ErrNotFound)
		}
		return NewStoreError("ChangeDroneStatus", "drone", change.DroneID, err.Error(), err)
	}
	return NewStoreError("ChangeDroneStatus", "drone", change.DroneID,
		fmt.Sprintf("drone is %s, guard %v not met", current, from), ErrConflict)
}

func (s *SQLStore) DeleteDrone(ctx context.Context, id string) error {
	return deleteByID(ctx, s.exec, "DeleteDrone", "drones", "drone", id)
}

func (s *SQLStore) ListDrones(ctx context.Context, opts ListOptions) ([]domain.Drone, error) {
	opts = opts.Normalize()
	query := s.exec.Rebind(`SELECT ` + droneColumns + ` FROM drones ORDER BY name, id LIMIT ? OFFSET ?`)

	var rows []droneRow
	if err := s.exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset); err != nil {
		return nil, NewStoreError("ListDrones", "drone", "", err.Error(), err)
	}

	drones := make([]domain.Drone, 0, len(rows))
	for i := range rows {
		drones = append(drones, *rowToDrone(&rows[i]))
	}
	return drones, nil
}

func rowToDrone(row *droneRow) *domain.Drone {
	return &domain.Drone{
		ID:             row.ID,
		Name:           row.Name,
		Status:         domain.DroneStatus(row.Status),
		BatteryPercent: row.BatteryPercent,
		Position:       domain.GeoPoint{Lat: row.Lat, Lng: row.Lng},
		MaxPayloadKg:   row.MaxPayloadKg,
		StationID:      row.StationID,
		LastSeenAt:     parseTimePtr(row.LastSeenAt),
		CreatedAt:      parseTime(row.CreatedAt),
		UpdatedAt:      parseTime(row.UpdatedAt),
	}
}

// =============================================================================
// Drone Station Operations
// =============================================================================

const stationColumns = `id, name, lat, lng, capacity, created_at`

type stationRow struct {
	ID        string  `db:"id"`
	Name      string  `db:"name"`
	Lat       float64 `db:"lat"`
	Lng       float64 `db:"lng"`
	Capacity  int     `db:"capacity"`
	CreatedAt string  `db:"created_at"`
}

func (s *SQLStore) CreateDroneStation(ctx context.Context, station *domain.DroneStation) error {
	query := `
		INSERT INTO drone_stations (id, name, lat, lng, capacity, created_at)
		VALUES (:id, :name, :lat, :lng, :capacity, :created_at)`

	row := map[string]any{
		"id":         station.ID,
		"name":       station.Name,
		"lat":        station.Location.Lat,
		"lng":        station.Location.Lng,
		"capacity":   station.Capacity,
		"created_at": formatTime(station.CreatedAt),
	}
	if _, err := s.exec.NamedExecContext(ctx, query, row); err != nil {
		if isUniqueViolation(err, "drone_stations", "id") {
			return NewStoreError("CreateDroneStation", "drone_station", station.ID, "station with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateDroneStation", "drone_station", station.ID, err.Error(), err)
	}
	return nil
}

func (s *SQLStore) GetDroneStation(ctx context.Context, id string) (*domain.DroneStation, error) {
	var row stationRow
	if err := getByID(ctx, s.exec, &row, "GetDroneStation", "drone_stations", stationColumns, "drone_station", id); err != nil {
		return nil, err
	}
	return rowToStation(&row), nil
}

func (s *SQLStore) UpdateDroneStation(ctx context.Context, station *domain.DroneStation) error {
	query := `UPDATE drone_stations SET name = :name, lat = :lat, lng = :lng, capacity = :capacity WHERE id = :id`
	row := map[string]any{
		"id":       station.ID,
		"name":     station.Name,
		"lat":      station.Location.Lat,
		"lng":      station.Location.Lng,
		"capacity": station.Capacity,
	}

	result, err := s.exec.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("UpdateDroneStation", "drone_station", station.ID, err.Error(), err)
	}
	return rowsAffected(result, "UpdateDroneStation", "drone_station", station.ID)
}

func (s *SQLStore) DeleteDroneStation(ctx context.Context, id string) error {
	return deleteByID(ctx, s.exec, "DeleteDroneStation", "drone_stations", "drone_station", id)
}

func (s *SQLStore) ListDroneStations(ctx context.Context, opts ListOptions) ([]domain.DroneStation, error) {
	opts = opts.Normalize()
	query := s.exec.Rebind(`SELECT ` + stationColumns + ` FROM drone_stations ORDER BY name, id LIMIT ? OFFSET ?`)

	var rows []stationRow
	if err := s.exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset); err != nil {
		return nil, NewStoreError("ListDroneStations", "drone_station", "", err.Error(), err)
	}

	stations := make([]domain.DroneStation, 0, len(rows))
	for i := range rows {
		stations = append(stations, *rowToStation(&rows[i]))
	}
	return stations, nil
}

func rowToStation(row *stationRow) *domain.DroneStation {
	return &domain.DroneStation{
		ID:        row.ID,
		Name:      row.Name,
		Location:  domain.GeoPoint{Lat: row.Lat, Lng: row.Lng},
		Capacity:  row.Capacity,
		CreatedAt: parseTime(row.CreatedAt),
	}
}
