package resources

import (
	"net/http"
	"strings"
	"time"

	"github.com/artpar/skybite/internal/core/auth"
	"github.com/artpar/skybite/internal/core/domain"
	"github.com/artpar/skybite/internal/shell/store"
	"github.com/manyminds/api2go"
	"github.com/manyminds/api2go/jsonapi"
)

// =============================================================================
// Drone JSON:API Model
// =============================================================================

// Drone wraps domain.Drone to implement JSON:API interfaces.
type Drone struct {
	ID             string             `json:"-"`
	Name           string             `json:"name"`
	Status         domain.DroneStatus `json:"status"`
	BatteryPercent float64            `json:"battery_percent"`
	Position       domain.GeoPoint    `json:"position"`
	MaxPayloadKg   float64            `json:"max_payload_kg"`
	StationID      string             `json:"station_id,omitempty"`
	LastSeenAt     *time.Time         `json:"last_seen_at,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// GetID returns the drone ID for JSON:API.
func (d Drone) GetID() string {
	return d.ID
}

// SetID sets the drone ID for JSON:API.
func (d *Drone) SetID(id string) error {
	d.ID = id
	return nil
}

// GetName returns the JSON:API resource type name.
func (d Drone) GetName() string {
	return "drones"
}

// GetReferences returns the relationships this resource has.
func (d Drone) GetReferences() []jsonapi.Reference {
	return []jsonapi.Reference{{Type: "drone_stations", Name: "station"}}
}

// GetReferencedIDs returns the home station.
func (d Drone) GetReferencedIDs() []jsonapi.ReferenceID {
	if d.StationID == "" {
		return nil
	}
	return []jsonapi.ReferenceID{{ID: d.StationID, Type: "drone_stations", Name: "station"}}
}

// DroneFromDomain converts a domain.Drone to a JSON:API Drone.
func DroneFromDomain(d *domain.Drone) Drone {
	return Drone{
		ID:             d.ID,
		Name:           d.Name,
		Status:         d.Status,
		BatteryPercent: d.BatteryPercent,
		Position:       d.Position,
		MaxPayloadKg:   d.MaxPayloadKg,
		StationID:      d.StationID,
		LastSeenAt:     d.LastSeenAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

// =============================================================================
// DroneResource - CRUD Operations
// =============================================================================

// DroneResource implements the api2go resource interface for drones.
// Auth: admin for every operation.
type DroneResource struct {
	Store store.Store
}

// NewDroneResource creates a new drone resource handler.
func NewDroneResource(s store.Store) *DroneResource {
	return &DroneResource{Store: s}
}

func (r DroneResource) FindAll(req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	if !auth.CanManageFleet(auth.FromContext(ctx)) {
		return fail(forbidden("only admins manage the fleet"))
	}
	opts := ListOptionsFrom(req)
	drones, err := r.Store.ListDrones(ctx, opts)
	if err != nil {
		return fail(err)
	}
	result := make([]Drone, 0, len(drones))
	for i := range drones {
		result = append(result, DroneFromDomain(&drones[i]))
	}
	return &Response{Code: http.StatusOK, Res: result, Meta: listMeta(len(result), opts)}, nil
}

func (r DroneResource) FindOne(id string, req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	if !auth.CanManageFleet(auth.FromContext(ctx)) {
		return fail(forbidden("only admins manage the fleet"))
	}
	d, err := r.Store.GetDrone(ctx, id)
	if err != nil {
		return fail(err)
	}
	return &Response{Code: http.StatusOK, Res: DroneFromDomain(d)}, nil
}

// Create registers a drone. Without a status it starts offline until its
// first telemetry report.
func (r DroneResource) Create(obj interface{}, req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	if !auth.CanManageFleet(auth.FromContext(ctx)) {
		return fail(forbidden("only admins manage the fleet"))
	}
	in, ok := obj.(Drone)
	if !ok {
		return invalidBody()
	}

	d, err := domain.NewDrone(in.Name, in.StationID, in.Position, in.MaxPayloadKg)
	if err != nil {
		return fail(err)
	}
	if in.Status != "" {
		t := domain.Telemetry{Status: in.Status, BatteryPercent: in.BatteryPercent, Position: in.Position}
		if err := t.Validate(); err != nil {
			return fail(err)
		}
		d.Status = in.Status
		d.BatteryPercent = in.BatteryPercent
	}

	if err := r.Store.CreateDrone(ctx, d); err != nil {
		return fail(err)
	}
	return &Response{Code: http.StatusCreated, Res: DroneFromDomain(d)}, nil
}

func (r DroneResource) Update(obj interface{}, req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	if !auth.CanManageFleet(auth.FromContext(ctx)) {
		return fail(forbidden("only admins manage the fleet"))
	}
	in, ok := obj.(Drone)
	if !ok {
		return invalidBody()
	}
	existing, err := r.Store.GetDrone(ctx, in.ID)
	if err != nil {
		return fail(err)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return fail(domain.NewValidationError("name", "name is required"))
	}
	if in.MaxPayloadKg < 0 {
		return fail(domain.NewValidationError("max_payload_kg", "max_payload_kg must not be negative"))
	}
	t := domain.Telemetry{Status: in.Status, BatteryPercent: in.BatteryPercent, Position: in.Position}
	if err := t.Validate(); err != nil {
		return fail(err)
	}

	existing.Name = name
	existing.StationID = in.StationID
	existing.MaxPayloadKg = in.MaxPayloadKg
	existing.Status = in.Status
	existing.BatteryPercent = in.BatteryPercent
	existing.Position = in.Position
	existing.UpdatedAt = time.Now().UTC()

	if err := r.Store.UpdateDrone(ctx, existing); err != nil {
		return fail(err)
	}
	return &Response{Code: http.StatusOK, Res: DroneFromDomain(existing)}, nil
}

func (r DroneResource) Delete(id string, req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	if !auth.CanManageFleet(auth.FromContext(ctx)) {
		return fail(forbidden("only admins manage the fleet"))
	}
	if err := r.Store.DeleteDrone(ctx, id); err != nil {
		return fail(err)
	}
	return &Response{Code: http.StatusNoContent}, nil
}

// =============================================================================
// DroneStation JSON:API Model
// =============================================================================

// DroneStation wraps domain.DroneStation.
type DroneStation struct {
	ID        string          `json:"-"`
	Name      string          `json:"name"`
	Location  domain.GeoPoint `json:"location"`
	Capacity  int             `json:"capacity"`
	CreatedAt time.Time       `json:"created_at"`
}

func (s DroneStation) GetID() string { return s.ID }

func (s *DroneStation) SetID(id string) error {
	s.ID = id
	return nil
}

func (s DroneStation) GetName() string { return "drone_stations" }

// DroneStationFromDomain converts a domain.DroneStation.
func DroneStationFromDomain(s *domain.DroneStation) DroneStation {
	return DroneStation{ID: s.ID, Name: s.Name, Location: s.Location, Capacity: s.Capacity, CreatedAt: s.CreatedAt}
}

// DroneStationResource serves /api/v1/drone_stations (admin only).
type DroneStationResource struct {
	Store store.Store
}

// NewDroneStationResource creates a new drone station resource handler.
func NewDroneStationResource(s store.Store) *DroneStationResource {
	return &DroneStationResource{Store: s}
}

func (r DroneStationResource) FindAll(req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	if !auth.CanManageFleet(auth.FromContext(ctx)) {
		return fail(forbidden("only admins manage the fleet"))
	}
	opts := ListOptionsFrom(req)
	stations, err := r.Store.ListDroneStations(ctx, opts)
	if err != nil {
		return fail(err)
	}
	result := make([]DroneStation, 0, len(stations))
	for i := range stations {
		result = append(result, DroneStationFromDomain(&stations[i]))
	}
	return &Response{Code: http.StatusOK, Res: result, Meta: listMeta(len(result), opts)}, nil
}

func (r DroneStationResource) FindOne(id string, req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	if !auth.CanManageFleet(auth.FromContext(ctx)) {
		return fail(forbidden("only admins manage the fleet"))
	}
	s, err := r.Store.GetDroneStation(ctx, id)
	if err != nil {
		return fail(err)
	}
	return &Response{Code: http.StatusOK, Res: DroneStationFromDomain(s)}, nil
}

func (r DroneStationResource) Create(obj interface{}, req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	if !auth.CanManageFleet(auth.FromContext(ctx)) {
		return fail(forbidden("only admins manage the fleet"))
	}
	in, ok := obj.(DroneStation)
	if !ok {
		return invalidBody()
	}
	s, err := domain.NewDroneStation(in.Name, in.Location, in.Capacity)
	if err != nil {
		return fail(err)
	}
	if err := r.Store.CreateDroneStation(ctx, s); err != nil {
		return fail(err)
	}
	return &Response{Code: http.StatusCreated, Res: DroneStationFromDomain(s)}, nil
}

func (r DroneStationResource) Update(obj interface{}, req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	if !auth.CanManageFleet(auth.FromContext(ctx)) {
		return fail(forbidden("only admins manage the fleet"))
	}
	in, ok := obj.(DroneStation)
	if !ok {
		return invalidBody()
	}
	existing, err := r.Store.GetDroneStation(ctx, in.ID)
	if err != nil {
		return fail(err)
	}
	// Reuse constructor validation on the edited values.
	if _, err := domain.NewDroneStation(in.Name, in.Location, in.Capacity); err != nil {
		return fail(err)
	}
	existing.Name = strings.TrimSpace(in.Name)
	existing.Location = in.Location
	existing.Capacity = in.Capacity
	if err := r.Store.UpdateDroneStation(ctx, existing); err != nil {
		return fail(err)
	}
	return &Response{Code: http.StatusOK, Res: DroneStationFromDomain(existing)}, nil
}

func (r DroneStationResource) Delete(id string, req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	if !auth.CanManageFleet(auth.FromContext(ctx)) {
		return fail(forbidden("only admins manage the fleet"))
	}
	if err := r.Store.DeleteDroneStation(ctx, id); err != nil {
		return fail(err)
	}
	return &Response{Code: http.StatusNoContent}, nil
}
