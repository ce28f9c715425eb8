// Package dispatch assigns drones to confirmed orders.
// This is part of the Imperative Shell - it loads the fleet from the store
// and uses the pure ranking in core/dispatch.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/artpar/skybite/internal/core/auth"
	coredispatch "github.com/artpar/skybite/internal/core/dispatch"
	"github.com/artpar/skybite/internal/core/domain"
	"github.com/artpar/skybite/internal/core/lifecycle"
	"github.com/artpar/skybite/internal/shell/orders"
	"github.com/artpar/skybite/internal/shell/store"
)

// =============================================================================
// Service Errors
// =============================================================================

var (
	// ErrDroneNotEligible is returned when a requested drone is not among the
	// eligible candidates for the order.
	ErrDroneNotEligible = errors.New("drone is not eligible for this order")

	// ErrOrderNotConfirmed is returned when dispatch is requested for an order
	// the restaurant has not confirmed.
	ErrOrderNotConfirmed = errors.New("order must be confirmed before dispatch")
)

// fleetPageSize bounds the fleet snapshot considered per ranking.
const fleetPageSize = 1000

// =============================================================================
// Dispatch Service
// =============================================================================

// Service provides drone dispatch with I/O operations.
type Service struct {
	store   store.Store
	machine lifecycle.Machine
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a new dispatch service.
func NewService(s store.Store, machine lifecycle.Machine, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   s,
		machine: machine,
		logger:  logger.With("component", "dispatch"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Assignment is the outcome of AssignDrone.
type Assignment struct {
	Order     *domain.Order          `json:"order"`
	Candidate coredispatch.Candidate `json:"candidate"`
}

// =============================================================================
// Candidates
// =============================================================================

// Candidates ranks the fleet for an order's pickup point. Admins and the
// order's merchant may look.
func (s *Service) Candidates(ctx context.Context, actor auth.Context, orderID string) (*coredispatch.RankResult, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !auth.CanManageFleet(actor) && !actor.IsMerchantOf(order.RestaurantID) {
		return nil, auth.ErrForbidden
	}
	result, err := s.rank(ctx, s.store, order)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// rank loads the fleet through st so it can run inside a transaction.
func (s *Service) rank(ctx context.Context, st store.Store, order *domain.Order) (coredispatch.RankResult, error) {
	restaurant, err := st.GetRestaurant(ctx, order.RestaurantID)
	if err != nil {
		return coredispatch.RankResult{}, err
	}

	drones, err := st.ListDrones(ctx, store.ListOptions{Limit: fleetPageSize})
	if err != nil {
		return coredispatch.RankResult{}, fmt.Errorf("failed to list drones: %w", err)
	}

	busy, err := st.ListBusyDroneIDs(ctx)
	if err != nil {
		return coredispatch.RankResult{}, fmt.Errorf("failed to list busy drones: %w", err)
	}
	assigned := make(map[string]bool, len(busy))
	for _, id := range busy {
		assigned[id] = true
	}

	return coredispatch.Rank(coredispatch.Request{
		Pickup:   restaurant.Location,
		Drones:   drones,
		Assigned: assigned,
	}), nil
}

// =============================================================================
// Assign Drone
// =============================================================================

// AssignDrone attaches a drone to a confirmed order and moves it to shipping.
// With an empty droneID the top-ranked candidate is chosen.
//
// The drone is claimed with a status compare-and-set, so of two dispatchers
// racing for one drone only the first commits; the second gets
// ErrDroneNotEligible.
func (s *Service) AssignDrone(ctx context.Context, actor auth.Context, orderID, droneID string) (*Assignment, error) {
	if !auth.CanManageFleet(actor) {
		return nil, fmt.Errorf("%w: only dispatch can assign drones", auth.ErrForbidden)
	}

	var result Assignment
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.OrderConfirmed {
			return fmt.Errorf("%w: order is %s", ErrOrderNotConfirmed, order.Status)
		}

		ranked, err := s.rank(ctx, tx, order)
		if err != nil {
			return err
		}

		var pick coredispatch.Candidate
		if droneID != "" {
			c, ok := ranked.Find(droneID)
			if !ok {
				return fmt.Errorf("%w: %s", ErrDroneNotEligible, droneID)
			}
			pick = c
		} else {
			pick, err = ranked.Best()
			if err != nil {
				return err
			}
		}

		now := s.now()
		withDrone := *order
		withDrone.AssignedDroneID = pick.Drone.ID
		next, err := s.machine.Apply(withDrone, domain.OrderShipping, now)
		if err != nil {
			return err
		}

		event, err := domain.NewOrderEvent(order.ID, domain.EventOrderDroneAssigned, droneAssigned{
			DroneID:    pick.Drone.ID,
			DistanceKm: pick.DistanceKm,
			Score:      pick.Score,
		}, now)
		if err != nil {
			return err
		}
		if err := tx.CreateOrderEvent(ctx, &event); err != nil {
			return err
		}

		if err := orders.Persist(ctx, tx, *order, &next, actor.UserID, now); err != nil {
			return err
		}

		err = tx.ChangeDroneStatus(ctx, store.DroneStatusChange{
			DroneID: pick.Drone.ID,
			Status:  domain.DroneBusy,
			At:      now,
			From:    coredispatch.DispatchableStatuses,
		})
		if errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("%w: %s was taken: %w", ErrDroneNotEligible, pick.Drone.ID, err)
		}
		if err != nil {
			return err
		}
		drone := pick.Drone
		drone.Status = domain.DroneBusy
		drone.UpdatedAt = now

		pick.Drone = drone
		result = Assignment{Order: &next, Candidate: pick}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("drone assigned",
		"order_id", result.Order.ID,
		"drone_id", result.Candidate.Drone.ID,
		"distance_km", result.Candidate.DistanceKm,
		"score", result.Candidate.Score,
	)
	return &result, nil
}

type droneAssigned struct {
	DroneID    string  `json:"drone_id"`
	DistanceKm float64 `json:"distance_km"`
	Score      float64 `json:"score"`
}

// =============================================================================
// Telemetry
// =============================================================================

// UpdateTelemetry records a fleet report for a drone.
func (s *Service) UpdateTelemetry(ctx context.Context, actor auth.Context, droneID string, t domain.Telemetry) (*domain.Drone, error) {
	if !auth.CanManageFleet(actor) {
		return nil, auth.ErrForbidden
	}

	drone, err := s.store.GetDrone(ctx, droneID)
	if err != nil {
		return nil, err
	}
	if err := drone.ApplyTelemetry(t, s.now()); err != nil {
		return nil, err
	}
	if err := s.store.UpdateDrone(ctx, drone); err != nil {
		return nil, err
	}

	s.logger.Debug("telemetry recorded",
		"drone_id", drone.ID,
		"status", drone.Status,
		"battery_percent", drone.BatteryPercent,
	)
	return drone, nil
}
