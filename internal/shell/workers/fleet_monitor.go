package workers

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/artpar/skybite/internal/core/domain"
	"github.com/artpar/skybite/internal/core/monitoring"
	"github.com/artpar/skybite/internal/shell/store"
)

// fleetPageSize is the page size used to walk the drones table.
const fleetPageSize = 500

// FleetMonitorConfig configures the fleet monitor worker.
type FleetMonitorConfig struct {
	// Interval is the time between cycles. Default: 30 seconds.
	Interval time.Duration

	// StaleAfter is how long a drone may go without telemetry before it is
	// taken out of dispatch. Default: monitoring.DefaultStaleAfter.
	StaleAfter time.Duration
}

// DefaultFleetMonitorConfig returns the default configuration.
func DefaultFleetMonitorConfig() FleetMonitorConfig {
	return FleetMonitorConfig{
		Interval:   30 * time.Second,
		StaleAfter: monitoring.DefaultStaleAfter,
	}
}

// FleetMonitor periodically marks silent idle drones offline so dispatch
// stops offering them, and warns about silent drones carrying an order.
type FleetMonitor struct {
	store  store.Store
	config FleetMonitorConfig
	logger *slog.Logger
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFleetMonitor creates a new fleet monitor worker.
func NewFleetMonitor(s store.Store, config FleetMonitorConfig, logger *slog.Logger) *FleetMonitor {
	if config.Interval == 0 {
		config.Interval = 30 * time.Second
	}
	if config.StaleAfter == 0 {
		config.StaleAfter = monitoring.DefaultStaleAfter
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &FleetMonitor{
		store:  s,
		config: config,
		logger: logger.With("component", "fleet_monitor"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Start begins the monitor's background goroutine.
func (m *FleetMonitor) Start() {
	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.wg.Add(1)
	go m.run()

	m.logger.Info("fleet monitor started",
		"interval", m.config.Interval,
		"stale_after", m.config.StaleAfter,
	)
}

// Stop cancels the monitor and waits for a running cycle to finish.
func (m *FleetMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info("fleet monitor stopped")
}

func (m *FleetMonitor) run() {
	defer m.wg.Done()

	m.RunCycle(m.ctx)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.RunCycle(m.ctx)
		}
	}
}

// RunCycle checks every drone once and returns the fleet summary.
func (m *FleetMonitor) RunCycle(ctx context.Context) monitoring.FleetSummary {
	ctx, cancel := context.WithTimeout(ctx, m.config.Interval)
	defer cancel()

	drones, assigned, err := m.snapshot(ctx)
	if err != nil {
		m.logger.Error("failed to load fleet", "error", err)
		return monitoring.FleetSummary{}
	}

	now := m.now()
	for i := range drones {
		d := drones[i]
		if monitoring.IsLost(d, assigned[d.ID], now, m.config.StaleAfter) {
			m.logger.Warn("drone on delivery stopped reporting",
				"drone_id", d.ID,
				"drone_name", d.Name,
				"last_seen_at", d.LastSeenAt,
			)
			continue
		}
		if monitoring.ShouldMarkOffline(d, assigned[d.ID], now, m.config.StaleAfter) {
			m.markOffline(ctx, d.ID)
		}
	}

	summary := monitoring.Summarize(drones, assigned, now, m.config.StaleAfter)
	m.logger.Debug("fleet check complete",
		"total", summary.Total,
		"dispatchable", summary.Dispatchable,
		"stale", summary.Stale,
		"lost", len(summary.Lost),
	)
	return summary
}

func (m *FleetMonitor) snapshot(ctx context.Context) ([]domain.Drone, map[string]bool, error) {
	var drones []domain.Drone
	for offset := 0; ; offset += fleetPageSize {
		page, err := m.store.ListDrones(ctx, store.ListOptions{Limit: fleetPageSize, Offset: offset})
		if err != nil {
			return nil, nil, err
		}
		drones = append(drones, page...)
		if len(page) < fleetPageSize {
			break
		}
	}

	busy, err := m.store.ListBusyDroneIDs(ctx)
	if err != nil {
		return nil, nil, err
	}
	assigned := make(map[string]bool, len(busy))
	for _, id := range busy {
		assigned[id] = true
	}
	return drones, assigned, nil
}

// errFresh aborts the offline write when telemetry arrived since the
// snapshot.
var errFresh = errors.New("drone reported since snapshot")

// markOffline re-reads the drone inside a transaction and writes with a
// status and last-seen guard, so neither a report nor an assignment that
// lands after the snapshot is overwritten.
func (m *FleetMonitor) markOffline(ctx context.Context, droneID string) {
	logger := m.logger.With("drone_id", droneID)

	err := m.store.WithTx(ctx, func(tx store.Store) error {
		d, err := tx.GetDrone(ctx, droneID)
		if err != nil {
			return err
		}
		busy, err := tx.ListBusyDroneIDs(ctx)
		if err != nil {
			return err
		}
		assigned := false
		for _, id := range busy {
			if id == droneID {
				assigned = true
				break
			}
		}

		now := m.now()
		if !monitoring.ShouldMarkOffline(*d, assigned, now, m.config.StaleAfter) {
			return errFresh
		}
		cutoff := now.Add(-m.config.StaleAfter)
		return tx.ChangeDroneStatus(ctx, store.DroneStatusChange{
			DroneID:    droneID,
			Status:     domain.DroneOffline,
			At:         now,
			From:       monitoring.OfflineFrom,
			SeenBefore: &cutoff,
		})
	})

	switch {
	case err == nil:
		logger.Warn("drone marked offline after missing telemetry")
	case errors.Is(err, errFresh), errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrConflict):
		logger.Debug("skipped offline mark", "reason", err)
	default:
		logger.Error("failed to mark drone offline", "error", err)
	}
}
