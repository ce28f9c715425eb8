package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/artpar/skybite/internal/core/lifecycle"
	"github.com/artpar/skybite/internal/shell/api"
	"github.com/artpar/skybite/internal/shell/checkout"
	"github.com/artpar/skybite/internal/shell/dispatch"
	"github.com/artpar/skybite/internal/shell/events"
	"github.com/artpar/skybite/internal/shell/geocoding"
	"github.com/artpar/skybite/internal/shell/media"
	"github.com/artpar/skybite/internal/shell/orders"
	"github.com/artpar/skybite/internal/shell/store"
	"github.com/artpar/skybite/internal/shell/workers"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitHTTPServerError = 4
	ExitEventsError     = 6
)

// =============================================================================
// Server
// =============================================================================

// Server represents the SkyBite application server.
type Server struct {
	config     *Config
	httpServer *http.Server
	store      store.Store
	publisher  events.Publisher
	relay      *workers.EventRelay
	monitor    *workers.FleetMonitor
	closers    []io.Closer
	logger     *slog.Logger
}

// NewServer opens the store, connects the collaborators and builds the HTTP
// handler.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	s, err := store.NewStore(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitDatabaseError}
	}

	fees, err := cfg.Pricing.Checkout()
	if err != nil {
		s.Close()
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitConfigError}
	}

	var closers []io.Closer
	geocoder, err := newGeocoder(cfg.Geocoding, logger, &closers)
	if err != nil {
		s.Close()
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitConfigError}
	}

	uploader, err := media.New(cfg.Media.Uploader(), logger)
	if err != nil {
		closeAll(closers, logger)
		s.Close()
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitConfigError}
	}
	logger.Info("media uploads", "driver", cfg.Media.Driver)

	publisher, err := events.New(cfg.Events.Publisher(), logger)
	if err != nil {
		closeAll(closers, logger)
		s.Close()
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitEventsError}
	}
	logger.Info("event publisher", "driver", cfg.Events.Driver)

	relay := workers.NewEventRelay(workers.EventRelayConfig{
		Outbox:    s,
		Publisher: publisher,
		Interval:  cfg.Events.RelayInterval,
		BatchSize: cfg.Events.BatchSize,
		Logger:    logger,
	})

	monitor := workers.NewFleetMonitor(s, workers.FleetMonitorConfig{
		Interval:   cfg.Fleet.MonitorInterval,
		StaleAfter: cfg.Fleet.StaleAfter,
	}, logger)

	machine := lifecycle.NewMachine(cfg.Orders.AllowCancelDuringShipping)
	apiCfg := api.APIConfig{
		Orders:           orders.NewService(s, machine, logger),
		Dispatch:         dispatch.NewService(s, machine, logger),
		Store:            s,
		Uploader:         uploader,
		Logger:           logger,
		AuthSharedSecret: cfg.Auth.SharedSecret,
		RequireAuth:      cfg.Auth.RequireAuth,
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
	}
	if geocoder != nil {
		apiCfg.Geocoder = geocoder
		apiCfg.Checkout = checkout.NewService(s, geocoder, fees, logger)
	} else {
		apiCfg.Checkout = checkout.NewService(s, nil, fees, logger)
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      api.SetupAPI(apiCfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		store:      s,
		publisher:  publisher,
		relay:      relay,
		monitor:    monitor,
		closers:    closers,
		logger:     logger,
	}, nil
}

// newGeocoder returns nil when no API key is configured. A configured Redis
// cache that cannot be reached is logged and skipped.
func newGeocoder(cfg GeocodingConfig, logger *slog.Logger, closers *[]io.Closer) (*geocoding.Client, error) {
	if cfg.APIKey == "" {
		logger.Info("geocoding disabled")
		return nil, nil
	}

	clientCfg := cfg.Client()
	if cfg.Cache.RedisAddr != "" {
		cache, rdb, err := geocoding.NewRedisCache(context.Background(), cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			logger.Warn("geocoding cache unavailable, continuing without it",
				"redis_addr", cfg.Cache.RedisAddr,
				"error", err,
			)
		} else {
			clientCfg.Cache = cache
			*closers = append(*closers, rdb)
			logger.Info("geocoding cache enabled", "redis_addr", cfg.Cache.RedisAddr, "ttl", cfg.Cache.TTL)
		}
	}

	logger.Info("geocoding enabled", "base_url", cfg.BaseURL)
	return geocoding.NewClient(clientCfg, logger), nil
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	relayCtx, cancelRelay := context.WithCancel(ctx)
	defer cancelRelay()
	go s.relay.Start(relayCtx)
	s.monitor.Start()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "address", s.config.Server.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		s.Shutdown(context.Background())
		return &ServerError{Op: "Start", Err: err, ExitCode: ExitHTTPServerError}
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// Shutdown drains HTTP requests, flushes the outbox once more and closes
// every connection.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.monitor.Stop()
	s.relay.Stop()
	if n := s.relay.RelayNow(shutdownCtx); n > 0 {
		s.logger.Info("flushed pending events", "count", n)
	}
	if err := s.publisher.Close(); err != nil {
		s.logger.Error("event publisher close error", "error", err)
	}

	closeAll(s.closers, s.logger)

	if err := s.store.Close(); err != nil {
		s.logger.Error("database close error", "error", err)
	}

	s.logger.Info("shutdown complete")
	return nil
}

func closeAll(closers []io.Closer, logger *slog.Logger) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error("close error", "error", err)
		}
	}
}

// =============================================================================
// Server Error
// =============================================================================

// ServerError represents an error during server operation.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}
