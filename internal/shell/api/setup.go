// Package api wires the SkyBite HTTP surface: JSON:API resources served by
// api2go plus the action endpoints (cart, checkout, order transitions,
// dispatch, geocoding, uploads) that do not map onto CRUD.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/artpar/skybite/internal/core/domain"
	"github.com/artpar/skybite/internal/shell/api/middleware"
	"github.com/artpar/skybite/internal/shell/api/openapi"
	"github.com/artpar/skybite/internal/shell/api/resources"
	"github.com/artpar/skybite/internal/shell/checkout"
	"github.com/artpar/skybite/internal/shell/dispatch"
	"github.com/artpar/skybite/internal/shell/geocoding"
	"github.com/artpar/skybite/internal/shell/media"
	"github.com/artpar/skybite/internal/shell/orders"
	"github.com/artpar/skybite/internal/shell/store"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"github.com/manyminds/api2go"
	"github.com/rs/cors"
)

// =============================================================================
// API Setup
// =============================================================================

// Geocoder is the part of the geocoding client the API exposes.
type Geocoder interface {
	Forward(ctx context.Context, address string) ([]geocoding.Place, error)
	Reverse(ctx context.Context, p domain.GeoPoint) ([]geocoding.Place, error)
	Autocomplete(ctx context.Context, input string) ([]geocoding.Suggestion, error)
}

// APIConfig holds configuration for the API setup.
type APIConfig struct {
	Store    store.Store
	Checkout *checkout.Service
	Orders   *orders.Service
	Dispatch *dispatch.Service
	Geocoder Geocoder       // nil disables the geocode endpoints (503)
	Uploader media.Uploader // nil behaves like media.Disabled
	Logger   *slog.Logger

	// AuthSharedSecret, when set, must match X-Gateway-Secret.
	AuthSharedSecret string
	// RequireAuth rejects anonymous requests to every /api route.
	RequireAuth bool

	AllowedOrigins []string
}

// SetupAPI creates the complete API router with JSON:API resources and custom endpoints.
func SetupAPI(cfg APIConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Uploader == nil {
		cfg.Uploader = media.Disabled{}
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	logger := cfg.Logger.With("component", "api")

	router := mux.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(requestIDHeader)
	router.Use(recoveryMiddleware(logger))

	authMW := middleware.NewAuthMiddleware(middleware.AuthConfig{
		SharedSecret: cfg.AuthSharedSecret,
		ExemptPaths:  []string{"/health", "/ready", "/openapi.json"},
		Logger:       logger,
	})
	router.Use(authMW.Handler)

	// Health endpoints
	router.HandleFunc("/health", healthHandler).Methods("GET")
	router.HandleFunc("/ready", readyHandler(cfg.Store)).Methods("GET")

	apiRouter := router.PathPrefix("/api").Subrouter()
	if cfg.RequireAuth {
		apiRouter.Use(middleware.RequireAuth(logger))
	}

	// Custom actions are registered before the api2go catch-all so the
	// more specific routes win.
	NewCartHandlers(cfg.Checkout, logger).RegisterRoutes(apiRouter)
	NewOrderHandlers(cfg.Orders, cfg.Dispatch, logger).RegisterRoutes(apiRouter)
	NewGeocodeHandlers(cfg.Geocoder, logger).RegisterRoutes(apiRouter)
	NewUploadHandler(cfg.Uploader, logger).RegisterRoutes(apiRouter)

	jsonAPI := api2go.NewAPIWithResolver("v1", api2go.NewStaticResolver("/api"))
	jsonAPI.ContentType = "application/vnd.api+json"

	jsonAPI.AddResource(resources.Category{}, resources.NewCategoryResource(cfg.Store))
	jsonAPI.AddResource(resources.Restaurant{}, resources.NewRestaurantResource(cfg.Store))
	jsonAPI.AddResource(resources.Dish{}, resources.NewDishResource(cfg.Store))
	jsonAPI.AddResource(resources.Promotion{}, resources.NewPromotionResource(cfg.Store))
	jsonAPI.AddResource(resources.Order{}, resources.NewOrderResource(cfg.Orders))
	jsonAPI.AddResource(resources.Drone{}, resources.NewDroneResource(cfg.Store))
	jsonAPI.AddResource(resources.DroneStation{}, resources.NewDroneStationResource(cfg.Store))
	jsonAPI.AddResource(resources.Address{}, resources.NewAddressResource(cfg.Store))

	router.HandleFunc("/openapi.json", newOpenAPI().Handler()).Methods("GET")

	// api2go expects paths without the /api prefix (/v1/dishes, not /api/v1/dishes).
	apiRouter.PathPrefix("/").Handler(http.StripPrefix("/api", jsonAPI.Handler()))

	return cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}).Handler(router)
}

// newOpenAPI describes the resources and action endpoints.
func newOpenAPI() *openapi.Generator {
	gen := openapi.NewGenerator(
		openapi.WithTitle("SkyBite API"),
		openapi.WithVersion("1.0.0"),
		openapi.WithDescription("Food ordering and drone delivery API following JSON:API"),
		openapi.WithServer("/"),
	)

	crud := func(name string, model interface{}, filters ...string) openapi.ResourceInfo {
		return openapi.ResourceInfo{
			Name: name, Model: model, Filters: filters,
			SupportsFind: true, SupportsCreate: true, SupportsUpdate: true, SupportsDelete: true,
		}
	}
	gen.RegisterResource(crud("categories", resources.Category{}))
	gen.RegisterResource(crud("restaurants", resources.Restaurant{}, "category_id", "owner_id", "open"))
	gen.RegisterResource(crud("dishes", resources.Dish{}, "restaurant_id", "available"))
	gen.RegisterResource(crud("promotions", resources.Promotion{}, "restaurant_id"))
	gen.RegisterResource(openapi.ResourceInfo{
		Name:         "orders",
		Model:        resources.Order{},
		Filters:      []string{"status", "restaurant_id"},
		SupportsFind: true, // placed by checkout, changed by actions
	})
	gen.RegisterResource(crud("drones", resources.Drone{}))
	gen.RegisterResource(crud("drone_stations", resources.DroneStation{}))
	gen.RegisterResource(crud("addresses", resources.Address{}))

	for _, a := range cartActions() {
		gen.RegisterAction(a)
	}
	for _, a := range orderActions() {
		gen.RegisterAction(a)
	}
	for _, a := range geocodeActions() {
		gen.RegisterAction(a)
	}
	gen.RegisterAction(uploadAction())
	return gen
}

// =============================================================================
// Middleware
// =============================================================================

// requestIDHeader echoes the chi request ID so clients can quote it.
func requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := chimw.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware recovers from panics and returns a 500 error.
func recoveryMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						"error", err,
						"path", r.URL.Path,
						"request_id", chimw.GetReqID(r.Context()),
					)
					writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
						"errors": []map[string]interface{}{
							{
								"status": "500",
								"title":  "Internal Server Error",
								"detail": "An unexpected error occurred",
							},
						},
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// Health Handlers
// =============================================================================

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// readyHandler reports whether the database answers.
func readyHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{"database": "ok"}
		if err := s.Ping(ctx); err != nil {
			checks["database"] = "failed"
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "not_ready",
				"checks": checks,
			})
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "ready",
			"checks": checks,
		})
	}
}
