package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/artpar/skybite/internal/core/domain"
	"github.com/artpar/skybite/internal/shell/api/openapi"
	"github.com/artpar/skybite/internal/shell/geocoding"
	"github.com/gorilla/mux"
)

var errGeocodingDisabled = errors.New("geocoding is not configured")

// GeocodeHandlers proxies address lookups for the client apps so the maps
// API key stays on the server.
type GeocodeHandlers struct {
	geocoder Geocoder
	logger   *slog.Logger
}

// NewGeocodeHandlers creates the geocoding handlers. A nil geocoder makes
// every endpoint answer 503.
func NewGeocodeHandlers(g Geocoder, logger *slog.Logger) *GeocodeHandlers {
	return &GeocodeHandlers{geocoder: g, logger: logger}
}

// RegisterRoutes registers the geocoding routes on the /api subrouter.
func (h *GeocodeHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/v1/geocode", h.Forward).Methods("GET")
	r.HandleFunc("/v1/geocode/reverse", h.Reverse).Methods("GET")
	r.HandleFunc("/v1/geocode/autocomplete", h.Autocomplete).Methods("GET")
}

func geocodeActions() []openapi.ActionInfo {
	return []openapi.ActionInfo{
		{Method: "GET", Path: "/api/v1/geocode", Summary: "Resolve an address", Tag: "Geocoding",
			Query: []string{"address"}, Response: geocoding.Place{}},
		{Method: "GET", Path: "/api/v1/geocode/reverse", Summary: "Resolve coordinates to addresses", Tag: "Geocoding",
			Query: []string{"lat", "lng"}, Response: geocoding.Place{}},
		{Method: "GET", Path: "/api/v1/geocode/autocomplete", Summary: "Address suggestions", Tag: "Geocoding",
			Query: []string{"input"}, Response: geocoding.Suggestion{}},
	}
}

func (h *GeocodeHandlers) available(w http.ResponseWriter) bool {
	if h.geocoder == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"errors": []map[string]string{{
				"status": "503",
				"code":   "geocoding_disabled",
				"title":  http.StatusText(http.StatusServiceUnavailable),
				"detail": errGeocodingDisabled.Error(),
			}},
		})
		return false
	}
	return true
}

// Forward resolves ?address= to candidate places.
func (h *GeocodeHandlers) Forward(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address == "" {
		writeError(w, r, h.logger, domain.NewValidationError("address", "address is required"))
		return
	}
	places, err := h.geocoder.Forward(r.Context(), address)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, places)
}

// Reverse resolves ?lat=&lng= to addresses.
func (h *GeocodeHandlers) Reverse(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	if errLat != nil || errLng != nil {
		writeError(w, r, h.logger, domain.NewValidationError("location", "lat and lng must be numbers"))
		return
	}
	point := domain.GeoPoint{Lat: lat, Lng: lng}
	if !point.Valid() {
		writeError(w, r, h.logger, domain.NewValidationError("location", "location is out of range"))
		return
	}

	places, err := h.geocoder.Reverse(r.Context(), point)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, places)
}

// Autocomplete returns suggestions for partial ?input=. Short input yields
// an empty list without calling the provider.
func (h *GeocodeHandlers) Autocomplete(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	input := strings.TrimSpace(r.URL.Query().Get("input"))
	if len([]rune(input)) < 3 {
		writeData(w, http.StatusOK, []geocoding.Suggestion{})
		return
	}
	suggestions, err := h.geocoder.Autocomplete(r.Context(), input)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, suggestions)
}
