// Package geocoding provides a client for Google-Maps-compatible geocoding
// and place autocomplete endpoints, with an optional Redis result cache.
package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/skybite/internal/core/domain"
)

// DefaultBaseURL is the Google Maps web service root.
const DefaultBaseURL = "https://maps.googleapis.com"

// ErrNoResults is returned when the provider finds nothing for a query.
var ErrNoResults = errors.New("no geocoding results")

// Client provides forward, reverse and autocomplete lookups.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      Cache
	cacheTTL   time.Duration
	logger     *slog.Logger
}

// Config holds geocoding client configuration.
type Config struct {
	BaseURL string // e.g. "https://maps.googleapis.com"
	APIKey  string
	Timeout time.Duration

	// Cache is optional. CacheTTL defaults to 24h when a cache is set.
	Cache    Cache
	CacheTTL time.Duration
}

// NewClient creates a new geocoding client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cache:    cfg.Cache,
		cacheTTL: ttl,
		logger:   logger.With("component", "geocoding"),
	}
}

// =============================================================================
// Result Types
// =============================================================================

// Place is a geocoded location.
type Place struct {
	PlaceID          string          `json:"placeId"`
	FormattedAddress string          `json:"formattedAddress"`
	Location         domain.GeoPoint `json:"location"`
}

// Suggestion is an autocomplete prediction.
type Suggestion struct {
	PlaceID     string `json:"placeId"`
	Description string `json:"description"`
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	Results      []struct {
		PlaceID          string `json:"place_id"`
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

type autocompleteResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	Predictions  []struct {
		PlaceID     string `json:"place_id"`
		Description string `json:"description"`
	} `json:"predictions"`
}

// =============================================================================
// Operations
// =============================================================================

// Forward geocodes a free-form address.
func (c *Client) Forward(ctx context.Context, address string) ([]Place, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, domain.NewValidationError("address", "address is required")
	}
	var places []Place
	err := c.cached(ctx, cacheKey("forward", strings.ToLower(address)), &places, func() (any, error) {
		return c.geocode(ctx, url.Values{"address": {address}})
	})
	return places, err
}

// Reverse finds the addresses at a point.
func (c *Client) Reverse(ctx context.Context, p domain.GeoPoint) ([]Place, error) {
	if p.IsZero() || !p.Valid() {
		return nil, domain.NewValidationError("location", "a valid lat/lng is required")
	}
	latlng := strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 6, 64)
	var places []Place
	err := c.cached(ctx, cacheKey("reverse", latlng), &places, func() (any, error) {
		return c.geocode(ctx, url.Values{"latlng": {latlng}})
	})
	return places, err
}

// Autocomplete returns place predictions for partial input.
func (c *Client) Autocomplete(ctx context.Context, input string) ([]Suggestion, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, domain.NewValidationError("input", "input is required")
	}
	var suggestions []Suggestion
	err := c.cached(ctx, cacheKey("autocomplete", strings.ToLower(input)), &suggestions, func() (any, error) {
		var resp autocompleteResponse
		if err := c.get(ctx, "/maps/api/place/autocomplete/json", url.Values{"input": {input}}, &resp); err != nil {
			return nil, err
		}
		if err := checkStatus(resp.Status, resp.ErrorMessage); err != nil {
			if errors.Is(err, ErrNoResults) {
				return []Suggestion{}, nil
			}
			return nil, err
		}
		out := make([]Suggestion, 0, len(resp.Predictions))
		for _, p := range resp.Predictions {
			out = append(out, Suggestion{PlaceID: p.PlaceID, Description: p.Description})
		}
		return out, nil
	})
	return suggestions, err
}

// Locate returns the coordinates of the best match for address.
func (c *Client) Locate(ctx context.Context, address string) (domain.GeoPoint, error) {
	places, err := c.Forward(ctx, address)
	if err != nil {
		return domain.GeoPoint{}, err
	}
	if len(places) == 0 {
		return domain.GeoPoint{}, ErrNoResults
	}
	return places[0].Location, nil
}

// =============================================================================
// Helpers
// =============================================================================

func (c *Client) geocode(ctx context.Context, params url.Values) ([]Place, error) {
	var resp geocodeResponse
	if err := c.get(ctx, "/maps/api/geocode/json", params, &resp); err != nil {
		return nil, err
	}
	if err := checkStatus(resp.Status, resp.ErrorMessage); err != nil {
		return nil, err
	}
	places := make([]Place, 0, len(resp.Results))
	for _, r := range resp.Results {
		places = append(places, Place{
			PlaceID:          r.PlaceID,
			FormattedAddress: r.FormattedAddress,
			Location:         domain.GeoPoint{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng},
		})
	}
	return places, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewExternalServiceError("geocoding", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.NewExternalServiceError("geocoding",
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewExternalServiceError("geocoding", fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// checkStatus maps the provider's status field onto errors.
func checkStatus(status, message string) error {
	switch status {
	case "OK":
		return nil
	case "ZERO_RESULTS":
		return ErrNoResults
	default:
		if message != "" {
			status += ": " + message
		}
		return domain.NewExternalServiceError("geocoding", errors.New(status))
	}
}

// cached serves key from the cache when present, otherwise calls fetch and
// stores its result. Cache failures are logged and bypassed.
func (c *Client) cached(ctx context.Context, key string, out any, fetch func() (any, error)) error {
	if c.cache != nil {
		data, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.logger.Warn("geocoding cache read failed", "key", key, "error", err)
		} else if ok {
			if err := json.Unmarshal(data, out); err == nil {
				return nil
			}
		}
	}

	v, err := fetch()
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode geocoding result: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode geocoding result: %w", err)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, data, c.cacheTTL); err != nil {
			c.logger.Warn("geocoding cache write failed", "key", key, "error", err)
		}
	}
	return nil
}
