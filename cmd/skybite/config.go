package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/artpar/skybite/internal/core/pricing"
	"github.com/artpar/skybite/internal/shell/checkout"
	"github.com/artpar/skybite/internal/shell/events"
	"github.com/artpar/skybite/internal/shell/geocoding"
	"github.com/artpar/skybite/internal/shell/media"
	"github.com/artpar/skybite/internal/shell/store"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Orders    OrdersConfig    `mapstructure:"orders"`
	Fleet     FleetConfig     `mapstructure:"fleet"`
	Events    EventsConfig    `mapstructure:"events"`
	Geocoding GeocodingConfig `mapstructure:"geocoding"`
	Media     MediaConfig     `mapstructure:"media"`
	CORS      CORSConfig      `mapstructure:"cors"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	// Driver is "sqlite3" or "pgx".
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// RequireAuth rejects unauthenticated requests to /api with 401.
	RequireAuth bool `mapstructure:"require_auth"`

	// SharedSecret, when set, must match the gateway's X-Gateway-Secret header.
	SharedSecret string `mapstructure:"shared_secret"`
}

// PricingConfig holds the fee schedule. Amounts are decimal strings.
type PricingConfig struct {
	ServiceFee       string `mapstructure:"service_fee"`
	DeliveryFeeBase  string `mapstructure:"delivery_fee_base"`
	DeliveryFeePerKm string `mapstructure:"delivery_fee_per_km"`
}

// OrdersConfig holds order lifecycle settings.
type OrdersConfig struct {
	AllowCancelDuringShipping bool `mapstructure:"allow_cancel_during_shipping"`
}

// FleetConfig configures the drone liveness monitor.
type FleetConfig struct {
	MonitorInterval time.Duration `mapstructure:"monitor_interval"`
	StaleAfter      time.Duration `mapstructure:"stale_after"`
}

// EventsConfig selects the broker the outbox relay publishes to.
type EventsConfig struct {
	Driver        string        `mapstructure:"driver"`
	Brokers       []string      `mapstructure:"brokers"`
	Topic         string        `mapstructure:"topic"`
	URL           string        `mapstructure:"url"`
	Subject       string        `mapstructure:"subject"`
	Exchange      string        `mapstructure:"exchange"`
	RelayInterval time.Duration `mapstructure:"relay_interval"`
	BatchSize     int           `mapstructure:"batch_size"`
}

// GeocodingConfig holds the maps API settings. An empty APIKey disables
// geocoding.
type GeocodingConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
	Cache   struct {
		RedisAddr     string        `mapstructure:"redis_addr"`
		RedisPassword string        `mapstructure:"redis_password"`
		RedisDB       int           `mapstructure:"redis_db"`
		TTL           time.Duration `mapstructure:"ttl"`
	} `mapstructure:"cache"`
}

// MediaConfig selects the image upload backend.
type MediaConfig struct {
	Driver string `mapstructure:"driver"`
	S3     struct {
		Bucket          string `mapstructure:"bucket"`
		Region          string `mapstructure:"region"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		PublicBaseURL   string `mapstructure:"public_base_url"`
	} `mapstructure:"s3"`
	ImgHost struct {
		UploadURL string        `mapstructure:"upload_url"`
		APIKey    string        `mapstructure:"api_key"`
		Timeout   time.Duration `mapstructure:"timeout"`
	} `mapstructure:"imghost"`
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	dataDir := os.Getenv("SKYBITE_DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("database.driver", store.DriverSQLite)
	v.SetDefault("database.dsn", filepath.Join(dataDir, "skybite.db"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("auth.require_auth", false)
	v.SetDefault("auth.shared_secret", "")

	v.SetDefault("pricing.service_fee", "5000")
	v.SetDefault("pricing.delivery_fee_base", "15000")
	v.SetDefault("pricing.delivery_fee_per_km", "0")
	v.SetDefault("orders.allow_cancel_during_shipping", false)
	v.SetDefault("fleet.monitor_interval", "30s")
	v.SetDefault("fleet.stale_after", "2m")

	v.SetDefault("events.driver", events.DriverLog)
	v.SetDefault("events.brokers", []string{})
	v.SetDefault("events.topic", "skybite.orders")
	v.SetDefault("events.url", "")
	v.SetDefault("events.subject", "skybite")
	v.SetDefault("events.exchange", "skybite.orders")
	v.SetDefault("events.relay_interval", "5s")
	v.SetDefault("events.batch_size", 100)

	v.SetDefault("geocoding.base_url", "https://maps.googleapis.com")
	v.SetDefault("geocoding.api_key", "")
	v.SetDefault("geocoding.timeout", "10s")
	v.SetDefault("geocoding.cache.redis_addr", "")
	v.SetDefault("geocoding.cache.redis_password", "")
	v.SetDefault("geocoding.cache.redis_db", 0)
	v.SetDefault("geocoding.cache.ttl", "24h")

	v.SetDefault("media.driver", media.DriverNone)
	v.SetDefault("media.s3.bucket", "")
	v.SetDefault("media.s3.region", "")
	v.SetDefault("media.s3.endpoint", "")
	v.SetDefault("media.s3.access_key_id", "")
	v.SetDefault("media.s3.secret_access_key", "")
	v.SetDefault("media.s3.public_base_url", "")
	v.SetDefault("media.imghost.upload_url", "")
	v.SetDefault("media.imghost.api_key", "")
	v.SetDefault("media.imghost.timeout", "30s")

	v.SetDefault("cors.allowed_origins", []string{"*"})

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// A missing file falls back to defaults.
		}
	}

	v.SetEnvPrefix("SKYBITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case store.DriverSQLite, store.DriverPostgres:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", store.DriverSQLite, store.DriverPostgres, c.Database.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if _, err := c.Pricing.Checkout(); err != nil {
		return err
	}
	return nil
}

// Checkout converts the fee schedule into the checkout service's config.
func (p PricingConfig) Checkout() (checkout.Config, error) {
	parse := func(key, raw string) (decimal.Decimal, error) {
		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return decimal.Zero, fmt.Errorf("pricing.%s: %q is not a number", key, raw)
		}
		if d.IsNegative() {
			return decimal.Zero, fmt.Errorf("pricing.%s must not be negative", key)
		}
		return d, nil
	}

	service, err := parse("service_fee", p.ServiceFee)
	if err != nil {
		return checkout.Config{}, err
	}
	base, err := parse("delivery_fee_base", p.DeliveryFeeBase)
	if err != nil {
		return checkout.Config{}, err
	}
	perKm, err := parse("delivery_fee_per_km", p.DeliveryFeePerKm)
	if err != nil {
		return checkout.Config{}, err
	}
	return checkout.Config{
		ServiceFee: service,
		Delivery:   pricing.DeliveryRule{Base: base, PerKm: perKm},
	}, nil
}

// Publisher converts the events section into the publisher config.
func (e EventsConfig) Publisher() events.Config {
	return events.Config{
		Driver:   e.Driver,
		Brokers:  e.Brokers,
		Topic:    e.Topic,
		URL:      e.URL,
		Subject:  e.Subject,
		Exchange: e.Exchange,
	}
}

// Client converts the geocoding section into the client config, without
// the cache.
func (g GeocodingConfig) Client() geocoding.Config {
	return geocoding.Config{
		BaseURL:  g.BaseURL,
		APIKey:   g.APIKey,
		Timeout:  g.Timeout,
		CacheTTL: g.Cache.TTL,
	}
}

// Uploader converts the media section into the uploader config.
func (m MediaConfig) Uploader() media.Config {
	return media.Config{
		Driver: m.Driver,
		S3: media.S3Config{
			Bucket:          m.S3.Bucket,
			Region:          m.S3.Region,
			Endpoint:        m.S3.Endpoint,
			AccessKeyID:     m.S3.AccessKeyID,
			SecretAccessKey: m.S3.SecretAccessKey,
			PublicBaseURL:   m.S3.PublicBaseURL,
		},
		ImgHost: media.ImgHostConfig{
			UploadURL: m.ImgHost.UploadURL,
			APIKey:    m.ImgHost.APIKey,
			Timeout:   m.ImgHost.Timeout,
		},
	}
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler).With("service", "skybite")
}
