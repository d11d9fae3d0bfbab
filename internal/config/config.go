package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	pkgconfig "github.com/soss111/maker-set-sub000/pkg/config"
)

// Config holds all configuration for the cart service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"CART_HTTP_PORT" envDefault:"8003"`

	// Redis
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Cart TTL in hours (default: 7 days)
	CartTTLHours int `env:"CART_TTL_HOURS" envDefault:"168"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Downstream services
	CatalogURL   string `env:"CATALOG_SERVICE_URL" envDefault:"http://localhost:8001"`
	InventoryURL string `env:"INVENTORY_SERVICE_URL" envDefault:"http://localhost:8002"`
	SettingsURL  string `env:"SETTINGS_SERVICE_URL" envDefault:"http://localhost:8004"`

	// DefaultShippingCost is charged when the settings service cannot be
	// reached at startup.
	DefaultShippingCost string `env:"DEFAULT_SHIPPING_COST" envDefault:"15"`

	// Observability
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32" envSeparator:","`
	CORSOrigins       []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	TracingEnabled    bool    `env:"TRACING_ENABLED" envDefault:"false"`
	TracingEndpoint   string  `env:"TRACING_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	TracingSampleRate float64 `env:"TRACING_SAMPLE_RATE" envDefault:"0.1"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load cart config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CartTTL returns the cart expiry window as a duration.
func (c *Config) CartTTL() time.Duration {
	return time.Duration(c.CartTTLHours) * time.Hour
}

// ShippingCostFallback parses the configured default shipping cost.
func (c *Config) ShippingCostFallback() (decimal.Decimal, error) {
	cost, err := decimal.NewFromString(c.DefaultShippingCost)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid DEFAULT_SHIPPING_COST %q: %w", c.DefaultShippingCost, err)
	}
	return cost, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.CartTTLHours < 1 {
		return fmt.Errorf("invalid cart TTL hours: %d", c.CartTTLHours)
	}
	if _, err := c.ShippingCostFallback(); err != nil {
		return err
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		return fmt.Errorf("invalid tracing sample rate: %f", c.TracingSampleRate)
	}
	return nil
}
