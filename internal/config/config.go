package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/utafrali/catalog/pkg/config"
)

// Store backends.
const (
	BackendElasticsearch = "elasticsearch"
	BackendBleve         = "bleve"
	BackendMemory        = "memory"
)

// Placement guards.
const (
	GuardRedis  = "redis"
	GuardMemory = "memory"
)

// Config holds all configuration for the catalog service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort           int      `env:"HTTP_PORT" envDefault:"3000"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Document store (elasticsearch, bleve or memory)
	StoreBackend     string `env:"STORE_BACKEND" envDefault:"elasticsearch"`
	ElasticURL       string `env:"ELASTIC_URL" envDefault:"http://localhost:9200"`
	ElasticUsername  string `env:"ELASTIC_USERNAME"`
	ElasticPassword  string `env:"ELASTIC_PASSWORD"`
	IndexPrefix      string `env:"INDEX_PREFIX"`
	BlevePath        string `env:"BLEVE_PATH"`
	SearchMaxResults int    `env:"SEARCH_MAX_RESULTS" envDefault:"100"`

	// Placement guard (redis or memory)
	PlacementGuard   string        `env:"PLACEMENT_GUARD" envDefault:"memory"`
	PlacementLockTTL time.Duration `env:"PLACEMENT_LOCK_TTL" envDefault:"30s"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	EventsEnabled     bool     `env:"EVENTS_ENABLED" envDefault:"false"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	ReconcilerEnabled bool     `env:"RECONCILER_ENABLED" envDefault:"true"`

	// OpenTelemetry
	OTelEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTelSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load catalog config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom reads configuration from vars instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadFrom(cfg, vars); err != nil {
		return nil, fmt.Errorf("load catalog config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UsesRedis reports whether any component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.PlacementGuard == GuardRedis
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	switch c.StoreBackend {
	case BackendElasticsearch:
		if c.ElasticURL == "" {
			return fmt.Errorf("ELASTIC_URL is required for the %s backend", BackendElasticsearch)
		}
	case BackendBleve, BackendMemory:
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q: must be one of %s, %s, %s",
			c.StoreBackend, BackendElasticsearch, BackendBleve, BackendMemory)
	}

	if c.SearchMaxResults < 1 {
		return fmt.Errorf("invalid SEARCH_MAX_RESULTS: %d", c.SearchMaxResults)
	}

	switch c.PlacementGuard {
	case GuardRedis, GuardMemory:
	default:
		return fmt.Errorf("invalid PLACEMENT_GUARD %q: must be one of %s, %s", c.PlacementGuard, GuardRedis, GuardMemory)
	}
	if c.PlacementLockTTL <= 0 {
		return fmt.Errorf("invalid PLACEMENT_LOCK_TTL: %s", c.PlacementLockTTL)
	}
	if c.UsesRedis() && (c.RedisPort < 1 || c.RedisPort > 65535) {
		return fmt.Errorf("invalid Redis port: %d", c.RedisPort)
	}

	if c.EventsEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when events are enabled")
	}

	if c.OTelSampleRate < 0 || c.OTelSampleRate > 1 {
		return fmt.Errorf("invalid OTEL_SAMPLE_RATE: %g", c.OTelSampleRate)
	}
	return nil
}
