// Package config loads the engine's configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the popup engine.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Dynamo   DynamoConfig   `yaml:"dynamo"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Stats    StatsConfig    `yaml:"stats"`
	Export   ExportConfig   `yaml:"export"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// DashboardOrigins are the CORS origins allowed on the authenticated
	// query routes. The public tracking routes are always open.
	DashboardOrigins []string `yaml:"dashboard_origins"`
}

// PostgresConfig holds the connection string for the event store and the
// product-owned activity/submission tables.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// DynamoConfig holds visitor ledger table settings. Endpoint is only set
// for local DynamoDB.
type DynamoConfig struct {
	Table    string `yaml:"table"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// RedisConfig holds the activity cache settings.
type RedisConfig struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLSeconds int    `yaml:"activity_ttl_seconds"`
}

// TTL returns the activity cache TTL.
func (c RedisConfig) TTL() time.Duration { return time.Duration(c.TTLSeconds) * time.Second }

// AuthConfig holds the session service collaborator settings.
type AuthConfig struct {
	SessionServiceURL string `yaml:"session_service_url"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
}

// StatsConfig controls aggregation behavior.
type StatsConfig struct {
	// Timezone for the "today" bucket boundary, e.g. "UTC" or
	// "Europe/Istanbul". Empty preserves the historical server-local
	// behavior.
	Timezone string `yaml:"timezone"`
}

// Location resolves the stats timezone. Empty or invalid names fall back
// to server-local.
func (c StatsConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ExportConfig controls CSV export fan-out.
type ExportConfig struct {
	Parallelism          int `yaml:"parallelism"`
	LookupTimeoutSeconds int `yaml:"lookup_timeout_seconds"`
}

// LookupTimeout returns the per-visitor submission lookup timeout.
func (c ExportConfig) LookupTimeout() time.Duration {
	return time.Duration(c.LookupTimeoutSeconds) * time.Second
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads the YAML config and then overlays environment
// variables (including a .env file when present).
func LoadFromEnv(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg = &Config{}
		cfg.applyDefaults()
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid SERVER_PORT %q: %w", port, err)
		}
		cfg.Server.Port = p
	}
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.Postgres.DSN = dsn
	}
	if table := os.Getenv("DYNAMO_TABLE"); table != "" {
		cfg.Dynamo.Table = table
	}
	if region := os.Getenv("DYNAMO_REGION"); region != "" {
		cfg.Dynamo.Region = region
	}
	if endpoint := os.Getenv("DYNAMO_ENDPOINT"); endpoint != "" {
		cfg.Dynamo.Endpoint = endpoint
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if sessions := os.Getenv("SESSION_SERVICE_URL"); sessions != "" {
		cfg.Auth.SessionServiceURL = sessions
	}
	if tz := os.Getenv("STATS_TIMEZONE"); tz != "" {
		cfg.Stats.Timezone = tz
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Dynamo.Table == "" {
		c.Dynamo.Table = "popup-visitor-ledger"
	}
	if c.Dynamo.Region == "" {
		c.Dynamo.Region = "us-east-1"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.TTLSeconds == 0 {
		c.Redis.TTLSeconds = 60
	}
	if c.Auth.TimeoutSeconds == 0 {
		c.Auth.TimeoutSeconds = 5
	}
	if c.Export.Parallelism == 0 {
		c.Export.Parallelism = 4
	}
	if c.Export.LookupTimeoutSeconds == 0 {
		c.Export.LookupTimeoutSeconds = 5
	}
}
