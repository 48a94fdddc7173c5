// Package config loads service configuration from config.yaml and LEADPREP_
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

const (
	DriverDynamo = "dynamodb"
	DriverMemory = "memory"
)

// Config holds all application configuration
type Config struct {
	Environment string            `mapstructure:"environment"`
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Store       StoreConfig       `mapstructure:"store"`
	AWS         AWSConfig         `mapstructure:"aws"`
	Tables      TablesConfig      `mapstructure:"tables"`
	Queue       QueueConfig       `mapstructure:"queue"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Facility    FacilityConfig    `mapstructure:"facility"`
	Orders      OrdersConfig      `mapstructure:"orders"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// ServerConfig.Mode is "local" for an HTTP listener or "lambda" behind API
// Gateway.
type ServerConfig struct {
	Address     string   `mapstructure:"address"`
	Mode        string   `mapstructure:"mode"`
	CorsOrigins []string `mapstructure:"cors_origins"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type AWSConfig struct {
	Region           string `mapstructure:"region"`
	EndpointOverride string `mapstructure:"endpoint_override"`
}

type TablesConfig struct {
	Orders      string `mapstructure:"orders"`
	Serials     string `mapstructure:"serials"`
	Parts       string `mapstructure:"parts"`
	Users       string `mapstructure:"users"`
	Idempotency string `mapstructure:"idempotency"`
}

type QueueConfig struct {
	URL string `mapstructure:"url"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type FacilityConfig struct {
	Timezone string `mapstructure:"timezone"`
}

type OrdersConfig struct {
	OverdueAfter    time.Duration `mapstructure:"overdue_after"`
	PendingWindow   time.Duration `mapstructure:"pending_window"`
	MaxWriteRetries int           `mapstructure:"max_write_retries"`
}

type IdempotencyConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type WorkerConfig struct {
	OverdueScanInterval time.Duration `mapstructure:"overdue_scan_interval"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

// Location resolves the facility time zone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Facility.Timezone)
	if err != nil {
		return nil, fmt.Errorf("facility.timezone %q: %w", c.Facility.Timezone, err)
	}
	return loc, nil
}

// Validate rejects settings the services cannot start with.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverDynamo, DriverMemory:
	default:
		return fmt.Errorf("store.driver must be %q or %q, got %q", DriverDynamo, DriverMemory, c.Store.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Environment == "production" && c.Auth.JWTSecret == defaultJWTSecret {
		return errors.New("auth.jwt_secret must be changed in production")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
		// defaults and environment only
	}

	v.SetEnvPrefix("LEADPREP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to unmarshal config: %w", err)
	}
	return cfg, nil
}

const defaultJWTSecret = "change-me"

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("server.address", "0.0.0.0:8080")
	v.SetDefault("server.mode", "local")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("store.driver", DriverDynamo)

	v.SetDefault("aws.region", "eu-west-3")
	v.SetDefault("aws.endpoint_override", "")

	v.SetDefault("tables.orders", "leadprep-orders")
	v.SetDefault("tables.serials", "leadprep-serials")
	v.SetDefault("tables.parts", "leadprep-parts")
	v.SetDefault("tables.users", "leadprep-users")
	v.SetDefault("tables.idempotency", "leadprep-idempotency")

	v.SetDefault("queue.url", "")

	v.SetDefault("auth.jwt_secret", defaultJWTSecret)
	v.SetDefault("auth.token_ttl", "8h")

	v.SetDefault("facility.timezone", "Africa/Casablanca")

	v.SetDefault("orders.overdue_after", "4h")
	v.SetDefault("orders.pending_window", "24h")
	v.SetDefault("orders.max_write_retries", 5)

	v.SetDefault("idempotency.ttl", "48h")

	v.SetDefault("worker.overdue_scan_interval", "15m")

	v.SetDefault("metrics.namespace", "LeadPrep")
}
