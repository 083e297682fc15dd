package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Stock policies applied by the inventory ledger when a delta would take a
// product below zero
const (
	StockPolicyAllow  = "allow"
	StockPolicyReject = "reject"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Store     StoreConfig
	Checkout  CheckoutConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	Timezone       string
}

type DatabaseConfig struct {
	Host          string
	Port          string
	User          string
	Password      string
	Database      string
	Schema        string
	MigrationsDir string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	CartTTL  time.Duration
}

// JWTConfig holds the shared secret used to verify operator tokens issued by
// the external auth provider
type JWTConfig struct {
	Secret string
}

type StoreConfig struct {
	Driver string
}

// CheckoutConfig bounds the retry of stock adjustments after a record is
// written, and selects the negative stock policy
type CheckoutConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	StockPolicy    string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

func Load() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "")
	viper.SetDefault("REPORT_TIMEZONE", "UTC")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("DB_MIGRATIONS_DIR", "migrations")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CART_TTL_HOURS", 12)
	viper.SetDefault("STORE_DRIVER", DriverPostgres)
	viper.SetDefault("CHECKOUT_MAX_ATTEMPTS", 3)
	viper.SetDefault("CHECKOUT_INITIAL_BACKOFF_MS", 100)
	viper.SetDefault("CHECKOUT_MAX_BACKOFF_MS", 2000)
	viper.SetDefault("STOCK_POLICY", StockPolicyAllow)
	viper.SetDefault("KAFKA_BROKERS", "")
	viper.SetDefault("KAFKA_TOPIC", "pos.records")
	viper.SetDefault("RATE_LIMIT_REQUESTS", 300)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Env:            viper.GetString("SERVER_ENV"),
			LogLevel:       viper.GetString("LOG_LEVEL"),
			AllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
			Timezone:       viper.GetString("REPORT_TIMEZONE"),
		},
		Database: DatabaseConfig{
			Host:          viper.GetString("DB_HOST"),
			Port:          viper.GetString("DB_PORT"),
			User:          viper.GetString("DB_USER"),
			Password:      viper.GetString("DB_PASSWORD"),
			Database:      viper.GetString("DB_DATABASE"),
			Schema:        viper.GetString("DB_SCHEMA"),
			MigrationsDir: viper.GetString("DB_MIGRATIONS_DIR"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
			CartTTL:  time.Duration(viper.GetInt("CART_TTL_HOURS")) * time.Hour,
		},
		JWT: JWTConfig{
			Secret: viper.GetString("JWT_SECRET"),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(viper.GetString("STORE_DRIVER")),
		},
		Checkout: CheckoutConfig{
			MaxAttempts:    viper.GetInt("CHECKOUT_MAX_ATTEMPTS"),
			InitialBackoff: time.Duration(viper.GetInt("CHECKOUT_INITIAL_BACKOFF_MS")) * time.Millisecond,
			MaxBackoff:     time.Duration(viper.GetInt("CHECKOUT_MAX_BACKOFF_MS")) * time.Millisecond,
			StockPolicy:    strings.ToLower(viper.GetString("STOCK_POLICY")),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(viper.GetString("KAFKA_BROKERS")),
			Topic:   viper.GetString("KAFKA_TOPIC"),
		},
		RateLimit: RateLimitConfig{
			Requests: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   time.Duration(viper.GetInt("RATE_LIMIT_WINDOW_SECONDS")) * time.Second,
		},
	}
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// Validate rejects settings the service cannot start with
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverPostgres, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}

	switch c.Checkout.StockPolicy {
	case StockPolicyAllow, StockPolicyReject:
	default:
		errs = append(errs, fmt.Errorf("unknown STOCK_POLICY %q", c.Checkout.StockPolicy))
	}

	if c.Checkout.MaxAttempts < 1 {
		errs = append(errs, errors.New("CHECKOUT_MAX_ATTEMPTS must be at least 1"))
	}

	if c.JWT.Secret == "" && !c.IsDevelopment() {
		errs = append(errs, errors.New("JWT_SECRET is required outside development"))
	}

	if _, err := time.LoadLocation(c.Server.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid REPORT_TIMEZONE: %w", err))
	}

	return errors.Join(errs...)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
