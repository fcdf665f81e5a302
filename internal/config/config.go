package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Gateway  GatewayConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Incident IncidentConfig
	S3       S3Config
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // seconds
	AutoMigrate     bool
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string
	Format string // "json" or "console"
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	APIKey string
	// AdminAPIKey guards the moderation routes. Empty disables them.
	AdminAPIKey string
}

// GatewayConfig holds payment gateway configuration.
type GatewayConfig struct {
	SecretKey         string
	WebhookSecret     string
	PublicBaseURL     string
	Currency          string
	ShippingCountries []string
	BreakerFailures   int
	BreakerTimeout    int // seconds
}

// RedisConfig holds the cart store connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CartTTL  int // hours, 0 disables expiry
}

// KafkaConfig holds the event relay settings.
type KafkaConfig struct {
	Brokers      []string
	ReviewsTopic string
	OrdersTopic  string
	PollInterval int // seconds
}

// IncidentConfig holds the local reconciliation incident archive settings.
type IncidentConfig struct {
	Dir string
}

// S3Config holds AWS S3 configuration for the incident archive.
type S3Config struct {
	Enabled bool
	Bucket  string
	Region  string
	Prefix  string // Path prefix within bucket (e.g., "incidents/")
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "storefront"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MinConnections:  getEnvAsInt("DB_MIN_CONNECTIONS", 5),
			MaxConnLifetime: getEnvAsInt("DB_MAX_CONN_LIFETIME", 300),
			AutoMigrate:     getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			APIKey:      getEnv("API_KEY", ""),
			AdminAPIKey: getEnv("ADMIN_API_KEY", ""),
		},
		Gateway: GatewayConfig{
			SecretKey:         getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:     getEnv("STRIPE_WEBHOOK_SECRET", ""),
			PublicBaseURL:     strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
			Currency:          strings.ToLower(getEnv("CHECKOUT_CURRENCY", "usd")),
			ShippingCountries: getEnvAsList("SHIPPING_COUNTRIES", []string{"US", "CA", "GB", "FR", "DE", "ES", "IT"}),
			BreakerFailures:   getEnvAsInt("GATEWAY_BREAKER_FAILURES", 5),
			BreakerTimeout:    getEnvAsInt("GATEWAY_BREAKER_TIMEOUT_SECONDS", 30),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			CartTTL:  getEnvAsInt("CART_TTL_HOURS", 0),
		},
		Kafka: KafkaConfig{
			Brokers:      getEnvAsList("KAFKA_BROKERS", nil),
			ReviewsTopic: getEnv("KAFKA_REVIEWS_TOPIC", "storefront.reviews"),
			OrdersTopic:  getEnv("KAFKA_ORDERS_TOPIC", "storefront.orders"),
			PollInterval: getEnvAsInt("OUTBOX_POLL_INTERVAL_SECONDS", 2),
		},
		Incident: IncidentConfig{
			Dir: getEnv("INCIDENT_DIR", "data/incidents"),
		},
		S3: S3Config{
			Enabled: getEnvAsBool("S3_ENABLED", false),
			Bucket:  getEnv("S3_BUCKET", ""),
			Region:  getEnv("S3_REGION", "us-east-1"),
			Prefix:  getEnv("S3_PREFIX", "incidents/"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}

	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.Database.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	if c.Auth.APIKey == "" {
		return fmt.Errorf("API key is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	if err := c.Gateway.validate(); err != nil {
		return err
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.Redis.CartTTL < 0 {
		return fmt.Errorf("cart TTL cannot be negative")
	}

	if len(c.Kafka.Brokers) > 0 {
		if c.Kafka.ReviewsTopic == "" || c.Kafka.OrdersTopic == "" {
			return fmt.Errorf("kafka topics are required when brokers are configured")
		}
		if c.Kafka.PollInterval < 1 {
			return fmt.Errorf("outbox poll interval must be at least 1 second")
		}
	}

	if c.Incident.Dir == "" {
		return fmt.Errorf("incident directory is required")
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required when S3 is enabled")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("S3 region is required when S3 is enabled")
		}
	}

	return nil
}

func (c *GatewayConfig) validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("stripe secret key is required")
	}

	u, err := url.Parse(c.PublicBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid public base URL: %q (must be an absolute http(s) URL)", c.PublicBaseURL)
	}

	if c.Currency == "" {
		return fmt.Errorf("checkout currency is required")
	}

	if len(c.ShippingCountries) == 0 {
		return fmt.Errorf("at least one shipping country is required")
	}
	for _, country := range c.ShippingCountries {
		if len(country) != 2 {
			return fmt.Errorf("invalid shipping country code: %q", country)
		}
	}

	if c.BreakerFailures < 1 {
		return fmt.Errorf("gateway breaker failures must be at least 1")
	}

	if c.BreakerTimeout < 1 {
		return fmt.Errorf("gateway breaker timeout must be at least 1 second")
	}

	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address returns the server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CartExpiry returns the cart snapshot TTL, zero meaning no expiry.
func (c *RedisConfig) CartExpiry() time.Duration {
	return time.Duration(c.CartTTL) * time.Hour
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsList retrieves a comma-separated environment variable, dropping blank entries.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
