package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends accepted in STORE_DRIVER.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

// Config holds all configuration for the application.
type Config struct {
	Port     string
	AppEnv   string
	LogLevel string

	StoreDriver string
	MongoURL    string
	MongoDBName string
	DatabaseURL string
	RedisURL    string

	WebhookSecret    string
	WebhookRateLimit int
	JWTSecret        string
	CartTTL          time.Duration
	SeedCatalog      bool

	LockoutThreshold int
	LockoutCooldown  time.Duration
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present; real environment values win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		AppEnv:           getEnv("APP_ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", DriverMongo)),
		MongoURL:         getEnv("MONGO_URL", ""),
		MongoDBName:      getEnv("MONGO_DB_NAME", "forge"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		RedisURL:         getEnv("REDIS_URL", ""),
		WebhookSecret:    strings.TrimSpace(os.Getenv("FORGE_WEBHOOK_SECRET")),
		WebhookRateLimit: getEnvInt("WEBHOOK_RATE_LIMIT", 0),
		JWTSecret:        strings.TrimSpace(os.Getenv("JWT_SECRET")),
		CartTTL:          getEnvDuration("CART_TTL", 7*24*time.Hour),
		SeedCatalog:      getEnvBool("SEED_CATALOG", false),
		LockoutThreshold: getEnvInt("LOCKOUT_THRESHOLD", 5),
		LockoutCooldown:  getEnvDuration("LOCKOUT_COOLDOWN", 15*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every required setting is present and consistent.
func (c *Config) Validate() error {
	if c.WebhookSecret == "" {
		return fmt.Errorf("FORGE_WEBHOOK_SECRET is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	switch c.StoreDriver {
	case DriverMongo:
		if c.MongoURL == "" {
			return fmt.Errorf("MONGO_URL is required when STORE_DRIVER=%s", DriverMongo)
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.WebhookRateLimit < 0 {
		return fmt.Errorf("WEBHOOK_RATE_LIMIT must not be negative")
	}
	if c.LockoutThreshold < 0 {
		return fmt.Errorf("LOCKOUT_THRESHOLD must not be negative")
	}
	return nil
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
