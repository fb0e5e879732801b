package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")

type Config struct {
	DatabaseURL    string
	DatabaseDriver string
	RedisURL       string
	ServerPort     string
	GinMode        string
	SessionTimeout int
	OrderLockTTL   time.Duration
	OrderLockWait  time.Duration
	SnowflakeNode  int64
	LogLevel       string
	LogFormat      string

	StaffEmailDomain     string
	SeedEmployeeEmail    string
	SeedEmployeePassword string
}

// Load reads the environment (and .env when present). DATABASE_URL has no
// default; a missing value is a startup error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}

	return &Config{
		DatabaseURL:          databaseURL,
		DatabaseDriver:       strings.ToLower(getEnv("DATABASE_DRIVER", "postgres")),
		RedisURL:             getEnv("REDIS_URL", "redis://localhost:6379"),
		ServerPort:           getEnv("SERVER_PORT", "5001"),
		GinMode:              getEnv("GIN_MODE", "release"),
		SessionTimeout:       getEnvAsInt("SESSION_TIMEOUT", 3600),
		OrderLockTTL:         getEnvAsDuration("ORDER_LOCK_TTL", 5*time.Second),
		OrderLockWait:        getEnvAsDuration("ORDER_LOCK_WAIT", 2*time.Second),
		SnowflakeNode:        int64(getEnvAsInt("SNOWFLAKE_NODE", 1)),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "json"),
		StaffEmailDomain:     strings.ToLower(strings.TrimSpace(os.Getenv("STAFF_EMAIL_DOMAIN"))),
		SeedEmployeeEmail:    strings.TrimSpace(os.Getenv("SEED_EMPLOYEE_EMAIL")),
		SeedEmployeePassword: os.Getenv("SEED_EMPLOYEE_PASSWORD"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
