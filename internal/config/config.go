package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port                  int
	DatabasePath          string
	LogLevel              string
	APIToken              string
	CoinGeckoBaseURL      string
	AlertCheckInterval    time.Duration
	MarketRefreshInterval time.Duration
	DevMode               bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:                  getEnvAsInt("PORT", 8080),
		DatabasePath:          getEnv("DATABASE_PATH", "./data/cryptofolio.db"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		APIToken:              getEnv("API_TOKEN", ""),
		CoinGeckoBaseURL:      getEnv("COINGECKO_BASE_URL", "https://api.coingecko.com"),
		AlertCheckInterval:    getEnvAsDuration("ALERT_CHECK_INTERVAL", 45*time.Second),
		MarketRefreshInterval: getEnvAsDuration("MARKET_REFRESH_INTERVAL", 60*time.Second),
		DevMode:               getEnvAsBool("DEV_MODE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be a valid TCP port, got %d", c.Port)
	}
	if c.AlertCheckInterval < time.Second {
		return fmt.Errorf("ALERT_CHECK_INTERVAL must be at least 1s")
	}
	if c.MarketRefreshInterval < time.Second {
		return fmt.Errorf("MARKET_REFRESH_INTERVAL must be at least 1s")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
