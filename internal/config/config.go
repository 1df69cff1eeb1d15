package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURI   string
	TelegramToken string

	Schedule      string // cron spec for the obligation check
	ScanPageSize  int
	Location      *time.Location
	ChatCacheSize int64
}

func Load() (*Config, error) {
	// .env file is optional in production
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURI:   os.Getenv("DATABASE_URI"),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		Schedule:      getEnvOrDefault("SCHEDULE", "@every 1m"),
	}

	var err error
	if cfg.ScanPageSize, err = strconv.Atoi(getEnvOrDefault("SCAN_PAGE_SIZE", "100")); err != nil || cfg.ScanPageSize <= 0 {
		return nil, fmt.Errorf("invalid SCAN_PAGE_SIZE %q", os.Getenv("SCAN_PAGE_SIZE"))
	}
	if cfg.ChatCacheSize, err = strconv.ParseInt(getEnvOrDefault("CHAT_CACHE_SIZE", "10000"), 10, 64); err != nil || cfg.ChatCacheSize <= 0 {
		return nil, fmt.Errorf("invalid CHAT_CACHE_SIZE %q", os.Getenv("CHAT_CACHE_SIZE"))
	}

	tz := getEnvOrDefault("TIMEZONE", "America/Sao_Paulo")
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}

	return cfg, nil
}

// RequireDatabase reports a missing DATABASE_URI.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURI == "" {
		return fmt.Errorf("DATABASE_URI is required")
	}
	return nil
}

// RequireTelegram reports a missing TELEGRAM_TOKEN.
func (c *Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
