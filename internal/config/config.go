// Package config loads the marketplace service configuration from the
// environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const ServiceName = "shoe-market"

// Store backends selectable through STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPebble   = "pebble"
	BackendPostgres = "postgres"
)

type Config struct {
	HTTPAddr string
	LogLevel string

	StoreBackend string
	RedisAddr    string
	PebbleDir    string
	DatabaseURL  string

	// OrderLogPath is the SQLite file for the order audit log; empty disables it.
	OrderLogPath string

	// KafkaBrokers empty disables lifecycle event publishing.
	KafkaBrokers []string
	KafkaTopic   string

	// LedgerAddr empty runs an in-process ledger.
	LedgerAddr string

	ReservationWindow time.Duration

	OtelEndpoint    string
	OtelServiceName string
}

// Load reads the configuration with defaults suited to local development.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		StoreBackend:    strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		PebbleDir:       getEnv("PEBBLE_DIR", "data/pebble"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		OrderLogPath:    os.Getenv("ORDER_LOG_PATH"),
		KafkaBrokers:    splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "shoe-market.orders"),
		LedgerAddr:      os.Getenv("LEDGER_ADDR"),
		OtelEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OtelServiceName: getEnv("OTEL_SERVICE_NAME", ServiceName),
	}

	window, err := time.ParseDuration(getEnv("RESERVATION_WINDOW", "120s"))
	if err != nil {
		return nil, fmt.Errorf("RESERVATION_WINDOW: %w", err)
	}
	if window <= 0 {
		return nil, fmt.Errorf("RESERVATION_WINDOW must be positive, got %s", window)
	}
	cfg.ReservationWindow = window

	switch cfg.StoreBackend {
	case BackendMemory, BackendRedis:
	case BackendPebble:
		if cfg.PebbleDir == "" {
			return nil, fmt.Errorf("PEBBLE_DIR cannot be empty with STORE_BACKEND=pebble")
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required with STORE_BACKEND=postgres")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
