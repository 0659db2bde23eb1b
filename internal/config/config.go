package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	DBSource        string
	Port            string
	Env             string
	StoreDriver     string
	LockTimeout     time.Duration
	DBMaxConns      int32
	DBMinConns      int32
	ShutdownTimeout time.Duration
	LogLevel        slog.Level
	OTLPEndpoint    string
	Geocoder        GeocoderConfig
}

type GeocoderConfig struct {
	URL        string
	UserAgent  string
	MaxRetries uint64
	Timeout    time.Duration
}

func Load() (*Config, error) {
	driver := strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres))
	if driver != DriverPostgres && driver != DriverMemory {
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, driver)
	}

	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" && driver == DriverPostgres {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	lockTimeout, err := durationEnv("LOCK_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := durationEnv("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	geoTimeout, err := durationEnv("GEOCODER_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	maxConns, err := intEnv("DB_MAX_CONNS", 25)
	if err != nil {
		return nil, err
	}
	minConns, err := intEnv("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, err
	}
	if minConns > maxConns {
		return nil, fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", minConns, maxConns)
	}
	retries, err := intEnv("GEOCODER_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	return &Config{
		DBSource:        dbSource,
		Port:            getEnv("SERVER_PORT", "8080"),
		Env:             getEnv("ENVIRONMENT", "development"),
		StoreDriver:     driver,
		LockTimeout:     lockTimeout,
		DBMaxConns:      int32(maxConns),
		DBMinConns:      int32(minConns),
		ShutdownTimeout: shutdownTimeout,
		LogLevel:        level,
		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Geocoder: GeocoderConfig{
			URL:        getEnv("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
			UserAgent:  getEnv("GEOCODER_USER_AGENT", "bankledger"),
			MaxRetries: uint64(retries),
			Timeout:    geoTimeout,
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, raw)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: invalid non-negative integer %q", key, raw)
	}
	return n, nil
}
