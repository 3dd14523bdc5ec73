// Package config loads runtime configuration from the environment, with
// an optional YAML defaults file for query tuning.
package config

import "os"

const (
	defaultRedisURL     = "redis://localhost:6379"
	defaultNATSURL      = "nats://localhost:4222"
	defaultHTTPAddr     = ":8080"
	defaultMetricsAddr  = ":9090"
	defaultDefaultsPath = "config/defaults.yaml"

	envRedisURL     = "FLOWPLANE_REDIS_URL"
	envNATSURL      = "FLOWPLANE_NATS_URL"
	envHTTPAddr     = "FLOWPLANE_HTTP_ADDR"
	envMetricsAddr  = "FLOWPLANE_METRICS_ADDR"
	envDefaultsPath = "FLOWPLANE_DEFAULTS_PATH"
)

// Config holds runtime configuration for the flowplane server.
type Config struct {
	RedisURL     string
	NatsURL      string
	HTTPAddr     string
	MetricsAddr  string
	DefaultsPath string
}

// Load returns configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		RedisURL:     envOr(envRedisURL, defaultRedisURL),
		NatsURL:      envOr(envNATSURL, defaultNATSURL),
		HTTPAddr:     envOr(envHTTPAddr, defaultHTTPAddr),
		MetricsAddr:  envOr(envMetricsAddr, defaultMetricsAddr),
		DefaultsPath: envOr(envDefaultsPath, defaultDefaultsPath),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
