// Package config loads the server's environment-driven configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/vehicle-signal/vis-server/internal/validator"
)

// Config is the complete set of environment-tunable server settings.
type Config struct {
	ListenAddr       string        `validate:"required"`
	LogLevel         string        `validate:"oneof=debug info warn error"`
	LogPretty        bool
	NATSURL          string
	NATSSubject      string        `validate:"required"`
	ProducerManifest string
	RateLimitRPS     float64       `validate:"gt=0"`
	RateLimitBurst   int           `validate:"gt=0"`
	ShutdownGrace    time.Duration `validate:"gt=0"`
	MaxRequestBytes  int64         `validate:"gt=0"`
}

// Load reads configuration from environment variables, applying
// conservative defaults for anything unset.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:       getEnv("VIS_LISTEN_ADDR", ":8080"),
		LogLevel:         getEnv("VIS_LOG_LEVEL", "info"),
		LogPretty:        getEnv("VIS_LOG_PRETTY", "false") == "true",
		NATSURL:          os.Getenv("VIS_NATS_URL"),
		NATSSubject:      getEnv("VIS_NATS_SUBJECT", "vis.signal.update"),
		ProducerManifest: os.Getenv("VIS_PRODUCER_MANIFEST"),
		MaxRequestBytes:  10 * 1024 * 1024,
	}

	rps, err := getEnvFloat("VIS_RATE_LIMIT_RPS", 50)
	if err != nil {
		return Config{}, err
	}
	cfg.RateLimitRPS = rps

	burst, err := getEnvInt("VIS_RATE_LIMIT_BURST", 100)
	if err != nil {
		return Config{}, err
	}
	cfg.RateLimitBurst = burst

	grace, err := getEnvDuration("VIS_SHUTDOWN_GRACE", 15*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.ShutdownGrace = grace

	if err := validator.ValidateStruct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
