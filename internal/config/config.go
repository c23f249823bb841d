// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// BackendURL is the base URL of the tutor service.
	BackendURL string

	// DBPath is the quiz history SQLite file.
	DBPath string

	// HTTPTimeout bounds quiz generate/validate calls.
	HTTPTimeout time.Duration

	// SampleRate is the microphone capture rate for pronunciation clips.
	SampleRate int

	// LogLevel is a logrus level name.
	LogLevel string
}

// Load reads configuration from a .env file (if present) and the
// environment. Environment variables win over the file.
func Load() (*Config, error) {
	// Missing .env is the common case, not an error.
	_ = godotenv.Load()

	cfg := &Config{
		BackendURL:  getEnv("LINGUA_BACKEND_URL", "http://localhost:8000"),
		DBPath:      getEnv("LINGUA_DB", defaultDBPath()),
		HTTPTimeout: getEnvDuration("LINGUA_HTTP_TIMEOUT", 60*time.Second),
		SampleRate:  getEnvInt("LINGUA_SAMPLE_RATE", 16000),
		LogLevel:    getEnv("LINGUA_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are usable.
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("LINGUA_BACKEND_URL cannot be empty")
	}
	if !strings.HasPrefix(c.BackendURL, "http://") && !strings.HasPrefix(c.BackendURL, "https://") {
		return fmt.Errorf("LINGUA_BACKEND_URL must be an http(s) URL")
	}
	if c.DBPath == "" {
		return fmt.Errorf("LINGUA_DB cannot be empty")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("LINGUA_HTTP_TIMEOUT must be positive")
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("LINGUA_SAMPLE_RATE must be positive")
	}
	return nil
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./lingua-history.db"
	}
	return filepath.Join(home, ".lingua", "history.db")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
