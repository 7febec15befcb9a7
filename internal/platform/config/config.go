package config

import (
	"os"
	"strconv"
	"time"

	"timeline-editor/internal/timeline"

	"github.com/joho/godotenv"
)

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// Config is the daemon's runtime configuration.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	// SessionFile is the JSON session bootstrap document.
	SessionFile string

	// SegmentServiceURL is the base URL of the remote segment service.
	// Empty selects the in-process echo service.
	SegmentServiceURL     string
	SegmentServiceTimeout time.Duration

	TickInterval  time.Duration
	LabelMarginPx float64
	ProbeTimeout  time.Duration
}

// FromEnv builds a Config from the environment with defaults.
func FromEnv() Config {
	return Config{
		Port:                  GetEnv("PORT", "8080"),
		LogLevel:              GetEnv("LOG_LEVEL", "info"),
		LogFormat:             GetEnv("LOG_FORMAT", "json"),
		SessionFile:           GetEnv("SESSION_FILE", "session.json"),
		SegmentServiceURL:     GetEnv("SEGMENT_SERVICE_URL", ""),
		SegmentServiceTimeout: GetEnvDuration("SEGMENT_SERVICE_TIMEOUT", 10*time.Second),
		TickInterval:          GetEnvDuration("TICK_INTERVAL", 16*time.Millisecond),
		LabelMarginPx:         GetEnvFloat("LABEL_MARGIN_PX", timeline.DefaultLabelMargin),
		ProbeTimeout:          GetEnvDuration("PROBE_TIMEOUT", 15*time.Second),
	}
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvFloat is GetEnvInt for floating point values.
func GetEnvFloat(key string, fallback float64) float64 {
	if s := os.Getenv(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return fallback
}

// GetEnvDuration parses values such as "16ms" or "10s".
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
