package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName          = "PayGuard"
	defaultAppEnv           = "development"
	defaultPort             = "8080"
	defaultLogLevel         = "info"
	defaultShutdownDelay    = 10 * time.Second
	defaultSessionTTL       = 5 * time.Minute
	defaultVerifyTimeout    = time.Second
	defaultVerifyCacheTTL   = 10 * time.Minute
	defaultMaxVerifications = 16
	defaultResolutionLimit  = 30
	shutdownSecondsEnvVar   = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar  = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName     string
	AppEnv      string
	Port        string
	LogLevel    string
	DatabaseURL string
	RedisURL    string
	// SelfIdentity is the package name this service verifies requests on behalf of.
	SelfIdentity     string
	ShutdownPeriod   time.Duration
	SessionTTL       time.Duration
	VerifyTimeout    time.Duration
	VerifyCacheTTL   time.Duration
	MaxVerifications int
	// ResolutionRateLimit is the number of resolutions a caller may open per minute.
	ResolutionRateLimit int
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:             getEnv("APP_NAME", defaultAppName),
		AppEnv:              getEnv("APP_ENV", defaultAppEnv),
		Port:                getEnv("PORT", defaultPort),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		SelfIdentity:        strings.TrimSpace(os.Getenv("SELF_IDENTITY")),
		ShutdownPeriod:      defaultShutdownDelay,
		SessionTTL:          defaultSessionTTL,
		VerifyTimeout:       defaultVerifyTimeout,
		VerifyCacheTTL:      defaultVerifyCacheTTL,
		MaxVerifications:    defaultMaxVerifications,
		ResolutionRateLimit: defaultResolutionLimit,
	}

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(shutdownDurationEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownDurationEnvVar, err)
		}
		cfg.ShutdownPeriod = d
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SESSION_TTL", &cfg.SessionTTL},
		{"VERIFY_HTTP_TIMEOUT", &cfg.VerifyTimeout},
		{"VERIFY_CACHE_TTL", &cfg.VerifyCacheTTL},
	}
	for _, d := range durations {
		if err := durationEnv(d.key, d.dst); err != nil {
			return Config{}, err
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"MAX_CONCURRENT_VERIFICATIONS", &cfg.MaxVerifications},
		{"RESOLUTION_RATE_LIMIT", &cfg.ResolutionRateLimit},
	}
	for _, i := range ints {
		if err := intEnv(i.key, i.dst); err != nil {
			return Config{}, err
		}
	}

	if cfg.SelfIdentity == "" {
		return Config{}, fmt.Errorf("SELF_IDENTITY must be set")
	}

	if !cfg.IsDevelopment() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs in a local environment where
// Postgres and Redis are optional.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationEnv(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("invalid %s: must be positive", key)
	}
	*dst = d
	return nil
}

func intEnv(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return fmt.Errorf("invalid %s: must be positive", key)
	}
	*dst = n
	return nil
}
